// Package queue defines message payloads exchanged over the message broker.
package queue

// VoteRecordedEvent is published after a vote is accepted.  It carries
// enough information for downstream consumers (notifications,
// analytics) to act without querying the primary database.
type VoteRecordedEvent struct {
	VoteID     uint64 `json:"vote_id"`
	VenueID    uint64 `json:"venue_id"`
	VenueName  string `json:"venue_name"`
	UserID     uint64 `json:"user_id"`
	IsOpen     bool   `json:"is_open"`
	Status     string `json:"status"`
	RecordedAt string `json:"recorded_at"`
}

// VenuePromotedEvent is published when an external place is promoted
// into the registry by its first vote.
type VenuePromotedEvent struct {
	VenueID    uint64 `json:"venue_id"`
	PlaceID    string `json:"place_id"`
	Name       string `json:"name"`
	PromotedAt string `json:"promoted_at"`
}
