package model

import "time"

// Vote records a single user's open/closed report for a venue.  Votes
// are append-only: they are never updated or deleted by the normal
// flow.  Multiple votes per (user, venue) pair are allowed and are
// throttled by the submission cooldown, not by a uniqueness constraint.
//
// Fields:
//  ID        – primary key identifier.
//  VenueID   – venue the vote applies to.
//  UserID    – user who cast the vote.
//  IsOpen    – true when the user reports the venue as open.
//  CreatedAt – server-assigned timestamp; immutable.
type Vote struct {
	ID        uint64    // votes.id
	VenueID   uint64    // votes.venue_id
	UserID    uint64    // votes.user_id
	IsOpen    bool      // votes.is_open
	CreatedAt time.Time // votes.created_at
}

// VoteStats aggregates today's tally for a venue.
type VoteStats struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
}
