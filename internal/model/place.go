package model

// PlaceSnapshot is a provider search result cached under a quantized
// grid key.  It mirrors the read-only attributes of a venue plus the
// provider's own status hints.  Snapshots are owned by the place cache
// and expire with its TTL; they are never written to the venues table
// except through promotion.
type PlaceSnapshot struct {
	PlaceID   string  `json:"place_id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Category  string  `json:"category"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Rating    float64 `json:"rating,omitempty"`
	// OpenNow is the provider's live open hint; nil when the provider
	// did not include one.
	OpenNow *bool `json:"open_now,omitempty"`
	// Periods holds the provider's raw opening-hours periods, one per
	// weekday it reported.  Empty until the snapshot has been enriched
	// with a place-details call.
	Periods []PlacePeriod `json:"periods,omitempty"`
	// PhotoRef is an opaque provider photo reference usable with the
	// photo endpoint.
	PhotoRef string `json:"photo_ref,omitempty"`
	// Enriched marks that a place-details call completed for this
	// snapshot.  Unenriched snapshots only carry nearby-search fields.
	Enriched bool `json:"enriched"`
}

// PlacePeriod is one open interval reported by the provider.  Times are
// "HHMM" strings in the place's local time, matching the provider wire
// format.  A period with no close time means the place is always open.
type PlacePeriod struct {
	Day   int    `json:"day"` // 0=Sunday..6=Saturday
	Open  string `json:"open"`
	Close string `json:"close,omitempty"`
}
