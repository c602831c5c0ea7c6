package model

import "time"

// VenueSource tags where a venue record originated.  Venues created by
// administrators or promoted from a provider place live in our own
// registry and are tagged SourceInternal.  Places that only exist as
// provider search results are tagged SourceExternal and are never stored
// in the venues table.
const (
	SourceInternal = "database"
	SourceExternal = "google"
)

// Venue represents a social venue tracked in our registry.  A venue may
// have been created by an administrator or lazily promoted from an
// external provider place on its first vote.  The resolver and the
// aggregation pipeline treat venues as read-only.
//
// Fields:
//  ID            – primary key identifier.
//  Name          – display name of the venue.
//  Description   – free-text description, searchable.
//  Location      – human-readable address or locality text.
//  Category      – coarse venue category (e.g. "Bar", "Club").
//  Subcategory   – optional finer category.
//  Latitude      – WGS84 latitude in degrees.
//  Longitude     – WGS84 longitude in degrees.
//  GooglePlaceID – provider place identifier; unique when present.  At
//                  most one venue may be linked to a given place.
//  ImageURL      – optional representative image reference.
//  ClosedDays    – weekdays (0=Sunday..6=Saturday) the venue is always closed.
//  Windows       – declared operating windows, at most one per weekday.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Venue struct {
	ID            uint64            // venues.id
	Name          string            // venues.name
	Description   string            // venues.description
	Location      string            // venues.location
	Category      string            // venues.category
	Subcategory   string            // venues.subcategory
	Latitude      float64           // venues.latitude
	Longitude     float64           // venues.longitude
	GooglePlaceID *string           // venues.google_place_id (nullable, unique)
	ImageURL      *string           // venues.image_url (nullable)
	ClosedDays    []int             // venue_closed_days.weekday
	Windows       []OperatingWindow // operating_windows rows for this venue
	CreatedAt     time.Time         // venues.created_at
	UpdatedAt     time.Time         // venues.updated_at
}

// OperatingWindow declares the open interval for one weekday.  Start and
// End are local times of day ("15:04"); both nil means hours unknown for
// that day.  Start after End encodes an overnight window wrapping past
// midnight into the next day.  Windows are owned by their venue and are
// replaced wholesale on update.
type OperatingWindow struct {
	VenueID uint64  // operating_windows.venue_id
	Weekday int     // operating_windows.weekday (0=Sunday..6=Saturday)
	Start   *string // operating_windows.start_time (nullable, "HH:MM")
	End     *string // operating_windows.end_time (nullable, "HH:MM")
}

// WindowFor returns the declared window for the given weekday, or nil
// when the venue declares no window for that day.
func (v *Venue) WindowFor(weekday int) *OperatingWindow {
	for i := range v.Windows {
		if v.Windows[i].Weekday == weekday {
			return &v.Windows[i]
		}
	}
	return nil
}

// HasHours reports whether the venue declares any operating-hours data
// at all (windows or an explicit closed-day set).
func (v *Venue) HasHours() bool {
	return len(v.Windows) > 0 || len(v.ClosedDays) > 0
}

// ClosedOn reports whether the weekday is in the venue's explicit
// closed-day set.
func (v *Venue) ClosedOn(weekday int) bool {
	for _, d := range v.ClosedDays {
		if d == weekday {
			return true
		}
	}
	return false
}
