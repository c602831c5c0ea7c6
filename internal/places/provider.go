// Package places fronts the external place-search provider with a
// grid-quantized, TTL-bounded cache.  The provider itself is a black
// box behind the Provider interface: nearby search, place details,
// timezone by coordinate, and photo download.
package places

import (
	"context"
	"errors"
	"time"

	"github.com/nightpulse/nightpulse/internal/model"
)

// ErrPlaceNotFound is returned when a place id cannot be resolved
// through the cache or the provider.
var ErrPlaceNotFound = errors.New("place not found")

// Provider is the external place-search capability consumed by the
// cache.  Implementations must treat every call as a network request:
// honoring ctx and returning errors rather than panicking.
type Provider interface {
	// NearbySearch returns places around the coordinate.  A non-empty
	// keyword narrows the search by free text.
	NearbySearch(ctx context.Context, lat, lon float64, keyword string) ([]model.PlaceSnapshot, error)
	// Details enriches a single place with opening hours and the live
	// open hint.
	Details(ctx context.Context, placeID string) (*model.PlaceSnapshot, error)
	// Timezone resolves the civil timezone at a coordinate.
	Timezone(ctx context.Context, lat, lon float64) (*time.Location, error)
	// Photo downloads the image behind an opaque photo reference.
	Photo(ctx context.Context, photoRef string) ([]byte, error)
}
