package config

import "time"

// PlacesConfig defines settings for the external place cache and the
// provider client behind it.  GridDeg is the quantization cell size in
// degrees: coordinates are floored to a multiple of it so nearby users
// share one cache entry.  TTL applies to both grid entries and the
// per-place entries written alongside them; venue existence and hours
// change slowly, so a multi-day TTL is the default.  DetailBatch and
// BatchPause bound the place-details enrichment fan-out to stay under
// the provider's rate limits.
type PlacesConfig struct {
	APIKey      string
	GridDeg     float64
	TTL         time.Duration
	DetailBatch int
	BatchPause  time.Duration
	Prefix      string
}

// LoadPlacesConfig reads environment variables to build a PlacesConfig.
// GOOGLE_MAPS_API_KEY is required; everything else has defaults.
func LoadPlacesConfig() PlacesConfig {
	cfg := PlacesConfig{
		APIKey:      must("GOOGLE_MAPS_API_KEY"),
		GridDeg:     envFloat("PLACES_GRID_DEG", 0.005),
		TTL:         envDur("PLACES_CACHE_TTL", 72*time.Hour),
		DetailBatch: envInt("PLACES_DETAIL_BATCH", 10),
		BatchPause:  envDur("PLACES_BATCH_PAUSE", 200*time.Millisecond),
		Prefix:      envStr("PLACES_CACHE_PREFIX", "places"),
	}
	if cfg.GridDeg <= 0 {
		cfg.GridDeg = 0.005
	}
	if cfg.DetailBatch < 1 {
		cfg.DetailBatch = 1
	}
	return cfg
}
