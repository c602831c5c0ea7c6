package places

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nightpulse/nightpulse/internal/config"
	"github.com/nightpulse/nightpulse/internal/metrics"
	"github.com/nightpulse/nightpulse/internal/model"
)

// Coordinate is a plain latitude/longitude pair used as a lookup hint.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Cache is the read-through grid cache in front of the provider.
// Coordinates are quantized to a fixed cell size so requests from
// nearby users reuse the same entry; each successful fetch also writes
// per-place entries for point lookups, all under one TTL.
//
// Cache writes are idempotent and last-writer-wins on TTL expiry;
// snapshots are provider-derived and not safety-critical, so no
// compare-and-swap is needed.
type Cache struct {
	store    Store
	provider Provider
	cfg      config.PlacesConfig
	log      zerolog.Logger
	pace     *rate.Limiter
}

// NewCache wires a Store and a Provider into a Cache.
func NewCache(store Store, provider Provider, cfg config.PlacesConfig, log zerolog.Logger) *Cache {
	return &Cache{
		store:    store,
		provider: provider,
		cfg:      cfg,
		log:      log.With().Str("component", "place_cache").Logger(),
		pace:     rate.NewLimiter(rate.Every(cfg.BatchPause), 1),
	}
}

// gridKey quantizes the coordinate by flooring to a multiple of the
// grid cell size and appends the normalized search term when present.
func (c *Cache) gridKey(lat, lon float64, term string) string {
	g := c.cfg.GridDeg
	qlat := math.Floor(lat/g) * g
	qlon := math.Floor(lon/g) * g
	key := fmt.Sprintf("%s:grid:%.6f:%.6f", c.cfg.Prefix, qlat, qlon)
	if t := normalizeTerm(term); t != "" {
		key += ":" + t
	}
	return key
}

func (c *Cache) placeKey(placeID string) string {
	return c.cfg.Prefix + ":id:" + placeID
}

// normalizeTerm lower-cases and collapses whitespace so equivalent
// searches share a cache entry.
func normalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), "+")
}

// Nearby returns the cached snapshot list for the coordinate's grid
// cell (and search term), fetching and enriching from the provider on
// a miss.
func (c *Cache) Nearby(ctx context.Context, lat, lon float64, term string) ([]model.PlaceSnapshot, error) {
	key := c.gridKey(lat, lon, term)
	if bs, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if bs != nil {
		var snaps []model.PlaceSnapshot
		if json.Unmarshal(bs, &snaps) == nil {
			metrics.IncPlaceCacheLookup("hit")
			return snaps, nil
		}
	}
	metrics.IncPlaceCacheLookup("miss")

	snaps, err := c.provider.NearbySearch(ctx, lat, lon, term)
	if err != nil {
		return nil, err
	}
	snaps = c.enrich(ctx, snaps)

	if bs, err := json.Marshal(snaps); err == nil {
		if err := c.store.Set(ctx, key, bs, c.cfg.TTL); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	for i := range snaps {
		c.storePlace(ctx, &snaps[i])
	}
	return snaps, nil
}

// ByID looks a place up by its provider identifier.  The individual
// cache entry is checked first; on a miss, a coordinate hint triggers
// the grid-level fetch and the result is scanned for the identifier.
func (c *Cache) ByID(ctx context.Context, placeID string, hint *Coordinate) (*model.PlaceSnapshot, error) {
	if bs, err := c.store.Get(ctx, c.placeKey(placeID)); err != nil {
		c.log.Warn().Err(err).Str("place_id", placeID).Msg("cache read failed")
	} else if bs != nil {
		var snap model.PlaceSnapshot
		if json.Unmarshal(bs, &snap) == nil {
			metrics.IncPlaceCacheLookup("hit")
			return &snap, nil
		}
	}
	metrics.IncPlaceCacheLookup("miss")

	if hint != nil {
		snaps, err := c.Nearby(ctx, hint.Lat, hint.Lon, "")
		if err != nil {
			return nil, err
		}
		for i := range snaps {
			if snaps[i].PlaceID == placeID {
				return &snaps[i], nil
			}
		}
	}

	// Last resort: ask the provider directly.  Covers places outside
	// the hint's grid cell or lookups with no hint at all.
	snap, err := c.provider.Details(ctx, placeID)
	if err != nil {
		return nil, ErrPlaceNotFound
	}
	c.storePlace(ctx, snap)
	return snap, nil
}

// Timezone resolves and caches the civil timezone for a grid cell.
// Timezones effectively never change, so the entry outlives the place
// TTL by a wide margin.
func (c *Cache) Timezone(ctx context.Context, lat, lon float64) (*time.Location, error) {
	key := c.gridKey(lat, lon, "") + ":tz"
	if bs, err := c.store.Get(ctx, key); err == nil && bs != nil {
		if loc, err := time.LoadLocation(string(bs)); err == nil {
			return loc, nil
		}
	}
	loc, err := c.provider.Timezone(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, []byte(loc.String()), 30*24*time.Hour); err != nil {
		c.log.Warn().Err(err).Msg("timezone cache write failed")
	}
	return loc, nil
}

// Photo proxies a photo download to the provider.
func (c *Cache) Photo(ctx context.Context, photoRef string) ([]byte, error) {
	return c.provider.Photo(ctx, photoRef)
}

func (c *Cache) storePlace(ctx context.Context, snap *model.PlaceSnapshot) {
	bs, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.placeKey(snap.PlaceID), bs, c.cfg.TTL); err != nil {
		c.log.Warn().Err(err).Str("place_id", snap.PlaceID).Msg("cache write failed")
	}
}

// enrich runs place-details calls for snapshots that arrived without
// full opening hours, in fixed-size concurrent batches separated by a
// pause.  The pause exists purely to respect the provider's rate
// limit, not for correctness.  A failed enrichment leaves the original
// snapshot in place rather than failing the batch.
func (c *Cache) enrich(ctx context.Context, snaps []model.PlaceSnapshot) []model.PlaceSnapshot {
	var pending []int
	for i := range snaps {
		if !snaps[i].Enriched && len(snaps[i].Periods) == 0 {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += c.cfg.DetailBatch {
		if start > 0 {
			if err := c.pace.Wait(ctx); err != nil {
				c.log.Warn().Err(err).Msg("enrichment aborted")
				break
			}
		}
		end := start + c.cfg.DetailBatch
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, idx := range pending[start:end] {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				detail, err := c.provider.Details(ctx, snaps[i].PlaceID)
				if err != nil {
					c.log.Warn().Err(err).Str("place_id", snaps[i].PlaceID).Msg("enrichment failed")
					return
				}
				// Keep the nearby-search coordinates if details omitted them.
				if detail.Latitude == 0 && detail.Longitude == 0 {
					detail.Latitude = snaps[i].Latitude
					detail.Longitude = snaps[i].Longitude
				}
				snaps[i] = *detail
			}(idx)
		}
		wg.Wait()
	}
	return snaps
}
