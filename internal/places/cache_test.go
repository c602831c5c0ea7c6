package places

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightpulse/nightpulse/internal/config"
	"github.com/nightpulse/nightpulse/internal/model"
)

// stubProvider counts calls and serves canned results.
type stubProvider struct {
	nearbyCalls  int
	detailCalls  int
	nearby       []model.PlaceSnapshot
	detailErrFor map[string]error
}

func (s *stubProvider) NearbySearch(_ context.Context, _, _ float64, _ string) ([]model.PlaceSnapshot, error) {
	s.nearbyCalls++
	out := make([]model.PlaceSnapshot, len(s.nearby))
	copy(out, s.nearby)
	return out, nil
}

func (s *stubProvider) Details(_ context.Context, placeID string) (*model.PlaceSnapshot, error) {
	s.detailCalls++
	if err := s.detailErrFor[placeID]; err != nil {
		return nil, err
	}
	open := true
	return &model.PlaceSnapshot{
		PlaceID:  placeID,
		Name:     "detail " + placeID,
		OpenNow:  &open,
		Periods:  []model.PlacePeriod{{Day: 3, Open: "2200", Close: "0400"}},
		Enriched: true,
	}, nil
}

func (s *stubProvider) Timezone(context.Context, float64, float64) (*time.Location, error) {
	return time.LoadLocation("America/New_York")
}

func (s *stubProvider) Photo(context.Context, string) ([]byte, error) {
	return []byte{0xff, 0xd8}, nil
}

func testConfig() config.PlacesConfig {
	return config.PlacesConfig{
		GridDeg:     0.005,
		TTL:         time.Hour,
		DetailBatch: 10,
		BatchPause:  time.Millisecond,
		Prefix:      "places",
	}
}

func newTestCache(p Provider) *Cache {
	return NewCache(NewMemoryStore(), p, testConfig(), zerolog.Nop())
}

func TestNearbyGridQuantizationSharesEntry(t *testing.T) {
	p := &stubProvider{nearby: []model.PlaceSnapshot{{PlaceID: "a", Name: "A"}}}
	c := newTestCache(p)
	ctx := context.Background()

	first, err := c.Nearby(ctx, 40.7128, -74.0060, "")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, p.nearbyCalls)

	// A nearby coordinate quantizing to the same cell must hit the cache.
	second, err := c.Nearby(ctx, 40.7129, -74.0061, "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.nearbyCalls)
	assert.Equal(t, first[0].PlaceID, second[0].PlaceID)
}

func TestNearbySearchTermKeysSeparately(t *testing.T) {
	p := &stubProvider{nearby: []model.PlaceSnapshot{{PlaceID: "a"}}}
	c := newTestCache(p)
	ctx := context.Background()

	_, err := c.Nearby(ctx, 40.7128, -74.0060, "")
	require.NoError(t, err)
	_, err = c.Nearby(ctx, 40.7128, -74.0060, "karaoke")
	require.NoError(t, err)
	assert.Equal(t, 2, p.nearbyCalls)

	// Term normalization: case and spacing do not split the cache.
	_, err = c.Nearby(ctx, 40.7128, -74.0060, "  Karaoke ")
	require.NoError(t, err)
	assert.Equal(t, 2, p.nearbyCalls)
}

func TestNearbyEnrichesMissingHours(t *testing.T) {
	p := &stubProvider{nearby: []model.PlaceSnapshot{
		{PlaceID: "a"},
		{PlaceID: "b", Periods: []model.PlacePeriod{{Day: 1, Open: "0900", Close: "1700"}}},
	}}
	c := newTestCache(p)

	snaps, err := c.Nearby(context.Background(), 40.7128, -74.0060, "")
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	// Only "a" lacked hours, so only one details call was made.
	assert.Equal(t, 1, p.detailCalls)
	assert.True(t, snaps[0].Enriched)
	assert.NotEmpty(t, snaps[0].Periods)
	// "b" already carried hours and is untouched.
	assert.False(t, snaps[1].Enriched)
}

func TestEnrichmentFailureIsSwallowed(t *testing.T) {
	p := &stubProvider{
		nearby:       []model.PlaceSnapshot{{PlaceID: "a", Name: "raw"}, {PlaceID: "b"}},
		detailErrFor: map[string]error{"a": errors.New("quota exceeded")},
	}
	c := newTestCache(p)

	snaps, err := c.Nearby(context.Background(), 40.7128, -74.0060, "")
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	// "a" stays unenriched but present; "b" was enriched.
	assert.Equal(t, "raw", snaps[0].Name)
	assert.False(t, snaps[0].Enriched)
	assert.True(t, snaps[1].Enriched)
}

func TestByIDUsesIndividualEntryThenGridScan(t *testing.T) {
	p := &stubProvider{nearby: []model.PlaceSnapshot{{PlaceID: "a", Name: "A"}, {PlaceID: "b", Name: "B"}}}
	c := newTestCache(p)
	ctx := context.Background()

	// Populate the grid (and the per-place entries) first.
	_, err := c.Nearby(ctx, 40.7128, -74.0060, "")
	require.NoError(t, err)
	detailsAfterFill := p.detailCalls

	snap, err := c.ByID(ctx, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, "b", snap.PlaceID)
	// Served from the individual entry without another provider call.
	assert.Equal(t, detailsAfterFill, p.detailCalls)
}

func TestByIDFallsBackToHintedGridFetch(t *testing.T) {
	p := &stubProvider{nearby: []model.PlaceSnapshot{{PlaceID: "x", Enriched: true}}}
	c := newTestCache(p)

	snap, err := c.ByID(context.Background(), "x", &Coordinate{Lat: 40.7128, Lon: -74.0060})
	require.NoError(t, err)
	assert.Equal(t, "x", snap.PlaceID)
	assert.Equal(t, 1, p.nearbyCalls)
}

func TestTimezoneCached(t *testing.T) {
	p := &stubProvider{}
	c := newTestCache(p)
	ctx := context.Background()

	loc, err := c.Timezone(ctx, 40.7128, -74.0060)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	loc2, err := c.Timezone(ctx, 40.7129, -74.0061)
	require.NoError(t, err)
	assert.Equal(t, loc.String(), loc2.String())
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), -time.Second))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}
