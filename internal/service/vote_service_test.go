package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightpulse/nightpulse/internal/availability"
	"github.com/nightpulse/nightpulse/internal/config"
	"github.com/nightpulse/nightpulse/internal/model"
	"github.com/nightpulse/nightpulse/internal/places"
	"github.com/nightpulse/nightpulse/internal/queue"
	"github.com/nightpulse/nightpulse/internal/repository"
)

type memVenues struct {
	seq         uint64
	byID        map[uint64]*model.Venue
	failAt      int // fail the Nth Create when > 0
	calls       int
	placeMisses int // force not-found on the first N GetByPlaceID calls
}

func newMemVenues() *memVenues { return &memVenues{byID: map[uint64]*model.Venue{}} }

func (m *memVenues) GetByID(_ context.Context, id uint64) (*model.Venue, error) {
	if v, ok := m.byID[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, repository.ErrVenueNotFound
}

func (m *memVenues) GetByPlaceID(_ context.Context, placeID string) (*model.Venue, error) {
	if m.placeMisses > 0 {
		m.placeMisses--
		return nil, repository.ErrVenueNotFound
	}
	for _, v := range m.byID {
		if v.GooglePlaceID != nil && *v.GooglePlaceID == placeID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, repository.ErrVenueNotFound
}

func (m *memVenues) Create(_ context.Context, v *model.Venue) (uint64, error) {
	m.calls++
	if m.failAt > 0 && m.calls == m.failAt {
		return 0, errors.New("duplicate key")
	}
	m.seq++
	v.ID = m.seq
	cp := *v
	m.byID[v.ID] = &cp
	return v.ID, nil
}

func (m *memVenues) SetImageURL(_ context.Context, id uint64, url string) error {
	if v, ok := m.byID[id]; ok {
		v.ImageURL = &url
	}
	return nil
}

type memVotes struct {
	seq   uint64
	votes []model.Vote
}

func (m *memVotes) Create(_ context.Context, v *model.Vote) error {
	m.seq++
	v.ID = m.seq
	m.votes = append(m.votes, *v)
	return nil
}

func (m *memVotes) LatestByUser(_ context.Context, userID, venueID uint64) (*model.Vote, error) {
	var latest *model.Vote
	for i := range m.votes {
		v := m.votes[i]
		if v.UserID == userID && v.VenueID == venueID {
			if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
				cp := v
				latest = &cp
			}
		}
	}
	return latest, nil
}

func (m *memVotes) ListSince(_ context.Context, venueID uint64, boundary time.Time) ([]model.Vote, error) {
	var out []model.Vote
	for _, v := range m.votes {
		if v.VenueID == venueID && !v.CreatedAt.Before(boundary) {
			out = append(out, v)
		}
	}
	return out, nil
}

type stubCache struct {
	snaps    map[string]*model.PlaceSnapshot
	photoErr error
}

func (s *stubCache) ByID(_ context.Context, placeID string, _ *places.Coordinate) (*model.PlaceSnapshot, error) {
	if snap, ok := s.snaps[placeID]; ok {
		cp := *snap
		return &cp, nil
	}
	return nil, places.ErrPlaceNotFound
}

func (s *stubCache) Timezone(context.Context, float64, float64) (*time.Location, error) {
	return time.UTC, nil
}

func (s *stubCache) Photo(context.Context, string) ([]byte, error) {
	if s.photoErr != nil {
		return nil, s.photoErr
	}
	return []byte{0xff, 0xd8}, nil
}

type memImages struct{ saved int }

func (m *memImages) Save(_ context.Context, name string, _ []byte) (string, error) {
	m.saved++
	return "/images/" + name, nil
}

type recordingPublisher struct {
	voteEvents  []queue.VoteRecordedEvent
	promoEvents []queue.VenuePromotedEvent
	err         error
}

func (p *recordingPublisher) PublishVoteRecorded(_ context.Context, ev queue.VoteRecordedEvent) error {
	p.voteEvents = append(p.voteEvents, ev)
	return p.err
}

func (p *recordingPublisher) PublishVenuePromoted(_ context.Context, ev queue.VenuePromotedEvent) error {
	p.promoEvents = append(p.promoEvents, ev)
	return p.err
}

type movableClock struct{ t time.Time }

func (c *movableClock) Now() time.Time { return c.t }

func testVoteConfig() config.VoteConfig {
	return config.VoteConfig{
		ProximityEnabled: true,
		MaxDistanceMiles: 0.5,
		Cooldown:         30 * time.Minute,
		TieFavorsOpen:    true,
		ResetHour:        6,
	}
}

type fixture struct {
	svc    *VoteService
	venues *memVenues
	votes  *memVotes
	cache  *stubCache
	images *memImages
	pub    *recordingPublisher
	clock  *movableClock
}

func newFixture(cfg config.VoteConfig) *fixture {
	f := &fixture{
		venues: newMemVenues(),
		votes:  &memVotes{},
		cache:  &stubCache{snaps: map[string]*model.PlaceSnapshot{}},
		images: &memImages{},
		pub:    &recordingPublisher{},
		clock:  &movableClock{t: time.Date(2025, time.June, 11, 22, 0, 0, 0, time.UTC)},
	}
	f.svc = NewVoteService(f.venues, f.votes, f.cache, f.images, f.pub, f.clock, cfg, time.UTC, zerolog.Nop())
	return f
}

func (f *fixture) addVenue(v model.Venue) uint64 {
	id, _ := f.venues.Create(context.Background(), &v)
	return id
}

const (
	userLat = 40.7128
	userLon = -74.0060
)

func nearbyVenue() model.Venue {
	return model.Venue{Name: "Corner Bar", Latitude: 40.7130, Longitude: -74.0061}
}

func TestSubmitRecordsVote(t *testing.T) {
	f := newFixture(testVoteConfig())
	id := f.addVenue(nearbyVenue())

	res, err := f.svc.Submit(context.Background(), fmt.Sprint(id), 42, true, userLat, userLon)
	require.NoError(t, err)

	assert.Equal(t, id, res.Vote.VenueID)
	assert.True(t, res.Vote.IsOpen)
	assert.Equal(t, availability.StatusOpen, res.Status)
	assert.Equal(t, model.VoteStats{Total: 1, Open: 1}, res.Stats)
	assert.Greater(t, res.DistanceMiles, 0.0)
	require.Len(t, f.pub.voteEvents, 1)
	assert.Equal(t, "Corner Bar", f.pub.voteEvents[0].VenueName)
}

func TestSubmitProximityRejected(t *testing.T) {
	f := newFixture(testVoteConfig())
	far := nearbyVenue()
	far.Latitude = 40.8000 // ~6 miles north
	id := f.addVenue(far)

	_, err := f.svc.Submit(context.Background(), fmt.Sprint(id), 42, true, userLat, userLon)
	var pe *ProximityError
	require.ErrorAs(t, err, &pe)
	assert.Greater(t, pe.DistanceMiles, 0.5)
	assert.Empty(t, f.votes.votes)
}

func TestSubmitProximityDisabled(t *testing.T) {
	cfg := testVoteConfig()
	cfg.ProximityEnabled = false
	f := newFixture(cfg)
	far := nearbyVenue()
	far.Latitude = 40.8000
	id := f.addVenue(far)

	_, err := f.svc.Submit(context.Background(), fmt.Sprint(id), 42, true, userLat, userLon)
	require.NoError(t, err)
	assert.Len(t, f.votes.votes, 1)
}

func TestSubmitCooldown(t *testing.T) {
	f := newFixture(testVoteConfig())
	id := f.addVenue(nearbyVenue())
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, fmt.Sprint(id), 42, true, userLat, userLon)
	require.NoError(t, err)

	// Halfway through the window the repeat vote is rejected with the
	// remaining wait.
	f.clock.t = f.clock.t.Add(15 * time.Minute)
	_, err = f.svc.Submit(ctx, fmt.Sprint(id), 42, false, userLat, userLon)
	var ce *CooldownError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 15*time.Minute, ce.Remaining)
	assert.Len(t, f.votes.votes, 1)

	// Just past the window it succeeds.
	f.clock.t = f.clock.t.Add(15*time.Minute + time.Second)
	_, err = f.svc.Submit(ctx, fmt.Sprint(id), 42, false, userLat, userLon)
	require.NoError(t, err)
	assert.Len(t, f.votes.votes, 2)
}

func TestSubmitCooldownPerUser(t *testing.T) {
	f := newFixture(testVoteConfig())
	id := f.addVenue(nearbyVenue())
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, fmt.Sprint(id), 42, true, userLat, userLon)
	require.NoError(t, err)
	// A different user is not throttled by the first user's vote.
	_, err = f.svc.Submit(ctx, fmt.Sprint(id), 43, false, userLat, userLon)
	require.NoError(t, err)
	assert.Len(t, f.votes.votes, 2)
}

func TestSubmitUnknownVenue(t *testing.T) {
	f := newFixture(testVoteConfig())

	_, err := f.svc.Submit(context.Background(), "999", 42, true, userLat, userLon)
	assert.ErrorIs(t, err, repository.ErrVenueNotFound)

	_, err = f.svc.Submit(context.Background(), "google_missing", 42, true, userLat, userLon)
	assert.ErrorIs(t, err, repository.ErrVenueNotFound)
}

func TestSubmitPromotesExternalPlace(t *testing.T) {
	f := newFixture(testVoteConfig())
	f.cache.snaps["abc"] = &model.PlaceSnapshot{
		PlaceID:   "abc",
		Name:      "New Spot",
		Address:   "1 Main St",
		Category:  "bar",
		Latitude:  40.7130,
		Longitude: -74.0061,
		PhotoRef:  "ref123",
		Periods:   []model.PlacePeriod{{Day: 3, Open: "2200", Close: "0400"}},
	}

	res, err := f.svc.Submit(context.Background(), "google_abc", 42, true, userLat, userLon)
	require.NoError(t, err)

	// One registry venue exists, snapshotting the external data.
	require.Len(t, f.venues.byID, 1)
	v := f.venues.byID[res.Venue.ID]
	assert.Equal(t, "New Spot", v.Name)
	require.NotNil(t, v.GooglePlaceID)
	assert.Equal(t, "abc", *v.GooglePlaceID)
	require.Len(t, v.Windows, 1)
	assert.Equal(t, "22:00", *v.Windows[0].Start)
	assert.Equal(t, "04:00", *v.Windows[0].End)

	// Image fetched and persisted; promotion event published.
	assert.Equal(t, 1, f.images.saved)
	require.NotNil(t, v.ImageURL)
	require.Len(t, f.pub.promoEvents, 1)
	assert.Equal(t, "abc", f.pub.promoEvents[0].PlaceID)
}

func TestPromotionIdempotent(t *testing.T) {
	f := newFixture(testVoteConfig())
	f.cache.snaps["abc"] = &model.PlaceSnapshot{
		PlaceID: "abc", Name: "New Spot", Latitude: 40.7130, Longitude: -74.0061,
	}
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "google_abc", 42, true, userLat, userLon)
	require.NoError(t, err)
	// Second vote by another user finds the promoted venue instead of
	// re-promoting.
	_, err = f.svc.Submit(ctx, "google_abc", 43, true, userLat, userLon)
	require.NoError(t, err)

	assert.Len(t, f.venues.byID, 1)
	assert.Len(t, f.pub.promoEvents, 1)
	assert.Len(t, f.votes.votes, 2)
}

func TestPromotionImageFailureNonFatal(t *testing.T) {
	f := newFixture(testVoteConfig())
	f.cache.photoErr = errors.New("quota exceeded")
	f.cache.snaps["abc"] = &model.PlaceSnapshot{
		PlaceID: "abc", Name: "New Spot", Latitude: 40.7130, Longitude: -74.0061, PhotoRef: "ref",
	}

	res, err := f.svc.Submit(context.Background(), "google_abc", 42, true, userLat, userLon)
	require.NoError(t, err)
	assert.Nil(t, f.venues.byID[res.Venue.ID].ImageURL)
	assert.Len(t, f.votes.votes, 1)
}

func TestPromotionRaceFallsBackToExisting(t *testing.T) {
	f := newFixture(testVoteConfig())
	f.cache.snaps["abc"] = &model.PlaceSnapshot{
		PlaceID: "abc", Name: "New Spot", Latitude: 40.7130, Longitude: -74.0061,
	}
	// Simulate the unique-key violation from a concurrent promotion:
	// the first place lookup misses, the insert fails, and the row
	// exists by the time promote re-checks.
	pid := "abc"
	f.addVenue(model.Venue{Name: "Winner", Latitude: 40.7130, Longitude: -74.0061, GooglePlaceID: &pid})
	f.venues.failAt = f.venues.calls + 1
	f.venues.placeMisses = 1

	res, err := f.svc.Submit(context.Background(), "google_abc", 42, true, userLat, userLon)
	require.NoError(t, err)
	assert.Equal(t, "Winner", res.Venue.Name)
	assert.Len(t, f.venues.byID, 1)
}

func TestSubmitPublishFailureIgnored(t *testing.T) {
	f := newFixture(testVoteConfig())
	f.pub.err = errors.New("broker down")
	id := f.addVenue(nearbyVenue())

	_, err := f.svc.Submit(context.Background(), fmt.Sprint(id), 42, true, userLat, userLon)
	require.NoError(t, err)
	assert.Len(t, f.votes.votes, 1)
}
