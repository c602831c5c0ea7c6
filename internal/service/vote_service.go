// Package service implements vote submission with lazy promotion of
// external places, plus the event publisher behind it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nightpulse/nightpulse/internal/availability"
	"github.com/nightpulse/nightpulse/internal/config"
	"github.com/nightpulse/nightpulse/internal/geo"
	"github.com/nightpulse/nightpulse/internal/metrics"
	"github.com/nightpulse/nightpulse/internal/model"
	"github.com/nightpulse/nightpulse/internal/places"
	"github.com/nightpulse/nightpulse/internal/queue"
	"github.com/nightpulse/nightpulse/internal/repository"
)

const externalIDPrefix = "google_"

// ProximityError rejects a vote cast too far from the venue.  The
// measured distance travels with the error so the client can explain
// the denial.
type ProximityError struct {
	DistanceMiles float64
	MaxMiles      float64
}

func (e *ProximityError) Error() string {
	return fmt.Sprintf("too far away to vote: %.2f miles (max %.2f)", e.DistanceMiles, e.MaxMiles)
}

// CooldownError rejects a repeat vote inside the cooldown window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("already voted recently, retry in %s", e.Remaining.Round(time.Second))
}

// VenueStore is the registry access the vote flow needs.
type VenueStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Venue, error)
	GetByPlaceID(ctx context.Context, placeID string) (*model.Venue, error)
	Create(ctx context.Context, v *model.Venue) (uint64, error)
	SetImageURL(ctx context.Context, id uint64, url string) error
}

// VoteStore is the ledger access the vote flow needs.
type VoteStore interface {
	Create(ctx context.Context, v *model.Vote) error
	LatestByUser(ctx context.Context, userID, venueID uint64) (*model.Vote, error)
	ListSince(ctx context.Context, venueID uint64, boundary time.Time) ([]model.Vote, error)
}

// PlaceCache is the external snapshot access the vote flow needs.
type PlaceCache interface {
	ByID(ctx context.Context, placeID string, hint *places.Coordinate) (*model.PlaceSnapshot, error)
	Timezone(ctx context.Context, lat, lon float64) (*time.Location, error)
	Photo(ctx context.Context, photoRef string) ([]byte, error)
}

// VoteResult is returned to the caller for immediate feedback.
type VoteResult struct {
	Vote          model.Vote
	Venue         *model.Venue
	Status        availability.Status
	Stats         model.VoteStats
	DistanceMiles float64
}

// VoteService validates and records open/closed votes.  The cooldown
// check-then-insert is deliberately not linearizable across concurrent
// requests from the same user; two near-simultaneous votes may both
// land.  Accepted for civic-style crowd voting.
type VoteService struct {
	venues    VenueStore
	votes     VoteStore
	cache     PlaceCache
	images    ImageStore
	publisher Publisher
	clock     availability.Clock
	cfg       config.VoteConfig
	resetRef  *time.Location
	log       zerolog.Logger
}

// NewVoteService wires the vote flow.  resetRef must match cfg.ResetTZ.
func NewVoteService(venues VenueStore, votes VoteStore, cache PlaceCache, images ImageStore,
	publisher Publisher, clock availability.Clock, cfg config.VoteConfig, resetRef *time.Location,
	log zerolog.Logger) *VoteService {
	return &VoteService{
		venues:    venues,
		votes:     votes,
		cache:     cache,
		images:    images,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		resetRef:  resetRef,
		log:       log.With().Str("component", "vote_service").Logger(),
	}
}

// Submit records a vote for the venue identified by publicID.
// External-only places are promoted into the registry first; from then
// on they behave as internal venues.
func (s *VoteService) Submit(ctx context.Context, publicID string, userID uint64, isOpen bool, lat, lon float64) (*VoteResult, error) {
	venue, err := s.resolveVenue(ctx, publicID, lat, lon)
	if err != nil {
		return nil, err
	}

	distance := geo.Distance(lat, lon, venue.Latitude, venue.Longitude)
	if s.cfg.ProximityEnabled && distance > s.cfg.MaxDistanceMiles {
		metrics.IncVoteRejected("proximity")
		return nil, &ProximityError{DistanceMiles: geo.Round2(distance), MaxMiles: s.cfg.MaxDistanceMiles}
	}

	now := s.clock.Now()
	latest, err := s.votes.LatestByUser(ctx, userID, venue.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		if elapsed := now.Sub(latest.CreatedAt); elapsed < s.cfg.Cooldown {
			metrics.IncVoteRejected("cooldown")
			return nil, &CooldownError{Remaining: s.cfg.Cooldown - elapsed}
		}
	}

	vote := model.Vote{
		VenueID:   venue.ID,
		UserID:    userID,
		IsOpen:    isOpen,
		CreatedAt: now.UTC(),
	}
	if err := s.votes.Create(ctx, &vote); err != nil {
		return nil, err
	}
	metrics.IncVoteRecorded(isOpen)

	status, stats := s.resolve(ctx, venue, now)

	if err := s.publisher.PublishVoteRecorded(ctx, queue.VoteRecordedEvent{
		VoteID:     vote.ID,
		VenueID:    venue.ID,
		VenueName:  venue.Name,
		UserID:     userID,
		IsOpen:     isOpen,
		Status:     string(status),
		RecordedAt: vote.CreatedAt.Format(time.RFC3339),
	}); err != nil {
		s.log.Warn().Err(err).Uint64("venue_id", venue.ID).Msg("vote event publish failed")
	}

	return &VoteResult{
		Vote:          vote,
		Venue:         venue,
		Status:        status,
		Stats:         stats,
		DistanceMiles: geo.Round2(distance),
	}, nil
}

// resolveVenue maps a public id onto a registry venue, promoting an
// external place when this is its first vote.
func (s *VoteService) resolveVenue(ctx context.Context, publicID string, lat, lon float64) (*model.Venue, error) {
	placeID, external := strings.CutPrefix(publicID, externalIDPrefix)
	if !external {
		id, err := strconv.ParseUint(publicID, 10, 64)
		if err != nil {
			return nil, repository.ErrVenueNotFound
		}
		return s.venues.GetByID(ctx, id)
	}

	if v, err := s.venues.GetByPlaceID(ctx, placeID); err == nil {
		return v, nil
	} else if !errors.Is(err, repository.ErrVenueNotFound) {
		return nil, err
	}

	snap, err := s.cache.ByID(ctx, placeID, &places.Coordinate{Lat: lat, Lon: lon})
	if err != nil {
		return nil, repository.ErrVenueNotFound
	}
	return s.promote(ctx, snap)
}

// promote creates a registry venue from an external snapshot.  The
// image fetch is best-effort; promotion succeeds without it.
func (s *VoteService) promote(ctx context.Context, snap *model.PlaceSnapshot) (*model.Venue, error) {
	v := &model.Venue{
		Name:          snap.Name,
		Location:      snap.Address,
		Category:      snap.Category,
		Latitude:      snap.Latitude,
		Longitude:     snap.Longitude,
		GooglePlaceID: &snap.PlaceID,
		Windows:       windowsFromPeriods(snap.Periods),
	}
	if _, err := s.venues.Create(ctx, v); err != nil {
		// A concurrent vote may have promoted the same place; the
		// unique place-id column makes the second insert fail, and the
		// existing record wins.
		if existing, lookupErr := s.venues.GetByPlaceID(ctx, snap.PlaceID); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}
	metrics.IncPromotion()
	s.log.Info().Uint64("venue_id", v.ID).Str("place_id", snap.PlaceID).Msg("promoted external place")

	if snap.PhotoRef != "" {
		if url, err := s.fetchImage(ctx, snap.PhotoRef); err != nil {
			s.log.Warn().Err(err).Uint64("venue_id", v.ID).Msg("promotion image fetch failed")
		} else if err := s.venues.SetImageURL(ctx, v.ID, url); err != nil {
			s.log.Warn().Err(err).Uint64("venue_id", v.ID).Msg("image url update failed")
		} else {
			v.ImageURL = &url
		}
	}

	if err := s.publisher.PublishVenuePromoted(ctx, queue.VenuePromotedEvent{
		VenueID:    v.ID,
		PlaceID:    snap.PlaceID,
		Name:       v.Name,
		PromotedAt: s.clock.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Warn().Err(err).Uint64("venue_id", v.ID).Msg("promotion event publish failed")
	}
	return v, nil
}

func (s *VoteService) fetchImage(ctx context.Context, photoRef string) (string, error) {
	data, err := s.cache.Photo(ctx, photoRef)
	if err != nil {
		return "", err
	}
	return s.images.Save(ctx, uuid.New().String()+".jpg", data)
}

// resolve recomputes the venue's verdict after the vote landed.
func (s *VoteService) resolve(ctx context.Context, venue *model.Venue, now time.Time) (availability.Status, model.VoteStats) {
	boundary := availability.ResetBoundary(now, s.resetRef, s.cfg.ResetHour)
	votes, err := s.votes.ListSince(ctx, venue.ID, boundary)
	if err != nil {
		s.log.Warn().Err(err).Uint64("venue_id", venue.ID).Msg("post-vote tally failed")
	}

	localNow := now.UTC()
	if loc, err := s.cache.Timezone(ctx, venue.Latitude, venue.Longitude); err == nil {
		localNow = now.In(loc)
	}
	status := availability.Resolve(venue, localNow, votes, availability.Policy{TieFavorsOpen: s.cfg.TieFavorsOpen})
	return status, availability.Tally(votes)
}

// windowsFromPeriods converts provider "HHMM" periods into operating
// windows, keeping the first period per weekday.
func windowsFromPeriods(periods []model.PlacePeriod) []model.OperatingWindow {
	var out []model.OperatingWindow
	seen := map[int]bool{}
	for _, p := range periods {
		if seen[p.Day] {
			continue
		}
		seen[p.Day] = true
		w := model.OperatingWindow{Weekday: p.Day}
		if t := clockFromHHMM(p.Open); t != "" {
			w.Start = &t
		}
		if t := clockFromHHMM(p.Close); t != "" {
			w.End = &t
		}
		out = append(out, w)
	}
	return out
}

func clockFromHHMM(s string) string {
	if len(s) != 4 {
		return ""
	}
	return s[:2] + ":" + s[2:]
}
