// Package aggregate merges the internal venue registry with cached
// external place snapshots into a single ranked, paginated list.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightpulse/nightpulse/internal/availability"
	"github.com/nightpulse/nightpulse/internal/geo"
	"github.com/nightpulse/nightpulse/internal/model"
	"github.com/nightpulse/nightpulse/internal/places"
	"github.com/nightpulse/nightpulse/internal/repository"
)

// externalIDPrefix distinguishes provider place ids from registry ids
// in the public API without a separate lookup call.
const externalIDPrefix = "google_"

// VenueStore is the registry read access the pipeline needs.
type VenueStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Venue, error)
	GetByPlaceID(ctx context.Context, placeID string) (*model.Venue, error)
	ListWithinBox(ctx context.Context, box geo.BoundingBox) ([]model.Venue, error)
	SearchText(ctx context.Context, term string) ([]model.Venue, error)
}

// VoteStore is the vote ledger read access the pipeline needs.
type VoteStore interface {
	ListSince(ctx context.Context, venueID uint64, boundary time.Time) ([]model.Vote, error)
	ListSinceForVenues(ctx context.Context, ids []uint64, boundary time.Time) (map[uint64][]model.Vote, error)
}

// PlaceCache is the external snapshot access the pipeline needs.
type PlaceCache interface {
	Nearby(ctx context.Context, lat, lon float64, term string) ([]model.PlaceSnapshot, error)
	ByID(ctx context.Context, placeID string, hint *places.Coordinate) (*model.PlaceSnapshot, error)
	Timezone(ctx context.Context, lat, lon float64) (*time.Location, error)
}

// Options fixes the pipeline policy at construction.
type Options struct {
	SearchRadiusMiles float64
	ResetRef          *time.Location
	ResetHour         int
	Policy            availability.Policy
}

// Pipeline orchestrates candidate lookup, deduplication, status
// resolution, ranking and pagination.  Venues are read-only to it.
type Pipeline struct {
	venues VenueStore
	votes  VoteStore
	cache  PlaceCache
	clock  availability.Clock
	opts   Options
	log    zerolog.Logger
}

// New builds a Pipeline.
func New(venues VenueStore, votes VoteStore, cache PlaceCache, clock availability.Clock, opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		venues: venues,
		votes:  votes,
		cache:  cache,
		clock:  clock,
		opts:   opts,
		log:    log.With().Str("component", "aggregate").Logger(),
	}
}

// Query describes one nearby-venues request.
type Query struct {
	Lat      float64
	Lon      float64
	HasCoord bool
	Search   string
	Page     int
	Limit    int
}

// HourItem is the serialized form of one weekday's declared hours.
type HourItem struct {
	Weekday int     `json:"weekday"`
	Start   *string `json:"start,omitempty"`
	End     *string `json:"end,omitempty"`
	Closed  bool    `json:"closed,omitempty"`
}

// VenueItem is the shared read-only projection both sources serialize
// to, so sorting and rendering never branch on the underlying shape.
type VenueItem struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Category       string              `json:"category,omitempty"`
	Subcategory    string              `json:"subcategory,omitempty"`
	Location       string              `json:"location,omitempty"`
	Latitude       float64             `json:"latitude"`
	Longitude      float64             `json:"longitude"`
	Distance       float64             `json:"distance"`
	Status         availability.Status `json:"status"`
	LastVoteUpdate string              `json:"lastVoteUpdate"`
	VoteStats      model.VoteStats     `json:"voteStats"`
	Source         string              `json:"source"`
	Hours          []HourItem          `json:"operatingHours,omitempty"`
}

// Pagination describes the slice returned.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// SourceCounts reports how many merged results came from each source.
type SourceCounts struct {
	Database int `json:"database"`
	External int `json:"external"`
}

// Result is one aggregated response page.
type Result struct {
	Venues     []VenueItem  `json:"venues"`
	Pagination Pagination   `json:"pagination"`
	Sources    SourceCounts `json:"sources"`
}

// Nearby produces the merged, ranked, paginated venue list for a
// coordinate query or free-text search.
func (p *Pipeline) Nearby(ctx context.Context, q Query) (*Result, error) {
	var internal []model.Venue
	var err error
	if q.Search != "" {
		// Free-text search intentionally ignores locality; the user is
		// searching by name.
		internal, err = p.venues.SearchText(ctx, q.Search)
	} else {
		internal, err = p.venues.ListWithinBox(ctx, geo.BoxAround(q.Lat, q.Lon, p.opts.SearchRadiusMiles))
	}
	if err != nil {
		return nil, err
	}

	var external []model.PlaceSnapshot
	if q.HasCoord {
		external, err = p.cache.Nearby(ctx, q.Lat, q.Lon, q.Search)
		if err != nil {
			// Provider trouble degrades to registry-only results.
			p.log.Warn().Err(err).Msg("external place lookup failed")
			external = nil
		}
	}

	// Dedup before the per-venue transform: the internal record always
	// wins for a place id it carries, and no status is resolved twice
	// for the same physical place.
	linked := make(map[string]struct{}, len(internal))
	for i := range internal {
		if pid := internal[i].GooglePlaceID; pid != nil {
			linked[*pid] = struct{}{}
		}
	}
	kept := external[:0]
	for _, snap := range external {
		if _, dup := linked[snap.PlaceID]; !dup {
			kept = append(kept, snap)
		}
	}
	external = kept

	items := make([]VenueItem, 0, len(internal)+len(external))
	internalItems, err := p.projectInternal(ctx, q, internal)
	if err != nil {
		return nil, err
	}
	items = append(items, internalItems...)
	for _, snap := range external {
		items = append(items, p.projectExternal(q, snap))
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Distance < items[j].Distance })

	counts := SourceCounts{}
	for _, it := range items {
		if it.Source == model.SourceInternal {
			counts.Database++
		} else {
			counts.External++
		}
	}

	total := len(items)
	page, limit := q.Page, q.Limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	totalPages := (total + limit - 1) / limit

	return &Result{
		Venues:     items[start:end],
		Pagination: Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages},
		Sources:    counts,
	}, nil
}

// One resolves a single venue by public id.  Internal ids are numeric;
// external ids carry the provider prefix.
func (p *Pipeline) One(ctx context.Context, publicID string, hint *places.Coordinate) (*VenueItem, error) {
	q := Query{}
	if hint != nil {
		q = Query{Lat: hint.Lat, Lon: hint.Lon, HasCoord: true}
	}

	if placeID, ok := strings.CutPrefix(publicID, externalIDPrefix); ok {
		// An already promoted place is authoritative in the registry.
		if v, err := p.venues.GetByPlaceID(ctx, placeID); err == nil {
			items, err := p.projectInternal(ctx, q, []model.Venue{*v})
			if err != nil {
				return nil, err
			}
			return &items[0], nil
		}
		snap, err := p.cache.ByID(ctx, placeID, hint)
		if err != nil {
			return nil, err
		}
		item := p.projectExternal(q, *snap)
		return &item, nil
	}

	id, err := strconv.ParseUint(publicID, 10, 64)
	if err != nil {
		// A malformed id can never match a venue; not-found keeps the
		// failure taxonomy legible for clients.
		return nil, repository.ErrVenueNotFound
	}
	v, err := p.venues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := p.projectInternal(ctx, q, []model.Venue{*v})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// projectInternal resolves status and builds items for registry venues.
func (p *Pipeline) projectInternal(ctx context.Context, q Query, venues []model.Venue) ([]VenueItem, error) {
	if len(venues) == 0 {
		return nil, nil
	}
	now := p.clock.Now()
	boundary := availability.ResetBoundary(now, p.opts.ResetRef, p.opts.ResetHour)

	ids := make([]uint64, len(venues))
	for i := range venues {
		ids[i] = venues[i].ID
	}
	votesByVenue, err := p.votes.ListSinceForVenues(ctx, ids, boundary)
	if err != nil {
		return nil, err
	}

	items := make([]VenueItem, 0, len(venues))
	for i := range venues {
		v := &venues[i]
		votes := votesByVenue[v.ID]
		status := availability.Resolve(v, p.localNow(ctx, now, v.Latitude, v.Longitude), votes, p.opts.Policy)

		item := VenueItem{
			ID:          strconv.FormatUint(v.ID, 10),
			Name:        v.Name,
			Category:    v.Category,
			Subcategory: v.Subcategory,
			Location:    v.Location,
			Latitude:    v.Latitude,
			Longitude:   v.Longitude,
			Status:      status,
			VoteStats:   availability.Tally(votes),
			Source:      model.SourceInternal,
			Hours:       hourItems(v),
		}
		if q.HasCoord {
			item.Distance = geo.Round2(geo.Distance(q.Lat, q.Lon, v.Latitude, v.Longitude))
		}
		if len(votes) > 0 {
			// ListSince* orders newest first.
			item.LastVoteUpdate = caption(votes[0].CreatedAt, now)
		} else {
			item.LastVoteUpdate = "No votes yet"
		}
		items = append(items, item)
	}
	return items, nil
}

// projectExternal translates provider hints for a snapshot that has no
// registry record yet.
func (p *Pipeline) projectExternal(q Query, snap model.PlaceSnapshot) VenueItem {
	status := availability.StatusNotVoted
	if snap.OpenNow != nil {
		if *snap.OpenNow {
			status = availability.StatusOpen
		} else {
			status = availability.StatusClosed
		}
	}
	item := VenueItem{
		ID:             externalIDPrefix + snap.PlaceID,
		Name:           snap.Name,
		Category:       snap.Category,
		Location:       snap.Address,
		Latitude:       snap.Latitude,
		Longitude:      snap.Longitude,
		Status:         status,
		LastVoteUpdate: "No votes yet",
		Source:         model.SourceExternal,
	}
	if q.HasCoord {
		item.Distance = geo.Round2(geo.Distance(q.Lat, q.Lon, snap.Latitude, snap.Longitude))
	}
	return item
}

// localNow converts the instant into the venue's local civil time,
// falling back to UTC when the timezone capability fails.
func (p *Pipeline) localNow(ctx context.Context, now time.Time, lat, lon float64) time.Time {
	loc, err := p.cache.Timezone(ctx, lat, lon)
	if err != nil {
		p.log.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("timezone lookup failed, using UTC")
		return now.UTC()
	}
	return now.In(loc)
}

func hourItems(v *model.Venue) []HourItem {
	var out []HourItem
	for _, w := range v.Windows {
		out = append(out, HourItem{Weekday: w.Weekday, Start: w.Start, End: w.End})
	}
	for _, d := range v.ClosedDays {
		out = append(out, HourItem{Weekday: d, Closed: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out
}

// caption renders a human "last updated" string from the newest vote.
func caption(latest, now time.Time) string {
	d := now.Sub(latest)
	switch {
	case d < time.Minute:
		return "Updated just now"
	case d < time.Hour:
		return fmt.Sprintf("Updated %dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("Updated %dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("Updated %dd ago", int(d.Hours()/24))
	}
}
