package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightpulse/nightpulse/internal/metrics"
	"github.com/nightpulse/nightpulse/internal/model"
)

const (
	defaultBaseURL    = "https://maps.googleapis.com/maps/api"
	nearbyRadiusM     = 1500
	photoMaxWidthPx   = 800
	maxPhotoBodyBytes = 5 << 20
)

// GoogleClient calls the Google Maps web services: Places nearby
// search, place details, the Time Zone API and the place photo
// endpoint.  It implements Provider.
type GoogleClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewGoogleClient constructs a client with the given API key.
func NewGoogleClient(apiKey string, log zerolog.Logger) *GoogleClient {
	return &GoogleClient{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "google_places").Logger(),
	}
}

// nearbyResponse mirrors the subset of the nearby-search payload we
// consume.
type nearbyResponse struct {
	Status  string        `json:"status"`
	Results []placeResult `json:"results"`
}

type detailsResponse struct {
	Status string      `json:"status"`
	Result placeResult `json:"result"`
}

type placeResult struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Address  string   `json:"formatted_address"`
	Rating   float64  `json:"rating"`
	Types    []string `json:"types"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	OpeningHours *struct {
		OpenNow *bool `json:"open_now"`
		Periods []struct {
			Open struct {
				Day  int    `json:"day"`
				Time string `json:"time"`
			} `json:"open"`
			Close *struct {
				Day  int    `json:"day"`
				Time string `json:"time"`
			} `json:"close"`
		} `json:"periods"`
	} `json:"opening_hours"`
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
}

func (p placeResult) toSnapshot() model.PlaceSnapshot {
	snap := model.PlaceSnapshot{
		PlaceID:   p.PlaceID,
		Name:      p.Name,
		Address:   p.Vicinity,
		Latitude:  p.Geometry.Location.Lat,
		Longitude: p.Geometry.Location.Lng,
		Rating:    p.Rating,
	}
	if snap.Address == "" {
		snap.Address = p.Address
	}
	if len(p.Types) > 0 {
		snap.Category = p.Types[0]
	}
	if len(p.Photos) > 0 {
		snap.PhotoRef = p.Photos[0].PhotoReference
	}
	if oh := p.OpeningHours; oh != nil {
		snap.OpenNow = oh.OpenNow
		for _, per := range oh.Periods {
			pp := model.PlacePeriod{Day: per.Open.Day, Open: per.Open.Time}
			if per.Close != nil {
				pp.Close = per.Close.Time
			}
			snap.Periods = append(snap.Periods, pp)
		}
	}
	return snap
}

// NearbySearch queries places around the coordinate, optionally
// narrowed by a free-text keyword.
func (g *GoogleClient) NearbySearch(ctx context.Context, lat, lon float64, keyword string) ([]model.PlaceSnapshot, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", lat, lon))
	q.Set("radius", fmt.Sprintf("%d", nearbyRadiusM))
	q.Set("type", "bar|night_club")
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	q.Set("key", g.apiKey)

	var resp nearbyResponse
	if err := g.getJSON(ctx, "/place/nearbysearch/json", q, &resp); err != nil {
		metrics.IncProviderCall("nearby", "error")
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		metrics.IncProviderCall("nearby", "bad_status")
		return nil, fmt.Errorf("nearby search status %s", resp.Status)
	}
	metrics.IncProviderCall("nearby", "ok")

	out := make([]model.PlaceSnapshot, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.toSnapshot())
	}
	return out, nil
}

// Details fetches opening hours, the live open hint and a photo
// reference for one place.
func (g *GoogleClient) Details(ctx context.Context, placeID string) (*model.PlaceSnapshot, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "place_id,name,formatted_address,geometry,rating,types,opening_hours,photos")
	q.Set("key", g.apiKey)

	var resp detailsResponse
	if err := g.getJSON(ctx, "/place/details/json", q, &resp); err != nil {
		metrics.IncProviderCall("details", "error")
		return nil, err
	}
	if resp.Status != "OK" {
		metrics.IncProviderCall("details", "bad_status")
		return nil, fmt.Errorf("place details status %s", resp.Status)
	}
	metrics.IncProviderCall("details", "ok")

	snap := resp.Result.toSnapshot()
	snap.Enriched = true
	return &snap, nil
}

// Timezone resolves the IANA timezone at a coordinate via the Time
// Zone API.
func (g *GoogleClient) Timezone(ctx context.Context, lat, lon float64) (*time.Location, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", lat, lon))
	q.Set("timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	q.Set("key", g.apiKey)

	var resp struct {
		Status     string `json:"status"`
		TimeZoneID string `json:"timeZoneId"`
	}
	if err := g.getJSON(ctx, "/timezone/json", q, &resp); err != nil {
		metrics.IncProviderCall("timezone", "error")
		return nil, err
	}
	if resp.Status != "OK" || resp.TimeZoneID == "" {
		metrics.IncProviderCall("timezone", "bad_status")
		return nil, fmt.Errorf("timezone status %s", resp.Status)
	}
	metrics.IncProviderCall("timezone", "ok")
	return time.LoadLocation(resp.TimeZoneID)
}

// Photo downloads the image behind a photo reference.  The endpoint
// redirects to the binary; the http client follows it.
func (g *GoogleClient) Photo(ctx context.Context, photoRef string) ([]byte, error) {
	q := url.Values{}
	q.Set("photo_reference", photoRef)
	q.Set("maxwidth", fmt.Sprintf("%d", photoMaxWidthPx))
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/place/photo?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		metrics.IncProviderCall("photo", "error")
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.IncProviderCall("photo", "bad_status")
		return nil, fmt.Errorf("photo fetch status %d", resp.StatusCode)
	}
	metrics.IncProviderCall("photo", "ok")
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBodyBytes))
}

func (g *GoogleClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
