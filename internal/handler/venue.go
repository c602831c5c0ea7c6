// Package handler exposes the HTTP surface: venue discovery, venue
// detail and vote submission.
package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nightpulse/nightpulse/internal/aggregate"
	"github.com/nightpulse/nightpulse/internal/places"
	"github.com/nightpulse/nightpulse/internal/repository"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// VenueHandler serves the aggregated venue read API.
type VenueHandler struct {
	Pipeline *aggregate.Pipeline
}

// List handles GET /v1/venues.  A coordinate pair or a search term is
// required; coordinates are never defaulted, so a missing pair is a
// client error rather than a query at (0,0).
func (h *VenueHandler) List(c echo.Context) error {
	q := aggregate.Query{
		Search: c.QueryParam("search"),
		Page:   1,
		Limit:  defaultLimit,
	}

	latRaw, lonRaw := coordParams(c)
	if latRaw != "" || lonRaw != "" {
		lat, lon, err := parseCoords(latRaw, lonRaw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		q.Lat, q.Lon, q.HasCoord = lat, lon, true
	}
	if !q.HasCoord && q.Search == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "latitude and longitude (or search) are required"})
	}

	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.Page = n
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	res, err := h.Pipeline.Nearby(c.Request().Context(), q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/venues/:id.  Optional lat/lon query params give
// the place cache a locality hint for external ids.
func (h *VenueHandler) Get(c echo.Context) error {
	var hint *places.Coordinate
	latRaw, lonRaw := coordParams(c)
	if latRaw != "" && lonRaw != "" {
		if lat, lon, err := parseCoords(latRaw, lonRaw); err == nil {
			hint = &places.Coordinate{Lat: lat, Lon: lon}
		}
	}

	item, err := h.Pipeline.One(c.Request().Context(), c.Param("id"), hint)
	if err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) || errors.Is(err, places.ErrPlaceNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, item)
}

// coordParams reads the coordinate pair, accepting the short lat/lon
// aliases alongside the canonical names.
func coordParams(c echo.Context) (string, string) {
	lat := c.QueryParam("latitude")
	if lat == "" {
		lat = c.QueryParam("lat")
	}
	lon := c.QueryParam("longitude")
	if lon == "" {
		lon = c.QueryParam("lon")
	}
	return lat, lon
}

// parseCoords validates a latitude/longitude pair.  Both members must
// be present, finite and inside the geographic range.
func parseCoords(latRaw, lonRaw string) (float64, float64, error) {
	if latRaw == "" || lonRaw == "" {
		return 0, 0, errors.New("latitude and longitude must be provided together")
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return 0, 0, errors.New("invalid latitude")
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return 0, 0, errors.New("invalid longitude")
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return 0, 0, errors.New("latitude out of range")
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return 0, 0, errors.New("longitude out of range")
	}
	return lat, lon, nil
}
