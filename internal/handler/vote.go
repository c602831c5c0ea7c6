package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nightpulse/nightpulse/internal/middleware"
	"github.com/nightpulse/nightpulse/internal/places"
	"github.com/nightpulse/nightpulse/internal/repository"
	"github.com/nightpulse/nightpulse/internal/service"
)

// VoteHandler serves vote submission.
type VoteHandler struct {
	Votes *service.VoteService
}

type voteRequest struct {
	IsOpen    *bool    `json:"isOpen"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Submit handles POST /v1/venues/:id/vote.  The caller's position is
// mandatory; the proximity rule has nothing to measure without it.
func (h *VoteHandler) Submit(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.IsOpen == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "isOpen is required"})
	}
	if req.Latitude == nil || req.Longitude == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "latitude and longitude are required"})
	}
	lat, lon := *req.Latitude, *req.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "coordinates out of range"})
	}

	res, err := h.Votes.Submit(c.Request().Context(), c.Param("id"), userID, *req.IsOpen, lat, lon)
	if err != nil {
		var pe *service.ProximityError
		var ce *service.CooldownError
		switch {
		case errors.As(err, &pe):
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":        "too far away to vote",
				"distance":     pe.DistanceMiles,
				"maxDistance":  pe.MaxMiles,
				"distanceUnit": "miles",
			})
		case errors.As(err, &ce):
			secs := int(ce.Remaining.Round(time.Second) / time.Second)
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":      "already voted recently",
				"retryAfter": secs,
			})
		case errors.Is(err, repository.ErrVenueNotFound), errors.Is(err, places.ErrPlaceNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"voteId": res.Vote.ID,
		"isOpen": res.Vote.IsOpen,
		"venue": echo.Map{
			"id":        res.Venue.ID,
			"name":      res.Venue.Name,
			"category":  res.Venue.Category,
			"location":  res.Venue.Location,
			"latitude":  res.Venue.Latitude,
			"longitude": res.Venue.Longitude,
		},
		"status":    res.Status,
		"voteStats": res.Stats,
		"distance":  res.DistanceMiles,
	})
}
