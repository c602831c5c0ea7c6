// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nightpulse/nightpulse/internal/config"
	"github.com/nightpulse/nightpulse/internal/handler"
	"github.com/nightpulse/nightpulse/internal/middleware"
)

// Register mounts the full API surface on the provided Echo instance.
// Discovery endpoints are public; voting requires a bearer token.  The
// rate limiter covers every /v1 route and fails open without Redis.
func Register(e *echo.Echo, venues *handler.VenueHandler, votes *handler.VoteHandler,
	jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {

	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.Use(middleware.NewTokenBucket(rlCfg, rdb))

	v1.GET("/venues", venues.List)
	v1.GET("/venues/:id", venues.Get)

	v1.POST("/venues/:id/vote", votes.Submit, middleware.JWTAuth(jwtSecret))
}
