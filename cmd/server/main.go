package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nightpulse/nightpulse/internal/aggregate"
	"github.com/nightpulse/nightpulse/internal/availability"
	"github.com/nightpulse/nightpulse/internal/config"
	"github.com/nightpulse/nightpulse/internal/database"
	"github.com/nightpulse/nightpulse/internal/handler"
	"github.com/nightpulse/nightpulse/internal/metrics"
	"github.com/nightpulse/nightpulse/internal/places"
	"github.com/nightpulse/nightpulse/internal/repository"
	"github.com/nightpulse/nightpulse/internal/router"
	"github.com/nightpulse/nightpulse/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("APP_ENV") == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	cfg := config.Load()
	metrics.Register()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer func() { _ = db.Close() }()

	resetRef, err := time.LoadLocation(cfg.Votes.ResetTZ)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.Votes.ResetTZ).Msg("invalid reset timezone")
	}

	// Redis backs both the place cache and the rate limiter.  Without
	// it the cache degrades to in-process memory and the limiter is
	// disabled.
	rdb := config.NewRedisClient()
	var store places.Store
	if rdb != nil {
		store = places.NewRedisStore(rdb)
	} else {
		log.Warn().Msg("redis unavailable, using in-memory place cache")
		store = places.NewMemoryStore()
	}

	placesCfg := config.LoadPlacesConfig()
	provider := places.NewGoogleClient(placesCfg.APIKey, log)
	cache := places.NewCache(store, provider, placesCfg, log)

	venueRepo := repository.NewVenueRepo(db)
	voteRepo := repository.NewVoteRepo(db)
	clock := availability.SystemClock{}

	pipeline := aggregate.New(venueRepo, voteRepo, cache, clock, aggregate.Options{
		SearchRadiusMiles: cfg.SearchRadiusMiles,
		ResetRef:          resetRef,
		ResetHour:         cfg.Votes.ResetHour,
		Policy:            availability.Policy{TieFavorsOpen: cfg.Votes.TieFavorsOpen},
	}, log)

	images := &service.LocalImageStore{
		Dir:     envOr("IMAGE_DIR", "./images"),
		BaseURL: envOr("IMAGE_BASE_URL", "/images"),
	}
	publisher := service.NewAMQPPublisher(log)
	votes := service.NewVoteService(venueRepo, voteRepo, cache, images, publisher,
		clock, cfg.Votes, resetRef, log)

	e := echo.New()
	e.HideBanner = true
	e.Static(images.BaseURL, images.Dir)

	router.Register(e,
		&handler.VenueHandler{Pipeline: pipeline},
		&handler.VoteHandler{Votes: votes},
		cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
