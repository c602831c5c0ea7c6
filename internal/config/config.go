// Package config loads all runtime configuration from environment
// variables.  Required values are enforced with fatal errors at
// startup; policy knobs fall back to sensible defaults.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the service-wide configuration.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret string // secret used to verify bearer tokens

	// SearchRadiusMiles is the half-width of the bounding box used to
	// pick internal venue candidates for a coordinate query.
	SearchRadiusMiles float64

	Votes VoteConfig
}

// VoteConfig carries the operator-tunable vote submission and
// resolution policy.
type VoteConfig struct {
	// ProximityEnabled toggles the distance check on vote submission.
	ProximityEnabled bool
	// MaxDistanceMiles is the farthest a user may stand from a venue
	// and still vote on it.
	MaxDistanceMiles float64
	// Cooldown is the minimum gap between two votes by the same user
	// on the same venue.
	Cooldown time.Duration
	// TieFavorsOpen selects the majority tie-break; kept configurable
	// pending product confirmation of the tie policy.
	TieFavorsOpen bool
	// ResetTZ and ResetHour anchor the daily vote reset boundary to a
	// single reference timezone so the reset is simultaneous worldwide.
	ResetTZ   string
	ResetHour int
}

// Load reads the configuration.  Missing required variables abort
// startup with a fatal log message.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		SearchRadiusMiles: envFloat("SEARCH_RADIUS_MILES", 10),
		Votes: VoteConfig{
			ProximityEnabled: envBool("VOTE_PROXIMITY_ENABLED", true),
			MaxDistanceMiles: envFloat("VOTE_MAX_DISTANCE_MILES", 0.5),
			Cooldown:         envDur("VOTE_COOLDOWN", 30*time.Minute),
			TieFavorsOpen:    envBool("VOTE_TIE_FAVORS_OPEN", true),
			ResetTZ:          envStr("VOTE_RESET_TZ", "America/New_York"),
			ResetHour:        envInt("VOTE_RESET_HOUR", 6),
		},
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}
