package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries process-level settings. Values come from the environment
// with a .env file as fallback for local development.
type Config struct {
	Addr          string
	PGDSN         string
	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:          envOr("PERMITDESK_ADDR", ":8080"),
		PGDSN:         strings.TrimSpace(os.Getenv("PERMITDESK_PG_DSN")),
		RateBurst:     envIntOr("PERMITDESK_RATE_BURST", 20),
		RatePerSecond: envIntOr("PERMITDESK_RATE_PER_SECOND", 10),
		MaxBodyBytes:  int64(envIntOr("PERMITDESK_MAX_BODY_BYTES", 1<<20)),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
