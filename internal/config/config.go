// Package config loads server configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries every tunable the server reads at startup.
type Config struct {
	ListenAddr  string
	RedisAddr   string // Empty disables the action historian.
	PostgresDSN string // Empty disables result persistence.
	JWTSecret   string

	// Soft per-phase time limits; advisory only.
	CharlestonTimeLimit time.Duration
	PlayingTimeLimit    time.Duration
}

// Load reads .env (if present) and the environment.
func Load(logger *logrus.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded")
	}
	cfg := Config{
		ListenAddr:          envOr("LISTEN_ADDR", ":8080"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		PostgresDSN:         os.Getenv("DATABASE_URL"),
		JWTSecret:           envOr("JWT_SECRET", "dev-secret-change-me"),
		CharlestonTimeLimit: envDuration("CHARLESTON_TIME_LIMIT", 10*time.Minute),
		PlayingTimeLimit:    envDuration("PLAYING_TIME_LIMIT", time.Hour),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
