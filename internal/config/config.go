// Package config loads service configuration from the environment,
// with optional .env file support for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the portfolio service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	// Rate limiting for mutating endpoints.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// CORS origins allowed to call the API. "*" allows any.
	AllowedOrigins []string

	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; OS variables take precedence.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "err", err)
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		CacheTTL:           getEnvAsDuration("CACHE_TTL", 30*time.Second),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	slog.Warn("invalid integer in environment, using default", "key", key, "value", s)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	slog.Warn("invalid float in environment, using default", "key", key, "value", s)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "value", s)
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
