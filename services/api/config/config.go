package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/02loveslollipop/howmuchwater/internal/store"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	DatabaseDriver string `validate:"oneof=sqlite postgres"`
	DatabasePath   string
	DatabaseURL    string `validate:"required_if=DatabaseDriver postgres"`
	Port           int    `validate:"gt=0,lte=65535"`
	BearerToken    string
	DefaultLimit   int    `validate:"gt=0"`
	LogLevel       string
	LogFormat      string `validate:"oneof=json console"`
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		DatabaseDriver: store.DriverSQLite,
		DatabasePath:   store.DefaultSQLitePath,
		Port:           8080,
		DefaultLimit:   200,
		LogLevel:       "info",
		LogFormat:      "json",
	}

	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.DatabaseDriver = strings.ToLower(v)
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.DefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// StoreOptions maps the database settings onto store.Options. The API only
// reads, so the conflict policy is left at its default.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver: c.DatabaseDriver,
		Path:   c.DatabasePath,
		URL:    c.DatabaseURL,
	}
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
