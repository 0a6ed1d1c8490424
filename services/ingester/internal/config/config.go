package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/02loveslollipop/howmuchwater/internal/nwis"
	"github.com/02loveslollipop/howmuchwater/internal/store"
)

const (
	defaultSite           = "03292494"
	defaultRequestTimeout = 30 * time.Second
	defaultRetryBackoff   = 500 * time.Millisecond
)

// Config holds runtime configuration for the ingester.
type Config struct {
	Site           string        `yaml:"site" validate:"required,max=58"`
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	DatabaseDriver string        `yaml:"database_driver" validate:"oneof=sqlite postgres"`
	DatabasePath   string        `yaml:"database_path"`
	DatabaseURL    string        `yaml:"database_url" validate:"required_if=DatabaseDriver postgres"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	MaxRetries     int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" validate:"gte=0"`
	ConflictPolicy string        `yaml:"conflict_policy" validate:"oneof=keep-existing replace"`
	DryRun         bool          `yaml:"dry_run"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format" validate:"oneof=json console"`
}

// StoreOptions maps the database settings onto store.Options.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver: c.DatabaseDriver,
		Path:   c.DatabasePath,
		URL:    c.DatabaseURL,
		Policy: store.ConflictPolicy(c.ConflictPolicy),
	}
}

// RetryPolicy maps the retry settings onto nwis.RetryPolicy.
func (c Config) RetryPolicy() nwis.RetryPolicy {
	return nwis.RetryPolicy{
		MaxRetries:      c.MaxRetries,
		InitialInterval: c.RetryBackoff,
		MaxInterval:     c.RequestTimeout,
	}
}

func defaults() Config {
	return Config{
		Site:           defaultSite,
		BaseURL:        nwis.DefaultBaseURL,
		DatabaseDriver: store.DriverSQLite,
		DatabasePath:   store.DefaultSQLitePath,
		RequestTimeout: defaultRequestTimeout,
		RetryBackoff:   defaultRetryBackoff,
		ConflictPolicy: string(store.KeepExisting),
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load reads configuration from an optional YAML file (INGEST_CONFIG_FILE),
// then environment variables (optionally .env), which take precedence.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := defaults()

	if path := env("INGEST_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read INGEST_CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := env("NWIS_SITE"); v != "" {
		cfg.Site = v
	}
	if v := env("NWIS_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := env("DATABASE_DRIVER"); v != "" {
		cfg.DatabaseDriver = strings.ToLower(v)
	}
	if v := env("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := env("INGEST_CONFLICT_POLICY"); v != "" {
		cfg.ConflictPolicy = strings.ToLower(v)
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := env("INGEST_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid INGEST_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := env("INGEST_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid INGEST_MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}

	if v := env("INGEST_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid INGEST_RETRY_BACKOFF: %w", err)
		}
		cfg.RetryBackoff = d
	}

	if dryRun := env("DRY_RUN"); dryRun != "" {
		cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
