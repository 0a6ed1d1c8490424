package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_DRIVER", "DATABASE_PATH", "DATABASE_URL", "PORT", "API_PORT",
		"API_DEFAULT_LIMIT", "API_BEARER_TOKEN", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "daily_discharge.db", cfg.DatabasePath)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, 200, cfg.DefaultLimit)
	assert.Empty(t, cfg.BearerToken)
}

func TestLoadPortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr())

	t.Setenv("PORT", "7070")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, vars := range map[string]map[string]string{
		"bad port":        {"PORT": "http"},
		"bad limit":       {"API_DEFAULT_LIMIT": "0"},
		"postgres no url": {"DATABASE_DRIVER": "postgres"},
		"unknown driver":  {"DATABASE_DRIVER": "oracle"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
