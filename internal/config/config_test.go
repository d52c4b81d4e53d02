package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("UPSTREAM_BASE_URL", "http://upstream.test")
	t.Setenv("GEOCODE_BASE_URL", "http://geocode.test")
}

func TestLoadServerConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2, cfg.SearchMinLength)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.InDelta(t, 1e-4, cfg.CacheEpsilonDeg, 1e-12)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "booking-events", cfg.KafkaOrderTopic)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SEARCH_DEBOUNCE", "150ms")
	t.Setenv("CACHE_EPSILON_DEG", "0.0002")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MIGRATE", "true")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 150*time.Millisecond, cfg.SearchDebounce)
	assert.InDelta(t, 2e-4, cfg.CacheEpsilonDeg, 1e-12)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.RunMigrations)
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("SEARCH_DEBOUNCE", "not-a-duration")
	t.Setenv("SEARCH_MIN_LENGTH", "0")

	_, err := LoadServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_BASE_URL")
	assert.Contains(t, err.Error(), "GEOCODE_BASE_URL")
	assert.Contains(t, err.Error(), "SEARCH_DEBOUNCE")
	assert.Contains(t, err.Error(), "SEARCH_MIN_LENGTH")
}
