package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "bookedbarber", cfg.Recovery.SnapshotPrefix)
	assert.Equal(t, "./exports", cfg.Recovery.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CACHEOPS_REDIS_URL", "redis://cache.prod:6379/2")
	t.Setenv("CACHEOPS_AWS_REGION", "eu-west-1")
	t.Setenv("CACHEOPS_SNAPSHOT_PREFIX", "staging")
	t.Setenv("CACHEOPS_LOG_LEVEL", "debug")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, "redis://cache.prod:6379/2", cfg.Redis.URL)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "staging", cfg.Recovery.SnapshotPrefix)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched fields keep their defaults.
	assert.Equal(t, "./exports", cfg.Recovery.OutputDir)
}

func TestLoadFromEnv_EmptyValuesIgnored(t *testing.T) {
	t.Setenv("CACHEOPS_REDIS_URL", "")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("CACHEOPS_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvOrDefault("CACHEOPS_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("CACHEOPS_TEST_KEY_MISSING", "fallback"))
}
