package config

import "os"

// LoadFromEnv overlays environment variables onto cfg. CLI flags still take
// precedence over both.
func LoadFromEnv(cfg *Config) {
	if url := os.Getenv("CACHEOPS_REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if pw := os.Getenv("CACHEOPS_REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if region := os.Getenv("CACHEOPS_AWS_REGION"); region != "" {
		cfg.AWS.Region = region
	}
	if prefix := os.Getenv("CACHEOPS_SNAPSHOT_PREFIX"); prefix != "" {
		cfg.Recovery.SnapshotPrefix = prefix
	}
	if dir := os.Getenv("CACHEOPS_OUTPUT_DIR"); dir != "" {
		cfg.Recovery.OutputDir = dir
	}
	if level := os.Getenv("CACHEOPS_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if addr := os.Getenv("CACHEOPS_METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}
}

// GetEnvOrDefault returns environment variable or default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
