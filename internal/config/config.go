// Package config holds process configuration shared by the CLI commands.
package config

type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	AWS      AWSConfig      `yaml:"aws"`
	Recovery RecoveryConfig `yaml:"recovery"`
	LogLevel string         `yaml:"log_level"`
	// MetricsAddr enables the /metrics endpoint during load tests when set,
	// e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
}

type RecoveryConfig struct {
	SnapshotPrefix string `yaml:"snapshot_prefix"`
	OutputDir      string `yaml:"output_dir"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Redis:    RedisConfig{URL: "redis://localhost:6379/0"},
		AWS:      AWSConfig{Region: "us-east-1"},
		Recovery: RecoveryConfig{SnapshotPrefix: "bookedbarber", OutputDir: "./exports"},
		LogLevel: "info",
	}
}
