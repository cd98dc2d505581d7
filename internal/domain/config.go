package domain

import (
	"time"
)

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Models   ModelsConfig   `mapstructure:"models"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Upload rate limiting (token bucket).
	UploadRatePerSecond float64 `mapstructure:"upload_rate_per_second"`
	UploadBurst         int     `mapstructure:"upload_burst"`
}

// StorageConfig represents report storage configuration.
// Driver selects the backend: "sqlite" (default) or "postgres".
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`

	// ReportCacheSize is the LRU capacity for hot report lookups.
	ReportCacheSize int `mapstructure:"report_cache_size"`
}

// ModelsConfig represents the external model capabilities.
type ModelsConfig struct {
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
}

// ClassifierConfig configures the cell-classification inference endpoint.
// An empty URL selects the built-in mock classifier.
type ClassifierConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GeneratorConfig configures the text-generation endpoint used for
// model-backed explanations. An empty URL selects deterministic narration.
type GeneratorConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxLength   int           `mapstructure:"max_length"`
	Temperature float64       `mapstructure:"temperature"`
}

// UploadsConfig represents image upload handling configuration.
type UploadsConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
}

// ProgressConfig configures progress tracking. A non-empty RedisURL selects
// the Redis-backed tracker for multi-instance deployments.
type ProgressConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
