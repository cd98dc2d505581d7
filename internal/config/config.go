package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bloodcell-ai-server/internal/domain"
)

// Manager loads and serves application configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bloodcell-ai-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("BLOODCELL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.upload_rate_per_second", 1.0)
	viper.SetDefault("server.upload_burst", 5)

	// Storage defaults
	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite_path", "data/bloodcell_analysis.db")
	viper.SetDefault("storage.postgres_url", "")
	viper.SetDefault("storage.report_cache_size", 128)

	// Model capability defaults: empty URLs select the built-in fallbacks
	viper.SetDefault("models.classifier.url", "")
	viper.SetDefault("models.classifier.timeout", "60s")
	viper.SetDefault("models.generator.url", "")
	viper.SetDefault("models.generator.timeout", "90s")
	viper.SetDefault("models.generator.max_length", 800)
	viper.SetDefault("models.generator.temperature", 0.7)

	// Upload defaults
	viper.SetDefault("uploads.dir", "uploads")
	viper.SetDefault("uploads.max_size_bytes", 10*1024*1024)

	// Progress defaults
	viper.SetDefault("progress.redis_url", "")
	viper.SetDefault("progress.ttl", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetStorageConfig returns storage configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// GetModelsConfig returns model capability configuration
func (m *Manager) GetModelsConfig() *domain.ModelsConfig {
	return &m.config.Models
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate storage configuration
	switch config.Storage.Driver {
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite storage requires a database path")
		}
	case "postgres":
		if config.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres storage requires a connection URL")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", config.Storage.Driver)
	}
	if config.Storage.ReportCacheSize <= 0 {
		return fmt.Errorf("report cache size must be positive: %d", config.Storage.ReportCacheSize)
	}

	// Validate upload configuration
	if config.Uploads.MaxSizeBytes <= 0 {
		return fmt.Errorf("upload size limit must be positive: %d", config.Uploads.MaxSizeBytes)
	}

	// Validate generator bounds
	if config.Models.Generator.MaxLength <= 0 {
		return fmt.Errorf("generator max length must be positive: %d", config.Models.Generator.MaxLength)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
