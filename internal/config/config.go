package config

import (
	"os"
	"strconv"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Data     DataConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings. The URL is optional;
// without it the application runs without persistence.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

// DataConfig holds dataset input settings
type DataConfig struct {
	File string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:          getEnvOrDefault("DATABASE_URL", ""),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 5),
		},
		Data: DataConfig{
			File: getEnvOrDefault("GOMETA_DATA_FILE", ""),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
