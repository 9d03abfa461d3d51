package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port int
	Env  string

	// Logging: debug, info, warn, error
	LogLevel string

	// Scanning
	Scan ScanConfig
}

// ScanConfig holds process-wide scanning limits
type ScanConfig struct {
	// Number of files extracted concurrently
	Workers int

	// Ceiling on the number of files considered per scan
	MaxFiles int

	// Wall-clock ceiling for one scan, zero disables it
	Timeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnvInt("APIMAP_PORT", 8080),
		Env:      getEnv("APIMAP_ENV", "development"),
		LogLevel: getEnv("APIMAP_LOG_LEVEL", "info"),

		Scan: ScanConfig{
			Workers:  getEnvInt("APIMAP_WORKERS", runtime.GOMAXPROCS(0)),
			MaxFiles: getEnvInt("APIMAP_MAX_FILES", 5000),
			Timeout:  getEnvDuration("APIMAP_SCAN_TIMEOUT", 0),
		},
	}

	return cfg, nil
}

// Validate checks that limits are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("APIMAP_PORT out of range: %d", c.Port)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("APIMAP_WORKERS must be at least 1, got %d", c.Scan.Workers)
	}
	if c.Scan.MaxFiles < 1 {
		return fmt.Errorf("APIMAP_MAX_FILES must be at least 1, got %d", c.Scan.MaxFiles)
	}
	if c.Scan.Timeout < 0 {
		return fmt.Errorf("APIMAP_SCAN_TIMEOUT must not be negative")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
