package config

import (
	"os"
	"runtime"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"APIMAP_PORT", "APIMAP_ENV", "APIMAP_LOG_LEVEL",
		"APIMAP_WORKERS", "APIMAP_MAX_FILES", "APIMAP_SCAN_TIMEOUT",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %s, want development", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.Scan.Workers != runtime.GOMAXPROCS(0) {
		t.Errorf("Scan.Workers = %d, want GOMAXPROCS", cfg.Scan.Workers)
	}
	if cfg.Scan.MaxFiles != 5000 {
		t.Errorf("Scan.MaxFiles = %d, want 5000", cfg.Scan.MaxFiles)
	}
	if cfg.Scan.Timeout != 0 {
		t.Errorf("Scan.Timeout = %v, want 0", cfg.Scan.Timeout)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APIMAP_PORT", "9090")
	t.Setenv("APIMAP_ENV", "production")
	t.Setenv("APIMAP_LOG_LEVEL", "debug")
	t.Setenv("APIMAP_WORKERS", "3")
	t.Setenv("APIMAP_MAX_FILES", "100")
	t.Setenv("APIMAP_SCAN_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %s, want production", cfg.Env)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.Scan.Workers != 3 {
		t.Errorf("Scan.Workers = %d, want 3", cfg.Scan.Workers)
	}
	if cfg.Scan.MaxFiles != 100 {
		t.Errorf("Scan.MaxFiles = %d, want 100", cfg.Scan.MaxFiles)
	}
	if cfg.Scan.Timeout != 30*time.Second {
		t.Errorf("Scan.Timeout = %v, want 30s", cfg.Scan.Timeout)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("APIMAP_PORT", "not-a-number")
	t.Setenv("APIMAP_SCAN_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080 fallback", cfg.Port)
	}
	if cfg.Scan.Timeout != 0 {
		t.Errorf("Scan.Timeout = %v, want 0 fallback", cfg.Scan.Timeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"huge port", func(c *Config) { c.Port = 70000 }, true},
		{"no workers", func(c *Config) { c.Scan.Workers = 0 }, true},
		{"no files", func(c *Config) { c.Scan.MaxFiles = 0 }, true},
		{"negative timeout", func(c *Config) { c.Scan.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, _ := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
