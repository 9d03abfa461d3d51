package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dedup policies for endpoints sharing a canonical key
const (
	DedupDrop  = "drop"
	DedupMerge = "merge"
)

// ProjectConfig represents a .apimap.yaml file in a scanned repository
type ProjectConfig struct {
	Version string `yaml:"version"`

	// Framework detection override (express, spring, gin, ...)
	Framework string `yaml:"framework,omitempty"`

	// File patterns, doublestar syntax relative to the project root
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`

	// Traversal limits
	Scan ScanLimits `yaml:"scan"`

	// Dedup policy: drop (first wins) or merge
	Dedup string `yaml:"dedup,omitempty"`

	// Analytics thresholds and weights
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ScanLimits bounds a single traversal
type ScanLimits struct {
	MaxDepth      int   `yaml:"max_depth,omitempty"`
	MaxFiles      int   `yaml:"max_files,omitempty"`
	MaxFileBytes  int64 `yaml:"max_file_bytes,omitempty"`
	CacheCapacity int   `yaml:"cache_capacity,omitempty"`
}

// AnalyticsConfig holds the tunable constants of the analytics passes
type AnalyticsConfig struct {
	// Minimum similarity (0-100) for a match to be reported
	SimilarityThreshold int `yaml:"similarity_threshold,omitempty"`

	// Best-match score at or above which an endpoint is a potential duplicate
	DuplicateThreshold int `yaml:"duplicate_threshold,omitempty"`

	// Number of similar endpoints kept per endpoint
	TopMatches int `yaml:"top_matches,omitempty"`

	// Health score weights
	Weights HealthWeights `yaml:"weights"`
}

// HealthWeights are the sub-score weights of the health score
type HealthWeights struct {
	Security      float64 `yaml:"security,omitempty"`
	Documentation float64 `yaml:"documentation,omitempty"`
	Performance   float64 `yaml:"performance,omitempty"`
	Naming        float64 `yaml:"naming,omitempty"`
}

// DefaultProjectConfig returns sensible defaults
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Version: "1.0",
		Exclude: []string{
			"**/*.min.js",
			"**/*.test.*",
			"**/*.spec.*",
			"**/*_test.go",
			"**/*.d.ts",
		},
		Scan: ScanLimits{
			MaxDepth:      8,
			MaxFiles:      5000,
			MaxFileBytes:  1 << 20,
			CacheCapacity: 512,
		},
		Dedup: DedupDrop,
		Analytics: AnalyticsConfig{
			SimilarityThreshold: 50,
			DuplicateThreshold:  80,
			TopMatches:          3,
			Weights: HealthWeights{
				Security:      0.35,
				Documentation: 0.25,
				Performance:   0.20,
				Naming:        0.20,
			},
		},
	}
}

// LoadProjectConfig loads a .apimap.yaml from the given directory
func LoadProjectConfig(repoPath string) (*ProjectConfig, error) {
	configPath := filepath.Join(repoPath, ".apimap.yaml")

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Also try .apimap.yml
		configPath = filepath.Join(repoPath, ".apimap.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultProjectConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveProjectConfig saves the config to .apimap.yaml
func SaveProjectConfig(repoPath string, cfg *ProjectConfig) error {
	configPath := filepath.Join(repoPath, ".apimap.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Merge applies overrides from another config (e.g., CLI flags)
func (c *ProjectConfig) Merge(other *ProjectConfig) {
	if other == nil {
		return
	}

	if other.Framework != "" {
		c.Framework = other.Framework
	}

	if len(other.Include) > 0 {
		c.Include = other.Include
	}

	if len(other.Exclude) > 0 {
		c.Exclude = other.Exclude
	}

	if other.Scan.MaxDepth != 0 {
		c.Scan.MaxDepth = other.Scan.MaxDepth
	}

	if other.Scan.MaxFiles != 0 {
		c.Scan.MaxFiles = other.Scan.MaxFiles
	}

	if other.Scan.MaxFileBytes != 0 {
		c.Scan.MaxFileBytes = other.Scan.MaxFileBytes
	}

	if other.Scan.CacheCapacity != 0 {
		c.Scan.CacheCapacity = other.Scan.CacheCapacity
	}

	if other.Dedup != "" {
		c.Dedup = other.Dedup
	}

	a := other.Analytics
	if a.SimilarityThreshold != 0 {
		c.Analytics.SimilarityThreshold = a.SimilarityThreshold
	}
	if a.DuplicateThreshold != 0 {
		c.Analytics.DuplicateThreshold = a.DuplicateThreshold
	}
	if a.TopMatches != 0 {
		c.Analytics.TopMatches = a.TopMatches
	}
	if a.Weights != (HealthWeights{}) {
		c.Analytics.Weights = a.Weights
	}
}
