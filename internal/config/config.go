// Package config loads the ragts run configuration: detector thresholds,
// the scrollback cap, and the database path. Values come from an optional
// YAML file and can be overridden by CLI flags, matching the teacher's
// config.Load/LoadFrom shape but over ragts's own schema.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ragts/internal/section"
	"ragts/internal/vt"
)

// Config holds every tunable the pipeline accepts, all optional: a zero
// value Config resolves entirely to the design defaults.
type Config struct {
	Database   string      `yaml:"database"`
	Scrollback *int        `yaml:"scrollback_limit"`
	Detector   *Thresholds `yaml:"detector"`
}

// Thresholds mirrors section.Thresholds in YAML-friendly form; any omitted
// field falls back to section.DefaultThresholds().
type Thresholds struct {
	TimingGapSeconds  *float64 `yaml:"timing_gap_seconds"`
	BurstQuietSeconds *float64 `yaml:"burst_quiet_seconds"`
	BurstMinBytes     *int     `yaml:"burst_min_bytes"`
	MergeWindowEvents *int     `yaml:"merge_window_events"`
	MaxBoundaries     *int     `yaml:"max_boundaries"`
	MinSessionEvents  *int     `yaml:"min_session_events"`
}

// ConfigDir returns the ragts configuration directory (~/.ragts/).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ragts")
	}
	return filepath.Join(home, ".ragts")
}

// DefaultDatabasePath returns ~/.ragts/ragts.db, the CLI's default sqlite
// location when neither a config file nor the --db flag names one.
func DefaultDatabasePath() string {
	return filepath.Join(ConfigDir(), "ragts.db")
}

// Load reads the ragts config from ~/.ragts/config.yaml. If the file does
// not exist, it returns an empty Config with no error.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(ConfigDir(), "config.yaml"))
}

// LoadFrom reads the ragts config from the given path. If the file does
// not exist, it returns an empty Config with no error.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// DatabasePath resolves the configured database path, falling back to
// DefaultDatabasePath when unset.
func (c *Config) DatabasePath() string {
	if c == nil || c.Database == "" {
		return DefaultDatabasePath()
	}
	return c.Database
}

// ScrollbackLimit resolves the configured scrollback cap, falling back to
// vt.DefaultScrollbackLimit when unset.
func (c *Config) ScrollbackLimit() int {
	if c == nil || c.Scrollback == nil {
		return vt.DefaultScrollbackLimit
	}
	return *c.Scrollback
}

// DetectorThresholds resolves the configured detector thresholds, filling
// any unset field from section.DefaultThresholds().
func (c *Config) DetectorThresholds() section.Thresholds {
	t := section.DefaultThresholds()
	if c == nil || c.Detector == nil {
		return t
	}
	d := c.Detector
	if d.TimingGapSeconds != nil {
		t.TimingGapSeconds = *d.TimingGapSeconds
	}
	if d.BurstQuietSeconds != nil {
		t.BurstQuietSeconds = *d.BurstQuietSeconds
	}
	if d.BurstMinBytes != nil {
		t.BurstMinBytes = *d.BurstMinBytes
	}
	if d.MergeWindowEvents != nil {
		t.MergeWindowEvents = *d.MergeWindowEvents
	}
	if d.MaxBoundaries != nil {
		t.MaxBoundaries = *d.MaxBoundaries
	}
	if d.MinSessionEvents != nil {
		t.MinSessionEvents = *d.MinSessionEvents
	}
	return t
}
