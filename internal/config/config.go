// Package config holds all vigil configuration. Values ship with defaults
// tuned for the reference knowledge base; everything here is load-once and
// read-only for the lifetime of the process.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all vigil configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Knowledge base snapshot used by the live resolver
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`

	// Event/verdict store
	Store StoreConfig `yaml:"store"`

	// Temporal trajectory detector
	Trajectory TrajectoryConfig `yaml:"trajectory"`

	// Vigilance aggregator
	Vigilance VigilanceConfig `yaml:"vigilance"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// KnowledgeBaseConfig locates the live ontology snapshot.
type KnowledgeBaseConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig configures the SQLite event store adapter.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// TrajectoryConfig configures the pattern detectors.
type TrajectoryConfig struct {
	// Lookback window for timeline mining
	LookbackHours int `yaml:"lookback_hours"`

	// Minimum distinct checks before a repeated symptom is emitted
	MinRepeatCount int `yaml:"min_repeat_count"`

	// Proximity bucket edges for trigger->symptom pairs
	StrongWindowHours int `yaml:"strong_window_hours"`
	MediumWindowHours int `yaml:"medium_window_hours"`

	// Negative-evidence re-scoring
	EvidenceHitWindowHours int     `yaml:"evidence_hit_window_hours"`
	LiftBoostThreshold     float64 `yaml:"lift_boost_threshold"`
	ZeroHitExposureMin     int     `yaml:"zero_hit_exposure_min"`
}

// VigilanceConfig configures the decayed risk aggregator.
type VigilanceConfig struct {
	WindowHours     int `yaml:"window_hours"`
	TopN            int `yaml:"top_n"`
	ActiveThreshold int `yaml:"active_threshold"`

	// Severity fallbacks for older persisted verdicts missing meta.severity.
	// The high fallback is fixed by the historical suite; the medium one is
	// a named constant pending verification against the full archive.
	HighSeverityFallback   int `yaml:"high_severity_fallback"`
	MediumSeverityFallback int `yaml:"medium_severity_fallback"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "vigil",
		Version: "1.0.0",
		KnowledgeBase: KnowledgeBaseConfig{
			Path: "kb/taxonomy.yaml",
		},
		Store: StoreConfig{
			DatabasePath: ".vigil/events.db",
		},
		Trajectory: TrajectoryConfig{
			LookbackHours:          14 * 24,
			MinRepeatCount:         3,
			StrongWindowHours:      6,
			MediumWindowHours:      12,
			EvidenceHitWindowHours: 12,
			LiftBoostThreshold:     2.0,
			ZeroHitExposureMin:     3,
		},
		Vigilance: VigilanceConfig{
			WindowHours:            72,
			TopN:                   3,
			ActiveThreshold:        50,
			HighSeverityFallback:   100,
			MediumSeverityFallback: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file, layering it over defaults. A missing file
// is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments steer paths and log level
// without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VIGIL_KB_PATH"); v != "" {
		c.KnowledgeBase.Path = v
	}
	if v := os.Getenv("VIGIL_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("VIGIL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the aggregators cannot run under.
func (c *Config) Validate() error {
	if c.Trajectory.MinRepeatCount < 1 {
		return fmt.Errorf("trajectory.min_repeat_count must be >= 1, got %d", c.Trajectory.MinRepeatCount)
	}
	if c.Trajectory.StrongWindowHours <= 0 || c.Trajectory.MediumWindowHours <= c.Trajectory.StrongWindowHours {
		return fmt.Errorf("proximity windows must satisfy 0 < strong < medium, got strong=%d medium=%d",
			c.Trajectory.StrongWindowHours, c.Trajectory.MediumWindowHours)
	}
	if c.Vigilance.TopN < 1 {
		return fmt.Errorf("vigilance.top_n must be >= 1, got %d", c.Vigilance.TopN)
	}
	if c.Vigilance.ActiveThreshold < 0 || c.Vigilance.ActiveThreshold > 100 {
		return fmt.Errorf("vigilance.active_threshold must be in [0,100], got %d", c.Vigilance.ActiveThreshold)
	}
	for name, v := range map[string]int{
		"vigilance.high_severity_fallback":   c.Vigilance.HighSeverityFallback,
		"vigilance.medium_severity_fallback": c.Vigilance.MediumSeverityFallback,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be in [0,100], got %d", name, v)
		}
	}
	return nil
}
