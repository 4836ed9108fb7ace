// Package config provides configuration management for clinigraph.
//
// Config file locations (priority order):
//  1. --config flag (must exist)
//  2. $CLINIGRAPH_CONFIG
//  3. ./clinigraph.yaml
//  4. $XDG_CONFIG_HOME/clinigraph/config.yaml
//  5. ~/.config/clinigraph/config.yaml
//  6. /etc/clinigraph/config.yaml
//
// Without a match defaults are used. Config.Source reports which rule won.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"clinigraph/internal/domain"
	"clinigraph/internal/execution"
	"clinigraph/internal/layout"
	"clinigraph/internal/scoring"
)

// Load resolves the config file with Find and reads it. When nothing is
// found the defaults are returned.
func Load(explicit string) (*Config, error) {
	loc, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	if loc.Source == SourceDefaults {
		cfg := DefaultConfig()
		cfg.source = loc
		return cfg, nil
	}

	data, err := os.ReadFile(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", loc.Path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", loc.Path, err)
	}
	cfg.applyDefaults()
	cfg.source = loc
	return cfg, nil
}

// Source reports where the config was loaded from
func (c *Config) Source() Location {
	if c.source.Source == "" {
		return Location{Source: SourceDefaults}
	}
	return c.source
}

// Save writes config to the specified path, creating its directory
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
			Keepalive:       Duration(30 * time.Second),
		},
		Database:   DatabaseConfig{Path: "./clinigraph.db"},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
		Layout:     layout.DefaultViewport(),
		Thresholds: domain.DefaultThresholds(),
		Scoring:    scoring.DefaultWeights(),
		Execution:  ExecutionConfig{ConsensusNodeID: execution.DefaultConsensusNode},
	}
}

// applyDefaults fills in missing values with defaults and clamps ranges
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Server.Keepalive <= 0 {
		c.Server.Keepalive = d.Server.Keepalive
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Layout.Width <= 0 {
		c.Layout.Width = d.Layout.Width
	}
	if c.Layout.Height <= 0 {
		c.Layout.Height = d.Layout.Height
	}
	if c.Layout.Padding < 0 {
		c.Layout.Padding = d.Layout.Padding
	}
	if c.Layout.LayerSpacing <= 0 {
		c.Layout.LayerSpacing = d.Layout.LayerSpacing
	}
	if c.Scoring.HighSeverity <= 0 {
		c.Scoring.HighSeverity = d.Scoring.HighSeverity
	}
	if c.Execution.ConsensusNodeID == "" {
		c.Execution.ConsensusNodeID = d.Execution.ConsensusNodeID
	}

	c.Thresholds.Clamp()
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Source: %s\n", c.Source())
	summary += fmt.Sprintf("Addr: %s, Database: %s, Log: %s/%s\n",
		c.Server.Addr, c.Database.Path, c.Logging.Level, c.Logging.Format)
	summary += fmt.Sprintf("Thresholds: severity<=%d probability>=%.2f priority<=%d, consensus node: %s",
		c.Thresholds.Symptoms.SeverityThreshold,
		c.Thresholds.Diagnoses.ProbabilityThreshold,
		c.Thresholds.Treatments.PriorityThreshold,
		c.Execution.ConsensusNodeID)
	return summary
}
