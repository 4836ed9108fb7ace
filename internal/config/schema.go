package config

import (
	"time"

	"clinigraph/internal/domain"
	"clinigraph/internal/layout"
	"clinigraph/internal/scoring"
)

// Config is the root configuration structure
type Config struct {
	Version    int                    `yaml:"version"`
	Server     ServerConfig           `yaml:"server"`
	Database   DatabaseConfig         `yaml:"database"`
	Logging    LoggingConfig          `yaml:"logging"`
	Layout     layout.Viewport        `yaml:"layout"`
	Thresholds domain.ThresholdConfig `yaml:"thresholds"`
	Scoring    scoring.Weights        `yaml:"scoring"`
	Execution  ExecutionConfig        `yaml:"execution"`

	source Location
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	Keepalive       Duration `yaml:"keepalive"` // SSE keepalive interval
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig selects the log level and encoding
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// ExecutionConfig holds execution graph settings
type ExecutionConfig struct {
	ConsensusNodeID string `yaml:"consensus_node_id"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
