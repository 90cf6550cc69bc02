// Package config loads and validates homestream configuration from JSON or
// YAML files, with environment variable overrides for deployment-specific
// settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Platform  PlatformConfig  `json:"platform" yaml:"platform"`
	NATS      NATSConfig      `json:"nats" yaml:"nats"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// PlatformConfig identifies the bridge instance that owns discovered
// components.
type PlatformConfig struct {
	ID          string `json:"id" yaml:"id"`
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// NATSConfig defines broker connection settings.
type NATSConfig struct {
	URL           string   `json:"url" yaml:"url"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	Timeout       Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	DrainTimeout  Duration `json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty"`
}

// DiscoveryConfig defines the discovery run parameters.
type DiscoveryConfig struct {
	// TopicPrefix is the first level of the configuration topic tree,
	// e.g. "homeassistant" or "devices".
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`

	// Component restricts discovery to one component kind. Empty means
	// all kinds.
	Component string `json:"component,omitempty" yaml:"component,omitempty"`

	// Duration is the length of the discovery window. Zero means the
	// session runs until stopped.
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// MetricsConfig defines the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port,omitempty" yaml:"port,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig defines log output settings.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json, text
}

// Default returns a configuration with working defaults for local
// development.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			ID:          "homestream",
			Environment: "dev",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Name:          "homestream",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			Timeout:       Duration(5 * time.Second),
			DrainTimeout:  Duration(30 * time.Second),
		},
		Discovery: DiscoveryConfig{
			TopicPrefix: "homeassistant",
			Duration:    Duration(30 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path, layered over defaults. The format is
// chosen by file extension: .json, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .json, .yaml or .yml)", ext)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides lets deployment environments override file settings
// without editing the file. Load calls it automatically; callers starting
// from Default apply it themselves.
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("HOMESTREAM_NATS_URL"); url != "" {
		c.NATS.URL = url
	}
	if id := os.Getenv("HOMESTREAM_PLATFORM_ID"); id != "" {
		c.Platform.ID = id
	}
	if prefix := os.Getenv("HOMESTREAM_TOPIC_PREFIX"); prefix != "" {
		c.Discovery.TopicPrefix = prefix
	}
	if level := os.Getenv("HOMESTREAM_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return fmt.Errorf("platform.id is required")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("nats.url must start with nats:// or tls://, got %q", c.NATS.URL)
	}
	if c.Discovery.TopicPrefix == "" {
		return fmt.Errorf("discovery.topic_prefix is required")
	}
	if strings.ContainsAny(c.Discovery.TopicPrefix, "/+#") {
		return fmt.Errorf("discovery.topic_prefix must be a single topic level, got %q", c.Discovery.TopicPrefix)
	}
	if c.Discovery.Duration < 0 {
		return fmt.Errorf("discovery.duration must not be negative")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be in 1..65535, got %d", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
