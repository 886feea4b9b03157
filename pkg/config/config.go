// Package config provides configuration types and loading for the mock
// serving engine.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the serving engine configuration.
type Config struct {
	// HTTPPort is the listening port for mocked routes. Zero binds an
	// ephemeral port (useful in tests).
	HTTPPort int `json:"httpPort" yaml:"httpPort"`

	// MaxConns bounds the number of concurrently served connections.
	// Zero means unbounded.
	MaxConns int `json:"maxConns,omitempty" yaml:"maxConns,omitempty"`

	// ReadTimeout and WriteTimeout are per-connection timeouts in seconds.
	ReadTimeout  int `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout int `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`

	// IdleTimeout is the keep-alive idle timeout in seconds.
	IdleTimeout int `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty"`

	// RedirectBase is the external backend base URL tried before local
	// mock resolution. Empty disables upstream passthrough.
	RedirectBase string `json:"redirectBase,omitempty" yaml:"redirectBase,omitempty"`

	// UpstreamTimeout bounds passthrough calls, in seconds.
	UpstreamTimeout int `json:"upstreamTimeout,omitempty" yaml:"upstreamTimeout,omitempty"`

	// Definitions is the path of the YAML file holding mock definitions,
	// used by the file-backed definition store.
	Definitions string `json:"definitions,omitempty" yaml:"definitions,omitempty"`

	// MaxLogEntries bounds the in-memory request log ring.
	MaxLogEntries int `json:"maxLogEntries,omitempty" yaml:"maxLogEntries,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		HTTPPort:        8001,
		ReadTimeout:     30,
		WriteTimeout:    120,
		IdleTimeout:     60,
		UpstreamTimeout: 30,
		MaxLogEntries:   1000,
	}
}

// Load reads a YAML configuration file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("httpPort %d out of range", c.HTTPPort)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("maxConns must not be negative")
	}
	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("upstreamTimeout must not be negative")
	}
	return nil
}
