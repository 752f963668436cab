package config

import (
	"errors"
	"fmt"
)

// Config represents the unified configuration structure
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Checks        ChecksConfig        `json:"checks" yaml:"checks"`
	Access        AccessConfig        `json:"access" yaml:"access"`
	Heartbeat     HeartbeatConfig     `json:"heartbeat" yaml:"heartbeat"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Security      SecurityConfig      `json:"security" yaml:"security"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	HotReload     HotReloadConfig     `json:"hot_reload" yaml:"hot_reload"`
	TLS           TLSConfig           `json:"tls" yaml:"tls"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Checks:        DefaultChecksConfig(),
		Access:        AccessConfig{},
		Heartbeat:     DefaultHeartbeatConfig(),
		Storage:       DefaultStorageConfig(),
		Security:      DefaultSecurityConfig(),
		Observability: DefaultObservabilityConfig(),
		HotReload:     DefaultHotReloadConfig(),
		TLS:           DefaultTLSConfig(),
	}
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server config validation failed: %w", err))
	}
	if err := c.Checks.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("checks config validation failed: %w", err))
	}
	if err := c.Access.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("access config validation failed: %w", err))
	}
	if err := c.Heartbeat.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("heartbeat config validation failed: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage config validation failed: %w", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("security config validation failed: %w", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability config validation failed: %w", err))
	}
	if err := c.HotReload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hot reload config validation failed: %w", err))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tls config validation failed: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
