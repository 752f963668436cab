package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// HeartbeatConfig contains heartbeat monitor configuration
type HeartbeatConfig struct {
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`
}

// DefaultHeartbeatConfig returns default heartbeat configuration
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		DefaultTimeout: constants.DefaultHeartbeatTimeout,
	}
}

// Validate validates the heartbeat configuration
func (h HeartbeatConfig) Validate() error {
	if h.DefaultTimeout <= 0 {
		return errors.New("default_timeout must be positive")
	}
	return nil
}

// StorageConfig selects the database holding heartbeat monitors
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// DefaultStorageConfig returns default storage configuration
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Driver: constants.StorageDriverSQLite,
		DSN:    "healthchecks.db",
	}
}

// Validate validates the storage configuration
func (s StorageConfig) Validate() error {
	switch s.Driver {
	case constants.StorageDriverSQLite, constants.StorageDriverPostgres:
	default:
		return fmt.Errorf("driver must be one of: %s, %s", constants.StorageDriverSQLite, constants.StorageDriverPostgres)
	}
	if s.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}
