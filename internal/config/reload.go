package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// HotReloadConfig controls whether serve swaps in new checks, access rules and
// rendering options when the config file changes on disk.
type HotReloadConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Debounce collapses the burst of events a single editor save produces.
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// DefaultHotReloadConfig returns default hot reload configuration
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:  true,
		Debounce: constants.DefaultHotReloadDebounce,
	}
}

// Active reports whether reloading is on and there is a file to watch.
// Defaults-only runs have nothing to reload.
func (h HotReloadConfig) Active(configFile string) bool {
	return h.Enabled && configFile != ""
}

// Validate validates the hot reload configuration
func (h HotReloadConfig) Validate() error {
	var errs []error
	if h.Debounce < 0 {
		errs = append(errs, errors.New("debounce must be non-negative"))
	}
	if h.Debounce > constants.MaxHotReloadDebounce {
		errs = append(errs, fmt.Errorf("debounce must not exceed %s", constants.MaxHotReloadDebounce))
	}
	return errors.Join(errs...)
}
