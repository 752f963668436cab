package config

import (
	"errors"
	"fmt"
	"os"
)

// TLSConfig contains TLS-specific configuration
type TLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
}

// DefaultTLSConfig returns default TLS configuration
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{}
}

// Validate validates the TLS configuration
func (c TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	for field, path := range map[string]string{"cert_file": c.CertFile, "key_file": c.KeyFile} {
		if path == "" {
			errs = append(errs, fmt.Errorf("tls.%s is required when TLS is enabled", field))
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("tls.%s not found: %s", field, path))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
