package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// ChecksConfig configures the check registry and how results are rendered
type ChecksConfig struct {
	// Services maps a check name to a reference: a library path such as
	// "contrib.check_database" or an http(s) URL.
	Services        map[string]string `json:"services" yaml:"services"`
	RemoteTimeout   time.Duration     `json:"remote_timeout" yaml:"remote_timeout"`
	ErrorCode       int               `json:"error_code" yaml:"error_code"`
	ErrorCodeHeader string            `json:"error_code_header" yaml:"error_code_header"`
	ETag            bool              `json:"etag" yaml:"etag"`
	Parallel        bool              `json:"parallel" yaml:"parallel"`
}

// DefaultChecksConfig returns default checks configuration
func DefaultChecksConfig() ChecksConfig {
	return ChecksConfig{
		Services:        map[string]string{},
		RemoteTimeout:   constants.DefaultRemoteTimeout,
		ErrorCode:       constants.DefaultErrorCode,
		ErrorCodeHeader: constants.DefaultErrorCodeHeader,
		ETag:            false,
		Parallel:        false,
	}
}

// Validate validates the checks configuration
func (c *ChecksConfig) Validate() error {
	var errs []error

	for name, ref := range c.Services {
		if name == "" {
			errs = append(errs, errors.New("services: check name cannot be empty"))
		}
		if strings.Contains(name, "/") {
			errs = append(errs, fmt.Errorf("services: check name %q cannot contain '/'", name))
		}
		if strings.TrimSpace(ref) == "" {
			errs = append(errs, fmt.Errorf("services[%s]: reference cannot be empty", name))
		}
	}

	if c.RemoteTimeout <= 0 {
		errs = append(errs, errors.New("remote_timeout must be positive"))
	}
	if c.ErrorCode < constants.MinStatusCode || c.ErrorCode > constants.MaxStatusCode {
		errs = append(errs, fmt.Errorf("error_code must be between %d and %d", constants.MinStatusCode, constants.MaxStatusCode))
	}
	if strings.ContainsAny(c.ErrorCodeHeader, " :\t\r\n") {
		errs = append(errs, errors.New("error_code_header is not a valid header name"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
