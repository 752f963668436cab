package config

import (
	"errors"
	"fmt"
)

// CredentialConfig is one allowed Basic-Auth username/password pair
type CredentialConfig struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// AccessConfig maps a check name, or "*" for every check without its own
// entry, to the credentials allowed to run it. An empty list leaves the check
// open.
type AccessConfig map[string][]CredentialConfig

// Validate validates the access configuration
func (a AccessConfig) Validate() error {
	var errs []error
	for name, creds := range a {
		if name == "" {
			errs = append(errs, errors.New("check name cannot be empty"))
		}
		for i, c := range creds {
			if c.Username == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: username cannot be empty", name, i))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
