package security

import (
	"net/http"

	"github.com/leslieo2/go-healthchecks/internal/config"
)

// Wildcard is the access policy key applied to checks without their own entry.
const Wildcard = "*"

// AccessPolicy maps a check name, or Wildcard, to the credentials allowed to
// run it. A specific entry wins over the wildcard, and a check with neither,
// or with an empty list, is unrestricted.
type AccessPolicy map[string][]Credentials

// NewAccessPolicy converts the access section of the configuration.
func NewAccessPolicy(cfg config.AccessConfig) AccessPolicy {
	if len(cfg) == 0 {
		return nil
	}
	policy := make(AccessPolicy, len(cfg))
	for name, creds := range cfg {
		list := make([]Credentials, 0, len(creds))
		for _, c := range creds {
			list = append(list, Credentials{Username: c.Username, Password: c.Password})
		}
		policy[name] = list
	}
	return policy
}

// Required returns the credential set guarding name.
func (p AccessPolicy) Required(name string) []Credentials {
	if creds, ok := p[name]; ok {
		return creds
	}
	return p[Wildcard]
}

// Allowed reports whether creds may run the check called name.
func (p AccessPolicy) Allowed(name string, creds Credentials, present bool) bool {
	required := p.Required(name)
	if len(required) == 0 {
		return true
	}
	if !present {
		return false
	}
	allowed := false
	for _, c := range required {
		if c.Equal(creds) {
			allowed = true
		}
	}
	return allowed
}

// Filter returns the subset of names the request is allowed to run, keeping
// the input order.
func (p AccessPolicy) Filter(r *http.Request, names []string) []string {
	if len(p) == 0 {
		return names
	}

	creds, present := BasicCredentials(r)
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if p.Allowed(name, creds, present) {
			kept = append(kept, name)
		}
	}
	return kept
}
