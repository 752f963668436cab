package security

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// Credentials is a Basic-Auth username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Equal compares both fields in constant time.
func (c Credentials) Equal(other Credentials) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(c.Username), []byte(other.Username))
	passMatch := subtle.ConstantTimeCompare([]byte(c.Password), []byte(other.Password))
	return userMatch&passMatch == 1
}

// BasicCredentials extracts credentials from an "Authorization: Basic" header.
// The decoded value is split at the first colon, so passwords may contain
// colons. A missing or malformed header yields ok == false.
func BasicCredentials(r *http.Request) (Credentials, bool) {
	if r == nil {
		return Credentials{}, false
	}
	return ParseBasic(r.Header.Get(constants.HeaderAuthorization))
}

// ParseBasic parses the value of an Authorization header.
func ParseBasic(header string) (Credentials, bool) {
	scheme, encoded, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return Credentials{}, false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Credentials{}, false
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return Credentials{}, false
	}
	return Credentials{Username: username, Password: password}, true
}
