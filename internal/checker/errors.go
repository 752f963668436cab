package checker

import "errors"

var (
	// ErrUnauthorized means the access policy removed a check the caller asked for.
	ErrUnauthorized = errors.New("access to check denied")
	// ErrUnresolvable means a path reference names no function in the library.
	// It is a configuration error and is never turned into a failing result.
	ErrUnresolvable = errors.New("check reference cannot be resolved")
)
