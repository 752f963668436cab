package heartbeat

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no monitor carries the requested name.
var ErrNotFound = errors.New("heartbeat monitor not found")

// UpdateOptions tune a single pulse. DefaultTimeout only applies when the
// monitor is created by this call; Timeout always overwrites the stored value.
type UpdateOptions struct {
	DefaultTimeout time.Duration
	Timeout        time.Duration
}

// Store persists heartbeat monitors.
type Store interface {
	// Update records a pulse for name, registering the monitor on first use.
	Update(ctx context.Context, name string, opts UpdateOptions) error
	// ExpiredNames lists expired monitors sorted by name.
	ExpiredNames(ctx context.Context, onlyEnabled bool) ([]string, error)
	// StatusByName maps every monitor to "not expired", plus the AllKey summary.
	StatusByName(ctx context.Context, onlyEnabled bool) (map[string]bool, error)

	List(ctx context.Context) ([]Monitor, error)
	Get(ctx context.Context, name string) (*Monitor, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error

	Migrate(ctx context.Context) error
	PendingMigrations(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
