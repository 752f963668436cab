// Package contrib provides the built-in checks that configuration can refer
// to by path, such as "contrib.check_database".
package contrib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/leslieo2/go-healthchecks/internal/checker"
	"github.com/leslieo2/go-healthchecks/internal/heartbeat"
	"github.com/leslieo2/go-healthchecks/internal/security"
)

// Library paths of the built-in checks.
const (
	PathDatabase         = "contrib.check_database"
	PathCacheDefault     = "contrib.check_cache_default"
	PathDummyTrue        = "contrib.check_dummy_true"
	PathDummyFalse       = "contrib.check_dummy_false"
	PathOpenMigrations   = "contrib.check_open_migrations"
	PathHeartbeats       = "contrib.check_heartbeats"
	PathExpiredHeartbeat = "contrib.check_expired_heartbeats"
	PathRemoteAddr       = "contrib.check_remote_addr"
)

// MigrationSource reports schema migrations that still have to run.
type MigrationSource interface {
	PendingMigrations(ctx context.Context) (int, error)
}

// Deps are the resources the built-in checks inspect. Checks whose
// dependency is nil are not registered.
type Deps struct {
	DB         *sql.DB
	Migrations MigrationSource
	Heartbeats *heartbeat.Service
	Cache      *cache.Cache
}

// Checks holds the state shared by the built-in checks.
type Checks struct {
	deps               Deps
	migrationsComplete atomic.Bool
}

func New(deps Deps) *Checks {
	return &Checks{deps: deps}
}

// Register adds every built-in check whose dependency is available to lib.
func (c *Checks) Register(lib *checker.Library) {
	lib.MustRegister(PathDummyTrue, checker.FuncRef(CheckDummyTrue))
	lib.MustRegister(PathDummyFalse, checker.FuncRef(CheckDummyFalse))
	lib.MustRegister(PathRemoteAddr, checker.RequestRef(CheckRemoteAddr))

	if c.deps.DB != nil {
		lib.MustRegister(PathDatabase, checker.FuncRef(c.CheckDatabase))
	}
	if c.deps.Cache != nil {
		lib.MustRegister(PathCacheDefault, checker.FuncRef(c.CheckCacheDefault))
	}
	if c.deps.Migrations != nil {
		lib.MustRegister(PathOpenMigrations, checker.FuncRef(c.CheckOpenMigrations))
	}
	if c.deps.Heartbeats != nil {
		lib.MustRegister(PathHeartbeats, checker.FuncRef(c.CheckHeartbeats))
		lib.MustRegister(PathExpiredHeartbeat, checker.FuncRef(c.CheckExpiredHeartbeats))
	}
}

// CheckDatabase runs a trivial query.
func (c *Checks) CheckDatabase(ctx context.Context) (any, error) {
	var one int
	if err := c.deps.DB.QueryRowContext(ctx, "SELECT 1 -- Healthcheck").Scan(&one); err != nil {
		return nil, fmt.Errorf("database query: %w", err)
	}
	return one == 1, nil
}

// CheckCacheDefault writes, reads back and deletes a unique key.
func (c *Checks) CheckCacheDefault(ctx context.Context) (any, error) {
	key := "healthchecks:" + uuid.NewString()
	value := uuid.NewString()

	c.deps.Cache.Set(key, value, time.Minute)
	defer c.deps.Cache.Delete(key)

	got, found := c.deps.Cache.Get(key)
	if !found {
		return false, nil
	}
	return got == value, nil
}

// CheckOpenMigrations is true once no migrations are pending. The positive
// answer is remembered for the lifetime of the process.
func (c *Checks) CheckOpenMigrations(ctx context.Context) (any, error) {
	if c.migrationsComplete.Load() {
		return true, nil
	}
	pending, err := c.deps.Migrations.PendingMigrations(ctx)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return false, nil
	}
	c.migrationsComplete.Store(true)
	return true, nil
}

// CheckHeartbeats maps every enabled monitor to whether it is alive.
func (c *Checks) CheckHeartbeats(ctx context.Context) (any, error) {
	return c.deps.Heartbeats.Statuses(ctx)
}

// CheckExpiredHeartbeats lists expired monitors, or returns nil when none
// expired. A nil result is reported as false, so "nothing expired" makes
// this check fail; pair it with check_heartbeats for a boolean signal.
func (c *Checks) CheckExpiredHeartbeats(ctx context.Context) (any, error) {
	names, err := c.deps.Heartbeats.Expired(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

func CheckDummyTrue(context.Context) (any, error) {
	return true, nil
}

func CheckDummyFalse(context.Context) (any, error) {
	return false, nil
}

// CheckRemoteAddr returns the address of the client asking for the check.
func CheckRemoteAddr(r *http.Request) (any, error) {
	if r == nil {
		return nil, errors.New("no request")
	}
	return security.ClientIP(r), nil
}
