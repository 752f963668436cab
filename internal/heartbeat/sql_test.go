package heartbeat

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leslieo2/go-healthchecks/internal/config"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*SQLStore, *mockClock) {
	t.Helper()
	clock := &mockClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store, err := Open(config.StorageConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "heartbeats.db"),
	}, time.Hour, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "hb.db")
	store, err := Open(config.StorageConfig{Driver: "sqlite", DSN: path}, 0)
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
	assert.DirExists(t, filepath.Dir(path))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{Driver: "mysql", DSN: "x"}, 0)
	assert.Error(t, err)
}

func TestMigrate_IdempotentAndPending(t *testing.T) {
	ctx := context.Background()
	store, err := Open(config.StorageConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "m.db")}, 0)
	require.NoError(t, err)
	defer store.Close()

	pending, err := store.PendingMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), pending)

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	pending, err = store.PendingMigrations(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestUpdate_RegistersOnceWithDefaultTimeout(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Update(ctx, "svc", UpdateOptions{DefaultTimeout: 5 * time.Minute}))
	require.NoError(t, store.Update(ctx, "svc", UpdateOptions{DefaultTimeout: 5 * time.Minute}))

	monitors, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, monitors, 1)
	assert.Equal(t, "svc", monitors[0].Name)
	assert.Equal(t, 5*time.Minute, monitors[0].Timeout)
	assert.True(t, monitors[0].Enabled)
	assert.NotEmpty(t, monitors[0].ID)
}

func TestUpdate_TimeoutOverwrites(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	require.NoError(t, store.Update(ctx, "svc", UpdateOptions{DefaultTimeout: 5 * time.Minute}))
	clock.Advance(time.Minute)
	require.NoError(t, store.Update(ctx, "svc", UpdateOptions{Timeout: 10 * time.Minute}))

	m, err := store.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, m.Timeout)
	require.NotNil(t, m.LastBeat)
	assert.True(t, m.LastBeat.Equal(clock.Now()))

	monitors, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, monitors, 1)
}

func TestUpdate_DefaultTimeoutIgnoredAfterRegistration(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Update(ctx, "svc", UpdateOptions{DefaultTimeout: time.Minute}))
	require.NoError(t, store.Update(ctx, "svc", UpdateOptions{DefaultTimeout: time.Hour}))

	m, err := store.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, m.Timeout)
}

func TestUpdate_FallsBackToStoreDefault(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Update(ctx, "svc", UpdateOptions{}))

	m, err := store.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, m.Timeout)
}

func TestUpdate_RejectsReservedNames(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.Update(context.Background(), "", UpdateOptions{}))
	assert.Error(t, store.Update(context.Background(), AllKey, UpdateOptions{}))
}

func TestUpdate_ConcurrentFirstWriters(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Update(ctx, "racy", UpdateOptions{DefaultTimeout: time.Minute})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	monitors, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, monitors, 1)
}

func TestStatusByName(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	statuses, err := store.StatusByName(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{AllKey: true}, statuses)

	require.NoError(t, store.Update(ctx, "short", UpdateOptions{Timeout: time.Minute}))
	require.NoError(t, store.Update(ctx, "long", UpdateOptions{Timeout: time.Hour}))

	statuses, err = store.StatusByName(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"short": true, "long": true, AllKey: true}, statuses)

	clock.Advance(2 * time.Minute)

	statuses, err = store.StatusByName(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"short": false, "long": true, AllKey: false}, statuses)
}

func TestExpiredNames(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Update(ctx, name, UpdateOptions{Timeout: time.Minute}))
	}
	require.NoError(t, store.Update(ctx, "slow", UpdateOptions{Timeout: time.Hour}))

	names, err := store.ExpiredNames(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, names)

	clock.Advance(time.Minute)
	names, err = store.ExpiredNames(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, names, "expiry is strictly after last_beat + timeout")

	clock.Advance(time.Second)
	names, err = store.ExpiredNames(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestSetEnabled(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	require.NoError(t, store.Update(ctx, "job", UpdateOptions{Timeout: time.Minute}))
	clock.Advance(time.Hour)

	require.NoError(t, store.SetEnabled(ctx, "job", false))

	enabledOnly, err := store.ExpiredNames(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabledOnly)

	all, err := store.ExpiredNames(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"job"}, all)

	statuses, err := store.StatusByName(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{AllKey: true}, statuses)

	assert.ErrorIs(t, store.SetEnabled(ctx, "missing", true), ErrNotFound)
}

func TestGet_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: "postgres"}
	lite := &SQLStore{driver: "sqlite"}

	q := `UPDATE t SET a = ?, b = ? WHERE c = ?`
	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE c = $3`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}
