package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leslieo2/go-healthchecks/internal/observability"
)

func TestService_BeatAndRead(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)
	metrics := observability.NewMetrics()
	svc := NewService(store, nil, metrics)

	require.NoError(t, svc.Beat(ctx, "backup", UpdateOptions{Timeout: time.Minute}))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HeartbeatBeats.WithLabelValues("backup")))

	expired, err := svc.Expired(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	clock.Advance(2 * time.Minute)

	expired, err = svc.Expired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"backup"}, expired)

	statuses, err := svc.Statuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"backup": false, AllKey: false}, statuses)
}

func TestService_BeatError(t *testing.T) {
	store, _ := newTestStore(t)
	svc := NewService(store, nil, nil)
	assert.Error(t, svc.Beat(context.Background(), "", UpdateOptions{}))
}

func TestOnSuccess(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	svc := NewService(store, nil, nil)

	t.Run("success records a pulse", func(t *testing.T) {
		calls := 0
		fn := OnSuccess(svc, "ok-job", UpdateOptions{DefaultTimeout: time.Minute}, func(ctx context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, fn(ctx))
		assert.Equal(t, 1, calls)

		m, err := store.Get(ctx, "ok-job")
		require.NoError(t, err)
		assert.Equal(t, time.Minute, m.Timeout)
	})

	t.Run("error skips the pulse", func(t *testing.T) {
		boom := errors.New("boom")
		fn := OnSuccess(svc, "failing-job", UpdateOptions{}, func(ctx context.Context) error {
			return boom
		})

		assert.ErrorIs(t, fn(ctx), boom)
		_, err := store.Get(ctx, "failing-job")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("panic skips the pulse", func(t *testing.T) {
		fn := OnSuccess(svc, "panicking-job", UpdateOptions{}, func(ctx context.Context) error {
			panic("kaboom")
		})

		assert.Panics(t, func() { _ = fn(ctx) })
		_, err := store.Get(ctx, "panicking-job")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
