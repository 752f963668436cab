package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/checker"
	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/contrib"
	"github.com/leslieo2/go-healthchecks/internal/heartbeat"
	"github.com/leslieo2/go-healthchecks/internal/observability"
	"github.com/leslieo2/go-healthchecks/internal/security"
)

// app holds the long-lived resources every command shares.
type app struct {
	cfg        *config.Config
	logger     *observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	store      *heartbeat.SQLStore
	heartbeats *heartbeat.Service
	cache      *cache.Cache
	library    *checker.Library
}

type appOptions struct {
	// withMetrics registers Prometheus collectors; only the server exposes them.
	withMetrics bool
	// withTracing exports spans as configured.
	withTracing bool
}

func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	logger, err := observability.NewLogger(cfg.Observability.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		tracer: observability.NewNopTracer(),
		cache:  cache.New(cache.NoExpiration, 0),
	}

	if opts.withMetrics && cfg.Observability.Metrics.Enabled {
		a.metrics = observability.NewMetrics()
		if err := a.metrics.Register(); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	if opts.withTracing {
		if a.tracer, err = observability.NewTracer(cfg.Observability.Tracing); err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	a.store, err = heartbeat.Open(cfg.Storage, cfg.Heartbeat.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open heartbeat storage: %w", err)
	}
	a.heartbeats = heartbeat.NewService(a.store, logger, a.metrics)

	a.library = checker.NewLibrary()
	contrib.New(contrib.Deps{
		DB:         a.store.DB(),
		Migrations: a.store,
		Heartbeats: a.heartbeats,
		Cache:      a.cache,
	}).Register(a.library)

	return a, nil
}

// buildChecker turns the checks and access sections of cfg into a Checker.
// The server calls it again on every reload.
func (a *app) buildChecker(cfg *config.Config) (*checker.Checker, error) {
	return checker.New(
		checker.RegistryFromServices(cfg.Checks.Services),
		a.library,
		checker.Options{
			Policy:        security.NewAccessPolicy(cfg.Access),
			RemoteTimeout: cfg.Checks.RemoteTimeout,
			Parallel:      cfg.Checks.Parallel,
			Logger:        a.logger,
			Metrics:       a.metrics,
			Tracer:        a.tracer,
		},
	), nil
}

// migrate applies pending schema migrations.
func (a *app) migrate(ctx context.Context) error {
	pending, err := a.store.PendingMigrations(ctx)
	if err != nil {
		return err
	}
	if pending == 0 {
		return nil
	}
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate heartbeat storage: %w", err)
	}
	a.logger.Info("Heartbeat storage migrated", zap.Int("migrations", pending))
	return nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
