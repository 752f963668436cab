package heartbeat

import (
	"context"

	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/observability"
)

// Service is the API other packages use to record and read heartbeats, so
// they do not depend on how monitors are stored.
type Service struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewService(store Store, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Service{store: store, logger: logger, metrics: metrics}
}

// Store returns the backing store.
func (s *Service) Store() Store {
	return s.store
}

// Beat records a pulse, resetting the monitor's timer.
func (s *Service) Beat(ctx context.Context, name string, opts UpdateOptions) error {
	if err := s.store.Update(ctx, name, opts); err != nil {
		s.logger.Error("Failed to record heartbeat", zap.String("monitor", name), zap.Error(err))
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordBeat(name)
	}
	s.logger.Debug("Heartbeat recorded", zap.String("monitor", name))
	return nil
}

// Expired returns the names of enabled monitors that stopped beating.
func (s *Service) Expired(ctx context.Context) ([]string, error) {
	return s.store.ExpiredNames(ctx, true)
}

// Statuses returns name -> alive for enabled monitors, plus AllKey.
func (s *Service) Statuses(ctx context.Context) (map[string]bool, error) {
	return s.store.StatusByName(ctx, true)
}

// OnSuccess wraps fn so that every successful call records a pulse for name.
// Errors and panics from fn skip the pulse.
func OnSuccess(svc *Service, name string, opts UpdateOptions, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return svc.Beat(ctx, name, opts)
	}
}
