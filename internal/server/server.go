package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/checker"
	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/observability"
	"github.com/leslieo2/go-healthchecks/internal/security"
)

// Builder assembles the Checker for a configuration. It runs once in New and
// again on every Reload.
type Builder func(cfg *config.Config) (*checker.Checker, error)

// Options carry the collaborators a Server does not create itself.
type Options struct {
	// ConfigFile is re-read by Reload. Empty means the default lookup of
	// config.LoadConfig.
	ConfigFile string
	Build      Builder

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// state is everything a request reads that a reload may replace.
type state struct {
	checker *checker.Checker
	checks  config.ChecksConfig
}

type Server struct {
	config     *config.Config
	configFile string
	build      Builder
	state      atomic.Pointer[state]
	router     chi.Router

	server        *http.Server
	metricsServer *http.Server

	rateLimiter *security.RateLimiter

	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	startTime time.Time
}

func New(cfg *config.Config, opts Options) (*Server, error) {
	if opts.Build == nil {
		return nil, errors.New("server: a checker builder is required")
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		if logger, err = observability.NewLogger(cfg.Observability.Logging); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NewNopTracer()
	}

	s := &Server{
		config:      cfg,
		configFile:  opts.ConfigFile,
		build:       opts.Build,
		rateLimiter: security.NewRateLimiter(cfg.Security.RateLimit),
		logger:      logger,
		metrics:     opts.Metrics,
		tracer:      tracer,
		startTime:   time.Now(),
	}

	if err := s.apply(cfg); err != nil {
		s.rateLimiter.Stop()
		return nil, err
	}
	s.router = s.routes()
	return s, nil
}

// routes builds the chi router. The error code header is read through the
// current state so a reload can rename it.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	s.applyMiddleware(r)
	r.Use(chimw.GetHead)

	r.Get("/", s.reportHandler)
	r.Get("/*", s.serviceHandler)

	return r
}

// Handler exposes the health endpoints, mostly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Checker returns the checker currently serving requests.
func (s *Server) Checker() *checker.Checker {
	return s.state.Load().checker
}

// apply builds and validates a checker for cfg and swaps it in. In-flight
// requests keep the state they loaded.
func (s *Server) apply(cfg *config.Config) error {
	c, err := s.build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build checks: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid checks: %w", err)
	}
	s.state.Store(&state{checker: c, checks: cfg.Checks})
	return nil
}

// Name identifies the server to the hot reload coordinator.
func (s *Server) Name() string {
	return "healthchecks-server"
}

// Reload re-reads the configuration file and replaces the checks, access
// policy and rendering options. Listener settings need a restart.
func (s *Server) Reload(ctx context.Context) (err error) {
	_, span := s.tracer.StartSpan(ctx, "healthchecks.reload")
	defer func() {
		observability.EndSpan(span, err)
		if s.metrics != nil {
			s.metrics.RecordReload(err)
		}
	}()

	cfg, err := config.LoadConfig(s.configFile, nil)
	if err != nil {
		s.logger.Error("Failed to reload configuration", zap.String("file", s.configFile), zap.Error(err))
		return err
	}
	if err := s.apply(cfg); err != nil {
		s.logger.Error("Failed to apply reloaded configuration", zap.Error(err))
		return err
	}

	s.logger.Info("Checks reloaded",
		zap.String("file", s.configFile),
		zap.Int("checks", len(cfg.Checks.Services)),
	)
	return nil
}

// Start serves until ctx is cancelled, then shuts both listeners down within
// the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:           s.config.GetServerAddress(),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("Starting server",
		zap.String("host", s.config.Server.Host),
		zap.String("port", s.config.Server.Port),
		zap.Int("checks", s.Checker().Registry().Len()),
		zap.Bool("tls", s.config.TLS.Enabled),
	)

	if s.metrics != nil && s.config.Observability.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(s.config.Observability.Metrics.Path, s.metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              s.config.GetMetricsAddress(),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.logger.Info("Starting metrics server", zap.String("port", s.config.Server.MetricsPort))
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLS.Enabled {
			err = s.server.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			s.logger.Error("Server failed", zap.Error(err))
			s.shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	return s.shutdown()
}

// shutdown stops the main and metrics listeners in parallel.
func (s *Server) shutdown() error {
	defer s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	if s.metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.metricsServer.Shutdown(ctx); err != nil {
				s.logger.Error("Failed to shutdown metrics server", zap.Error(err))
				errChan <- fmt.Errorf("metrics server shutdown: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shutdown main server", zap.Error(err))
			errChan <- fmt.Errorf("main server shutdown: %w", err)
		}
	}()

	wg.Wait()
	close(errChan)

	return <-errChan
}
