package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/hotreload"
	"github.com/leslieo2/go-healthchecks/internal/server"
)

func newServeCommand(global *globalFlags) *cobra.Command {
	var (
		host            string
		port            string
		metricsPort     string
		readTimeout     time.Duration
		writeTimeout    time.Duration
		idleTimeout     time.Duration
		maxRequestSize  int64
		shutdownTimeout time.Duration
		remoteTimeout   time.Duration
		errorCode       int
		etag            bool
		parallel        bool
		rateLimit       bool
		rateLimitRPS    int
		hotReload       bool
		hotReloadDelay  time.Duration
		tlsEnabled      bool
		tlsCertFile     string
		tlsKeyFile      string
		noMigrate       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the health check HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, &config.CLIFlags{
				Host:            &host,
				Port:            &port,
				MetricsPort:     &metricsPort,
				ReadTimeout:     &readTimeout,
				WriteTimeout:    &writeTimeout,
				IdleTimeout:     &idleTimeout,
				MaxRequestSize:  &maxRequestSize,
				ShutdownTimeout: &shutdownTimeout,
				RemoteTimeout:   &remoteTimeout,
				ErrorCode:       &errorCode,
				ETag:            &etag,
				Parallel:        &parallel,
				RateLimit:       &rateLimit,
				RateLimitRPS:    &rateLimitRPS,
				HotReload:       &hotReload,
				ReloadDebounce:  &hotReloadDelay,
				TLSEnabled:      &tlsEnabled,
				TLSCertFile:     &tlsCertFile,
				TLSKeyFile:      &tlsKeyFile,
			})
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, config.ResolveConfigFile(global.configFile), !noMigrate)
		},
	}

	defaults := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&host, "host", defaults.Server.Host, "Host to listen on")
	f.StringVarP(&port, "port", "p", defaults.Server.Port, "Port for the health endpoints")
	f.StringVar(&metricsPort, "metrics-port", defaults.Server.MetricsPort, "Port for the Prometheus metrics server")
	f.DurationVar(&readTimeout, "read-timeout", defaults.Server.ReadTimeout, "HTTP server read timeout")
	f.DurationVar(&writeTimeout, "write-timeout", defaults.Server.WriteTimeout, "HTTP server write timeout")
	f.DurationVar(&idleTimeout, "idle-timeout", defaults.Server.IdleTimeout, "HTTP server idle timeout")
	f.Int64Var(&maxRequestSize, "max-request-size", defaults.Server.MaxRequestSize, "Maximum request size in bytes")
	f.DurationVar(&shutdownTimeout, "shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout")
	f.DurationVar(&remoteTimeout, "remote-timeout", defaults.Checks.RemoteTimeout, "Timeout for remote HTTP checks")
	f.IntVar(&errorCode, "error-code", defaults.Checks.ErrorCode, "HTTP status for unhealthy results")
	f.BoolVar(&etag, "etag", defaults.Checks.ETag, "Send ETags and answer matching If-None-Match with 304")
	f.BoolVar(&parallel, "parallel", defaults.Checks.Parallel, "Run the checks of a report concurrently")
	f.BoolVar(&rateLimit, "rate-limit-enabled", defaults.Security.RateLimit.Enabled, "Enable per-client rate limiting")
	f.IntVar(&rateLimitRPS, "rate-limit-rps", defaults.Security.RateLimit.RequestsPerSecond, "Requests per second allowed per client")
	f.BoolVar(&hotReload, "hot-reload", defaults.HotReload.Enabled, "Reload checks when the configuration file changes")
	f.DurationVar(&hotReloadDelay, "hot-reload-debounce", defaults.HotReload.Debounce, "Debounce time for hot reload events")
	f.BoolVar(&tlsEnabled, "tls-enabled", defaults.TLS.Enabled, "Serve HTTPS")
	f.StringVar(&tlsCertFile, "tls-cert-file", "", "TLS certificate file")
	f.StringVar(&tlsKeyFile, "tls-key-file", "", "TLS private key file")
	f.BoolVar(&noMigrate, "no-migrate", false, "Do not apply pending heartbeat storage migrations on start")

	return cmd
}

// serve runs the server until ctx is cancelled. configFile is watched for
// changes when hot reload is on.
func serve(ctx context.Context, cfg *config.Config, configFile string, autoMigrate bool) error {
	a, err := newApp(cfg, appOptions{withMetrics: true, withTracing: true})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			a.logger.Warn("Failed to release resources", zap.Error(err))
		}
	}()

	if autoMigrate {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	srv, err := server.New(cfg, server.Options{
		ConfigFile: configFile,
		Build:      a.buildChecker,
		Logger:     a.logger,
		Metrics:    a.metrics,
		Tracer:     a.tracer,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.HotReload.Active(configFile) {
		manager, err := startHotReload(a, srv, configFile, cfg.HotReload.Debounce)
		if err != nil {
			return err
		}
		defer manager.Stop()
	}

	a.logger.Info("Starting healthchecks",
		zap.String("address", cfg.GetServerAddress()),
		zap.Int("checks", len(cfg.Checks.Services)),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("rate_limit", cfg.IsRateLimitEnabled()),
	)
	return srv.Start(ctx)
}

// startHotReload watches configFile and reloads the server when it changes.
// Successful reloads also apply the new log level.
func startHotReload(a *app, srv *server.Server, configFile string, debounce time.Duration) (*hotreload.Manager, error) {
	manager, err := hotreload.NewManager(a.logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create hot reload manager: %w", err)
	}
	manager.SetDebounceTime(debounce)

	if err := manager.AddWatch(configFile); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", configFile, err)
	}
	if err := manager.RegisterReloadable(srv); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to register server for hot reload: %w", err)
	}
	if err := manager.AddListener("log-level", logLevelListener(a, configFile)); err != nil {
		manager.Stop()
		return nil, err
	}
	if err := manager.Start(); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to start hot reload: %w", err)
	}

	a.logger.Info("Hot reload enabled", zap.String("file", configFile))
	return manager, nil
}

func logLevelListener(a *app, configFile string) hotreload.Listener {
	return func(ctx context.Context, result hotreload.Result) error {
		if result.Err != nil {
			return nil
		}
		cfg, err := config.LoadConfig(configFile, nil)
		if err != nil {
			return err
		}
		return a.logger.SetLevel(cfg.Observability.Logging.Level)
	}
}

