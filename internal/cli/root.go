// Package cli implements the healthchecks command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/leslieo2/go-healthchecks/internal/config"
)

// ErrUnhealthy is returned by commands whose outcome is a failing health
// state rather than an operational error.
var ErrUnhealthy = errors.New("unhealthy")

// globalFlags are shared by every command.
type globalFlags struct {
	configFile    string
	storageDriver string
	storageDSN    string
	logLevel      string
}

// NewRootCmd wires the cobra command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "healthchecks",
		Short:         "Health check endpoints and heartbeat monitors",
		Long:          "healthchecks serves aggregated and per-service health checks over HTTP and records heartbeats from periodic jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "Path to configuration file (YAML or JSON)")
	pf.StringVar(&flags.storageDriver, "storage-driver", "", "Heartbeat storage driver: sqlite or postgres")
	pf.StringVar(&flags.storageDSN, "storage-dsn", "", "Heartbeat storage DSN (SQLite path or PostgreSQL URL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newServeCommand(flags),
		newBeatCommand(flags),
		newHeartbeatsCommand(flags),
		newReportCommand(flags),
		newMigrateCommand(flags),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUnhealthy):
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// loadConfig applies the global flags on top of file, env and defaults.
// Commands other than serve log to stderr so their stdout stays parseable.
func loadConfig(cmd *cobra.Command, flags *globalFlags, cli *config.CLIFlags) (*config.Config, error) {
	if cli == nil {
		cli = &config.CLIFlags{}
	}
	cli.FlagSet = cmd.Flags()
	cli.StorageDriver = &flags.storageDriver
	cli.StorageDSN = &flags.storageDSN
	cli.LogLevel = &flags.logLevel

	cfg, err := config.LoadConfig(flags.configFile, cli)
	if err != nil {
		return nil, err
	}
	if cmd.Name() != "serve" && cfg.Observability.Logging.Output == "stdout" {
		cfg.Observability.Logging.Output = "stderr"
	}
	return cfg, nil
}
