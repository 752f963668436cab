package cli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/leslieo2/go-healthchecks/internal/heartbeat"
)

func newBeatCommand(global *globalFlags) *cobra.Command {
	var (
		timeout        time.Duration
		defaultTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "beat NAME [-- COMMAND [ARGS...]]",
		Short: "Record a heartbeat pulse",
		Long: `Record a pulse for the named monitor, creating it on first use.

When a command follows "--" it is run first and the pulse is only recorded
if it exits successfully.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, command := args[0], args[1:]
			switch dash := cmd.ArgsLenAtDash(); {
			case dash == 0:
				return errors.New("missing monitor name before --")
			case dash < 0 && len(command) > 0:
				return fmt.Errorf("unexpected arguments %q: put the command after --", command)
			case dash > 1:
				return fmt.Errorf("beat takes a single monitor name, got %q", args[:dash])
			}

			cfg, err := loadConfig(cmd, global, nil)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if err := a.migrate(cmd.Context()); err != nil {
				return err
			}

			opts := heartbeat.UpdateOptions{
				DefaultTimeout: cfg.Heartbeat.DefaultTimeout,
				Timeout:        timeout,
			}
			if cmd.Flags().Changed("default-timeout") {
				opts.DefaultTimeout = defaultTimeout
			}

			if len(command) == 0 {
				return a.heartbeats.Beat(cmd.Context(), name, opts)
			}

			run := heartbeat.OnSuccess(a.heartbeats, name, opts, func(ctx context.Context) error {
				c := exec.CommandContext(ctx, command[0], command[1:]...)
				c.Stdin = cmd.InOrStdin()
				c.Stdout = cmd.OutOrStdout()
				c.Stderr = cmd.ErrOrStderr()
				return c.Run()
			})
			if err := run(cmd.Context()); err != nil {
				return fmt.Errorf("%s: %w", command[0], err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Set the monitor timeout on every pulse")
	cmd.Flags().DurationVar(&defaultTimeout, "default-timeout", 0, "Timeout for a monitor created by this pulse (defaults to heartbeat.default_timeout)")
	return cmd
}
