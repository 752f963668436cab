package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/leslieo2/go-healthchecks/internal/heartbeat"
)

func newHeartbeatsCommand(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "heartbeats",
		Aliases: []string{"hb"},
		Short:   "Inspect and manage heartbeat monitors",
	}
	cmd.AddCommand(
		newHeartbeatsListCommand(global),
		newHeartbeatsToggleCommand(global, "enable", "Include a monitor in the heartbeat checks", true),
		newHeartbeatsToggleCommand(global, "disable", "Exclude a monitor from the heartbeat checks", false),
	)
	return cmd
}

// withHeartbeats opens storage, migrates it and hands the service to fn.
func withHeartbeats(cmd *cobra.Command, global *globalFlags, fn func(ctx context.Context, svc *heartbeat.Service) error) error {
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
	return fn(cmd.Context(), a.heartbeats)
}

func newHeartbeatsListCommand(global *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitors with their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHeartbeats(cmd, global, func(ctx context.Context, svc *heartbeat.Service) error {
				monitors, err := svc.Store().List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(monitors)
				}
				return writeMonitorTable(cmd.OutOrStdout(), monitors, time.Now())
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print monitors as JSON")
	return cmd
}

func writeMonitorTable(out io.Writer, monitors []heartbeat.Monitor, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENABLED\tTIMEOUT\tLAST BEAT\tREMAINING\tSTATUS")
	for _, m := range monitors {
		last := "never"
		if m.LastBeat != nil {
			last = m.LastBeat.Local().Format(time.RFC3339)
		}
		remaining, status := "-", "ok"
		if m.IsExpired(now) {
			status = "expired"
		} else {
			remaining = m.RemainingTime(now).Truncate(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\t%s\n", m.Name, m.Enabled, m.Timeout, last, remaining, status)
	}
	return tw.Flush()
}

func newHeartbeatsToggleCommand(global *globalFlags, verb, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHeartbeats(cmd, global, func(ctx context.Context, svc *heartbeat.Service) error {
				err := svc.Store().SetEnabled(ctx, args[0], enabled)
				if errors.Is(err, heartbeat.ErrNotFound) {
					return fmt.Errorf("no heartbeat monitor named %q", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", args[0], verb)
				return nil
			})
		},
	}
}
