package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReportCommand(global *globalFlags) *cobra.Command {
	var services []string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the configured checks once and print the report",
		Long: `Run every configured check without access restrictions and print the
results as JSON. The exit status is 1 when any check is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, nil)
			if err != nil {
				return err
			}
			if len(services) > 0 {
				selected, err := selectServices(cfg.Checks.Services, services)
				if err != nil {
					return err
				}
				cfg.Checks.Services = selected
			}
			// Access rules guard HTTP callers, not the operator.
			cfg.Access = nil

			a, err := newApp(cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			// report only reads; storage checks see the schema as it is.
			if pending, err := a.store.PendingMigrations(cmd.Context()); err != nil {
				return err
			} else if pending > 0 {
				a.logger.Warn("Heartbeat storage has pending migrations, run migrate",
					zap.Int("migrations", pending))
			}

			c, err := a.buildChecker(cfg)
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, "/", nil)
			if err != nil {
				return err
			}
			report, err := c.CreateReport(req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report.Results); err != nil {
				return err
			}
			if !report.Healthy {
				return ErrUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&services, "service", "s", nil, "Only run the named checks (repeatable)")
	return cmd
}

// selectServices keeps the named checks. Unknown names are an error so a typo
// cannot turn into an empty, healthy report.
func selectServices(configured map[string]string, names []string) (map[string]string, error) {
	selected := make(map[string]string, len(names))
	var unknown []string
	for _, name := range names {
		ref, ok := configured[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected[name] = ref
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown check(s): %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}
