package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(global *globalFlags) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply heartbeat storage migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, nil)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			pending, err := a.store.PendingMigrations(cmd.Context())
			if err != nil {
				return err
			}
			if status {
				fmt.Fprintf(cmd.OutOrStdout(), "%d pending migration(s)\n", pending)
				return nil
			}
			if err := a.migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", pending)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "Only report how many migrations are pending")
	return cmd
}
