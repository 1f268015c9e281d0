package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired keys",
		Long:  "Run one expired-key sweep against the configured store, e.g. from cron when no server is running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(ctx context.Context, e *engines) error {
				n, err := e.sweeper.Sweep(ctx)
				if err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired keys\n", n)
				return nil
			})
		},
	}
}
