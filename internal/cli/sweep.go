package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge PIN-unbound trace records past the expiry window once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Services.Sweeper.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d unbound trace records\n", n)
			return nil
		},
	}
}
