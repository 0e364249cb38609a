package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/mes-backend/internal/app"
)

// appFactory builds the application for commands that need one.
type appFactory func(ctx context.Context) (*app.App, error)

// NewRootCommand creates the mes root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(app.New)
}

func newRootCommand(newApp appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mes",
		Short:         "Production traceability ledger",
		Long:          "Allocates trace records per produced unit and records their material consumption, process facts and disposition.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand(newApp))
	cmd.AddCommand(newMigrateCommand(newApp))
	cmd.AddCommand(newSeedCommand(newApp))
	cmd.AddCommand(newSweepCommand(newApp))
	cmd.AddCommand(newEventsCommand(newApp))

	return cmd
}
