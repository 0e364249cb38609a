package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yungbote/mes-backend/internal/data/seed"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

func newSeedCommand(newApp appFactory) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load recipes, work orders, executions and counters from YAML",
		Long: `Load master data from a YAML fixture file.

Without --file the built-in development fixture is loaded. Records are
upserted by code; existing sequence counters are never moved backwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Migrate(); err != nil {
				return err
			}
			var sum seed.Summary
			err = a.DB.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var applyErr error
				sum, applyErr = seed.Apply(dbctx.Context{Ctx: ctx, Tx: tx}, a.Repos, f, a.Log)
				return applyErr
			})
			if err != nil {
				return fmt.Errorf("apply seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded recipes=%d work_orders=%d executions=%d counters=%d\n",
				sum.Recipes, sum.WorkOrders, sum.Executions, sum.Counters)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file (default: built-in fixture)")
	return cmd
}
