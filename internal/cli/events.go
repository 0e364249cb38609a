package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/mes-backend/internal/clients/redis"
)

func newEventsCommand(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print committed ledger events from the redis channel as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			bus := a.Clients.EventBus
			if bus == nil {
				return fmt.Errorf("REDIS_ADDR is not configured")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := bus.StartForwarder(ctx, func(env redis.Envelope) {
				_ = enc.Encode(env)
			}); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}
