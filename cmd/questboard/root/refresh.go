package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/questboard/internal/ui"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the account and recompute every derived value",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(true)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Context.RequestTimeout)
			defer cancel()

			if err := a.ensureSnapshot(ctx, true); err != nil {
				return err
			}
			snap, err := a.orch.Snapshot()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render(ui.IconDone+" refreshed"),
				ui.Muted.Render(fmt.Sprintf("(%d tasks, %d tags)", len(snap.Tasks), len(snap.Tags))))
			return nil
		},
	}
}
