package root

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastygo/questboard/internal/ui"
	"github.com/fastygo/questboard/usecase/orchestrator"
)

func newDoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "do <action> [json-args]",
		Short: "Run an action against the remote account",
		Long: "Run one of the registered actions, e.g.\n\n" +
			"  questboard do score '{\"task_id\":\"...\",\"direction\":\"up\"}'\n" +
			"  questboard do sleep\n" +
			"  questboard do leave-challenge '{\"challenge_id\":\"...\",\"keep\":\"remove-all\"}'\n" +
			"  questboard do delete-tag '{\"tag_id\":\"...\"}'",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return errors.New("action name and optional JSON arguments are required")
			}
			if len(args) == 2 && !json.Valid([]byte(args[1])) {
				return errors.New("arguments must be valid JSON")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(true)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Context.RequestTimeout)
			defer cancel()

			var payload json.RawMessage
			if len(args) == 2 {
				payload = json.RawMessage(args[1])
			}
			result, err := a.dispatcher.ExecuteCommand(ctx, args[0], payload)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Good.Render(ui.IconDone+" "+args[0]))
			if result != nil {
				body, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(body))
			}
			// Actions schedule a follow-up refresh; let it land before exiting.
			if err := a.orch.Wait(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.Warn.Render(ui.IconWarn+" follow-up refresh did not finish"))
			}
			return nil
		},
	}
	cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, n := range []string{
			orchestrator.CommandScore,
			orchestrator.CommandSleep,
			orchestrator.CommandLeaveChallenge,
			orchestrator.CommandDeleteTag,
			orchestrator.CommandRefresh,
		} {
			if strings.HasPrefix(n, toComplete) {
				names = append(names, n)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
	return cmd
}
