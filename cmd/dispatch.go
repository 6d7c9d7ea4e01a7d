package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/muster/internal/config"
	"github.com/shaharia-lab/muster/internal/dispatch"
	"github.com/shaharia-lab/muster/internal/storage"
)

// NewDispatchCmd returns the dispatch subcommand, which runs the fan-out for
// one pending request in the foreground.
func NewDispatchCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <request-id>",
		Short: "Deliver a single pending request and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			req, err := a.requests.GetRequest(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading request %s: %w", args[0], err)
			}
			if req == nil {
				return fmt.Errorf("request %s not found", args[0])
			}

			out := a.engine.Dispatch(ctx, dispatch.Trigger{
				RequestID: req.ID,
				Status:    req.Status,
				Message:   req.Message,
			})
			printOutcome(cmd, out)
			if out.Err != nil {
				return out.Err
			}
			return nil
		},
	}
}

func printOutcome(cmd *cobra.Command, out dispatch.Outcome) {
	w := cmd.OutOrStdout()
	if out.Skipped {
		if out.Status == storage.RequestStatusPending {
			fmt.Fprintf(w, "request %s skipped (claimed by another dispatch)\n", out.RequestID)
			return
		}
		fmt.Fprintf(w, "request %s skipped (status %s)\n", out.RequestID, out.Status)
		return
	}
	fmt.Fprintf(w, "request %s %s: sent=%d failed=%d pruned=%d\n",
		out.RequestID, out.Status, out.SentCount, out.FailedCount, out.Pruned)
}
