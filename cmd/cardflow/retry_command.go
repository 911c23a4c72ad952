package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cardflow/internal/config"
	"cardflow/internal/queue"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <asset-id>...",
		Short: "Restart failed assets from OCR",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg, "asset")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, id := range ids {
					jobID, err := store.RetryAsset(cmd.Context(), id, cfg.TxTimeout())
					switch {
					case errors.Is(err, queue.ErrNotRetryable):
						fmt.Fprintf(out, "Asset %d is not in ERROR; skipped\n", id)
						failed++
					case err != nil:
						fmt.Fprintf(out, "Asset %d: %v\n", id, err)
						failed++
					default:
						fmt.Fprintf(out, "Asset %d requeued (OCR job %d)\n", id, jobID)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d asset(s) not retried", failed)
				}
				return nil
			})
		},
	}
}
