package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardflow/internal/daemonrun"
	"cardflow/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the processing daemon",
		Long: `Run the processing daemon until interrupted.

With --once, queued jobs are processed on the current goroutine until the
queue is empty, then the command exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !once {
				return daemonrun.Run(cmd.Context(), cfg)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt, err := daemonrun.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			if _, err := rt.Store.ResetStuckJobs(cmd.Context()); err != nil {
				return fmt.Errorf("reset stuck jobs: %w", err)
			}
			count, err := rt.Manager.Drain(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d job(s)\n", count)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Drain the queue and exit")
	return cmd
}
