package main

import (
	"fmt"
	"sort"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"cardflow/internal/daemonrun"
	"cardflow/internal/logging"
	"cardflow/internal/queue"
	"cardflow/internal/stage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and stage health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rt, err := daemonrun.Build(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			summary := rt.Manager.Status(cmd.Context())

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			running, lockErr := daemonHoldsLock(cfg.LockPath())
			switch {
			case lockErr != nil:
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, lockErr.Error(), colorize))
			case running:
				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
			default:
				fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Storage", statusInfo, cfg.Storage.Mode, colorize))
			fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, fmt.Sprint(cfg.Workflow.WorkerCount), colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Stages", colorize) {
				fmt.Fprintln(out, line)
			}
			names := make([]string, 0, len(summary.StageHealth))
			for name := range summary.StageHealth {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				health := summary.StageHealth[name]
				kind := statusOK
				switch health.State() {
				case stage.StateUnhealthy:
					kind = statusError
				case stage.StateDegraded:
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(name, kind, health.Detail, colorize))
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Queue", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range queue.AllJobStatuses() {
				kind := statusInfo
				if status == queue.JobFailed && summary.JobStats[status] > 0 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Jobs "+string(status), kind, fmt.Sprint(summary.JobStats[status]), colorize))
			}
			for _, status := range queue.AllAssetStatuses() {
				kind := statusInfo
				if status == queue.AssetError && summary.AssetStats[status] > 0 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Assets "+string(status), kind, fmt.Sprint(summary.AssetStats[status]), colorize))
			}
			return nil
		},
	}
}

// daemonHoldsLock probes the daemon lock without keeping it.
func daemonHoldsLock(path string) (bool, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
