package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cardflow/internal/config"
	"cardflow/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect processing jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		assetID  int64
		statuses []string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by asset and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.JobFilter{AssetID: assetID, Limit: limit}
			for _, value := range statuses {
				status, ok := queue.ParseJobStatus(value)
				if !ok {
					return fmt.Errorf("unknown job status %q", value)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.ListJobs(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						strconv.FormatInt(job.AssetID, 10),
						string(job.Type),
						string(job.Status),
						strconv.Itoa(job.Attempts),
						truncateCell(job.ErrorMessage, 48),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Asset", "Type", "Status", "Attempts", "Error"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "Only jobs for this asset")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (QUEUED, RUNNING, COMPLETE, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
