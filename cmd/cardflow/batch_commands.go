package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cardflow/internal/comps"
	"cardflow/internal/config"
	"cardflow/internal/export"
	"cardflow/internal/logging"
	"cardflow/internal/queue"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect batches",
	}
	batchCmd.AddCommand(newBatchListCommand(ctx))
	batchCmd.AddCommand(newBatchShowCommand(ctx))
	batchCmd.AddCommand(newBatchExportCommand(ctx))
	return batchCmd
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				batches, err := store.ListBatches(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, batches)
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, batch := range batches {
					rows = append(rows, []string{
						strconv.FormatInt(batch.ID, 10),
						batch.Name,
						string(batch.Status),
						fmt.Sprintf("%d/%d", batch.ProcessedCount, batch.TotalCount),
						batch.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Status", "Ready", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newBatchShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a batch and its assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				batch, err := store.GetBatch(cmd.Context(), id)
				if err != nil {
					return err
				}
				assets, err := store.ListAssets(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"batch": batch, "assets": assets})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %d: %s [%s] %d/%d ready\n\n", batch.ID, batch.Name, batch.Status, batch.ProcessedCount, batch.TotalCount)
				rows := make([][]string, 0, len(assets))
				totals := make(map[string]float64)
				for _, asset := range assets {
					if asset.Status == queue.AssetReady && asset.ValuationCurrency != "" {
						totals[asset.ValuationCurrency] += asset.ValuationAmount
					}
					rows = append(rows, []string{
						strconv.FormatInt(asset.ID, 10),
						asset.FileName(),
						string(asset.Status),
						truncateCell(comps.FirstLine(asset.OCRText), 32),
						formatValue(asset),
						truncateCell(asset.ErrorMessage, 40),
					})
				}
				fmt.Fprintln(out, renderTableWithFooter(
					[]string{"Asset", "File", "Status", "Text", "Value", "Error"},
					rows,
					[]string{"", "", "", "Total", formatTotals(totals), ""},
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newBatchExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "export <batch-id>",
		Short: "Write an XLSX valuation report for a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				data, err := export.NewReport(store, logging.NewNop()).BatchXLSX(cmd.Context(), id)
				if err != nil {
					return err
				}
				target := strings.TrimSpace(outputPath)
				if target == "" {
					target = filepath.Join(cfg.Paths.DataDir, "exports", fmt.Sprintf("batch-%d.xlsx", id))
				}
				if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
					return fmt.Errorf("create export directory: %w", err)
				}
				if err := os.WriteFile(target, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default <data_dir>/exports/batch-<id>.xlsx)")
	return cmd
}

func formatValue(asset *queue.Asset) string {
	if asset.ValuationCurrency == "" {
		return "-"
	}
	return fmt.Sprintf("%.2f %s", asset.ValuationAmount, asset.ValuationCurrency)
}

func formatTotals(totals map[string]float64) string {
	if len(totals) == 0 {
		return "-"
	}
	currencies := make([]string, 0, len(totals))
	for currency := range totals {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	parts := make([]string, 0, len(currencies))
	for _, currency := range currencies {
		parts = append(parts, fmt.Sprintf("%.2f %s", totals[currency], currency))
	}
	return strings.Join(parts, ", ")
}

func truncateCell(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
