package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"cardflow/internal/logging"
	"cardflow/internal/queue"
)

const sheetName = "Cards"

// Source reads the batch and its assets.
type Source interface {
	GetBatch(ctx context.Context, id int64) (*queue.Batch, error)
	ListAssets(ctx context.Context, batchID int64) ([]*queue.Asset, error)
}

// Report renders batch valuation workbooks.
type Report struct {
	source Source
	logger *slog.Logger
}

// NewReport constructs a report over source.
func NewReport(source Source, logger *slog.Logger) *Report {
	return &Report{source: source, logger: logging.NewComponentLogger(logger, "export")}
}

var headers = []string{
	"Asset",
	"File",
	"Status",
	"Recognized Text",
	"Match Confidence",
	"Value",
	"Currency",
	"Valuation Source",
	"Sold Listings",
	"Marketplace",
	"Thumbnail",
	"Completed",
	"Error",
}

// BatchXLSX returns an XLSX workbook listing every asset of the batch with a
// total row summing READY valuations.
func (r *Report) BatchXLSX(ctx context.Context, batchID int64) ([]byte, error) {
	start := time.Now()
	batch, err := r.source.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	assets, err := r.source.ListAssets(ctx, batchID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, style)
	}

	row := 2
	total := 0.0
	for _, asset := range assets {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		write(1, asset.ID)
		write(2, asset.FileName())
		write(3, string(asset.Status))
		write(4, truncate(asset.OCRText, 120))
		write(5, asset.MatchConfidence)
		write(6, asset.ValuationAmount)
		write(7, asset.ValuationCurrency)
		write(8, asset.ValuationSource)
		write(9, asset.EbaySoldURL)
		write(10, asset.MarketplaceURL)
		write(11, asset.ThumbnailRef)
		if asset.CompletedAt != nil {
			write(12, asset.CompletedAt.UTC().Format(time.RFC3339))
		}
		write(13, asset.ErrorMessage)
		if asset.Status == queue.AssetReady {
			total += asset.ValuationAmount
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(5, row+1)
	totalCell, _ := excelize.CoordinatesToCellName(6, row+1)
	_ = f.SetCellValue(sheetName, totalLabel, "Total")
	_ = f.SetCellValue(sheetName, totalCell, total)

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "B", 24)
	_ = f.SetColWidth(sheetName, "C", "C", 18)
	_ = f.SetColWidth(sheetName, "D", "D", 48)
	_ = f.SetColWidth(sheetName, "E", "H", 14)
	_ = f.SetColWidth(sheetName, "I", "K", 40)
	_ = f.SetColWidth(sheetName, "L", "M", 24)
	_ = f.SetDocProps(&excelize.DocProperties{Title: batch.Name, Creator: "cardflow"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	r.logger.Info("batch report rendered",
		logging.String(logging.FieldEventType, "batch_export"),
		logging.Int64(logging.FieldBatchID, batch.ID),
		logging.Int("assets", len(assets)),
		logging.Duration("duration", time.Since(start)),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
