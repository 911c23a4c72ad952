package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cardflow/internal/services"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs the row-level operations shared by Store and Tx.
type conn struct {
	q       querier
	dialect dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, rebind(c.dialect, query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, rebind(c.dialect, query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, rebind(c.dialect, query), args...)
}

func (c conn) getAsset(ctx context.Context, id int64, forUpdate bool) (*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM card_assets WHERE id = ?`
	if forUpdate && c.dialect == dialectPostgres {
		query += ` FOR UPDATE`
	}
	asset, err := scanAsset(c.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get asset", fmt.Sprintf("asset %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func (c conn) updateAsset(ctx context.Context, asset *Asset) error {
	if asset == nil {
		return errors.New("asset is nil")
	}
	if err := asset.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "store", "update asset", err.Error(), nil)
	}
	asset.UpdatedAt = time.Now().UTC()
	res, err := c.exec(ctx,
		`UPDATE card_assets
         SET status = ?, image_ref = ?, ocr_text = ?, ocr_raw = ?, ocr_confidence = ?,
             attributes_json = ?, classification_json = ?, player_id = ?, match_confidence = ?,
             match_json = ?, valuation_amount = ?, valuation_currency = ?, valuation_source = ?,
             valuation_link = ?, ebay_sold_url = ?, marketplace_url = ?, thumbnail_ref = ?,
             error_message = ?, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		string(asset.Status),
		asset.ImageRef,
		nullableString(asset.OCRText),
		nullableString(asset.OCRRaw),
		asset.OCRConfidence,
		nullableString(asset.AttributesJSON),
		nullableString(asset.ClassificationJSON),
		nullableInt64(asset.PlayerID),
		asset.MatchConfidence,
		nullableString(asset.MatchJSON),
		asset.ValuationAmount,
		nullableString(asset.ValuationCurrency),
		nullableString(asset.ValuationSource),
		nullableString(asset.ValuationLink),
		nullableString(asset.EbaySoldURL),
		nullableString(asset.MarketplaceURL),
		nullableString(asset.ThumbnailRef),
		nullableString(asset.ErrorMessage),
		nullableTime(asset.CompletedAt),
		formatTime(asset.UpdatedAt),
		asset.ID,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update asset", fmt.Sprintf("asset %d not found", asset.ID), nil)
	}
	return nil
}

func (c conn) insertJob(ctx context.Context, assetID int64, jobType JobType, payload any) (int64, error) {
	encoded, err := encodePayload(payload)
	if err != nil {
		return 0, err
	}
	now := formatTime(time.Now().UTC())
	var id int64
	err = c.queryRow(ctx,
		`INSERT INTO processing_jobs (asset_id, job_type, status, payload, attempts, created_at, updated_at)
         VALUES (?, ?, ?, ?, 0, ?, ?) RETURNING id`,
		assetID, string(jobType), string(JobQueued), nullableString(encoded), now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s job: %w", jobType, err)
	}
	return id, nil
}

func (c conn) getBatch(ctx context.Context, id int64, forUpdate bool) (*Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM card_batches WHERE id = ?`
	if forUpdate && c.dialect == dialectPostgres {
		query += ` FOR UPDATE`
	}
	batch, err := scanBatch(c.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get batch", fmt.Sprintf("batch %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

func (c conn) updateBatch(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return errors.New("batch is nil")
	}
	batch.UpdatedAt = time.Now().UTC()
	_, err := c.exec(ctx,
		`UPDATE card_batches SET name = ?, total_count = ?, processed_count = ?, status = ?, updated_at = ? WHERE id = ?`,
		batch.Name, batch.TotalCount, batch.ProcessedCount, string(batch.Status), formatTime(batch.UpdatedAt), batch.ID,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

func (c conn) countAssets(ctx context.Context, batchID int64, status AssetStatus) (int, error) {
	var count int
	if err := c.queryRow(ctx,
		`SELECT COUNT(1) FROM card_assets WHERE batch_id = ? AND status = ?`,
		batchID, string(status),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s assets: %w", status, err)
	}
	return count, nil
}

func encodePayload(payload any) (string, error) {
	switch v := payload.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode job payload: %w", err)
		}
		return string(data), nil
	}
}
