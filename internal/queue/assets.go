package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardflow/internal/services"
)

// UploadPayload is the provenance recorded on the first OCR job of an upload.
type UploadPayload struct {
	Source  string `json:"source"`
	BatchID int64  `json:"batch_id"`
}

// CreateBatch inserts a batch whose total is the number of image references,
// one OCR_PENDING asset per reference, and the first OCR job for each, in one
// transaction.
func (s *Store) CreateBatch(ctx context.Context, name string, imageRefs []string) (*Batch, []*Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "store", "create batch", "batch name is required", nil)
	}
	var (
		batch  *Batch
		assets []*Asset
	)
	err := s.WithinTx(ctx, 0, func(ctx context.Context, tx *Tx) error {
		now := formatTime(time.Now().UTC())
		var id int64
		if err := tx.queryRow(ctx,
			`INSERT INTO card_batches (name, total_count, processed_count, status, created_at, updated_at)
             VALUES (?, ?, 0, ?, ?, ?) RETURNING id`,
			name, len(imageRefs), string(BatchProcessing), now, now,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		assets = assets[:0]
		for _, ref := range imageRefs {
			asset, err := insertAsset(ctx, tx, id, ref, "upload")
			if err != nil {
				return err
			}
			assets = append(assets, asset)
		}
		var err error
		batch, err = tx.getBatch(ctx, id, false)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return batch, assets, nil
}

// AddAsset appends an asset to an existing batch, bumps its total, returns the
// batch to PROCESSING, and enqueues the first OCR job.
func (s *Store) AddAsset(ctx context.Context, batchID int64, imageRef string) (*Asset, error) {
	var asset *Asset
	err := s.WithinTx(ctx, 0, func(ctx context.Context, tx *Tx) error {
		batch, err := tx.LockBatch(ctx, batchID)
		if err != nil {
			return err
		}
		asset, err = insertAsset(ctx, tx, batchID, imageRef, "upload")
		if err != nil {
			return err
		}
		batch.TotalCount++
		batch.Status = BatchProcessing
		return tx.UpdateBatch(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func insertAsset(ctx context.Context, tx *Tx, batchID int64, imageRef, source string) (*Asset, error) {
	imageRef = strings.TrimSpace(imageRef)
	if imageRef == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create asset", "image reference is required", nil)
	}
	now := formatTime(time.Now().UTC())
	var id int64
	if err := tx.queryRow(ctx,
		`INSERT INTO card_assets (batch_id, status, image_ref, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?) RETURNING id`,
		batchID, string(AssetOCRPending), imageRef, now, now,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	if _, err := tx.Enqueue(ctx, id, JobOCR, UploadPayload{Source: source, BatchID: batchID}); err != nil {
		return nil, err
	}
	return tx.getAsset(ctx, id, false)
}

// GetAsset fetches an asset by identifier.
func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	return s.conn().getAsset(ensureContext(ctx), id, false)
}

// GetBatch fetches a batch by identifier.
func (s *Store) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	return s.conn().getBatch(ensureContext(ctx), id, false)
}

// ListBatches returns batches newest first.
func (s *Store) ListBatches(ctx context.Context) ([]*Batch, error) {
	rows, err := s.query(ctx, `SELECT `+batchColumns+` FROM card_batches ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// ListAssets returns the batch's assets ordered by id.
func (s *Store) ListAssets(ctx context.Context, batchID int64) ([]*Asset, error) {
	rows, err := s.query(ctx, `SELECT `+assetColumns+` FROM card_assets WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// AssetStats returns a count of assets grouped by status.
func (s *Store) AssetStats(ctx context.Context) (map[AssetStatus]int, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(1) FROM card_assets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("asset stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[AssetStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[AssetStatus(status)] = count
	}
	return stats, rows.Err()
}

// ErrNotRetryable is returned when RetryAsset targets an asset outside ERROR.
var ErrNotRetryable = errors.New("asset is not in ERROR state")

// RetryAsset restarts an ERROR asset from OCR: status OCR_PENDING, error
// cleared, and a fresh OCR job enqueued, atomically.
func (s *Store) RetryAsset(ctx context.Context, assetID int64, timeout time.Duration) (int64, error) {
	var jobID int64
	err := s.WithinTx(ctx, timeout, func(ctx context.Context, tx *Tx) error {
		asset, err := tx.GetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if asset.Status != AssetError {
			return fmt.Errorf("retry asset %d (%s): %w", asset.ID, asset.Status, ErrNotRetryable)
		}
		asset.Status = AssetOCRPending
		asset.ClearError()
		asset.CompletedAt = nil
		if err := tx.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		jobID, err = tx.Enqueue(ctx, asset.ID, JobOCR, UploadPayload{Source: "retry", BatchID: asset.BatchID})
		return err
	})
	return jobID, err
}
