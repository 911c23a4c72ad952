package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cardflow/internal/services"
)

// Tx is the atomic unit a stage handler uses to persist results, transition
// the asset, and enqueue the next job. Nothing written through a Tx is visible
// until WithinTx commits.
type Tx struct {
	conn
}

// TxFunc is the body of a transactional unit.
type TxFunc func(ctx context.Context, tx *Tx) error

// WithinTx runs fn inside one database transaction bounded by timeout. The
// transaction commits when fn returns nil and rolls back otherwise. Exceeding
// the timeout yields a services.ErrTimeout error so the worker retries.
func (s *Store) WithinTx(ctx context.Context, timeout time.Duration, fn TxFunc) error {
	ctx = ensureContext(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var sqlTx *sql.Tx
	if err := retryOnBusy(ctx, func() error {
		var err error
		sqlTx, err = s.db.BeginTx(ctx, nil)
		return err
	}); err != nil {
		return s.txError(ctx, "begin", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &Tx{conn: conn{q: sqlTx, dialect: s.dialect}}); err != nil {
		if ctx.Err() != nil {
			return s.txError(ctx, "execute", err)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return s.txError(ctx, "commit", err)
	}
	return nil
}

func (s *Store) txError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "store", "transaction "+op, "transaction timed out", err)
	}
	if isSQLiteBusy(err) {
		return services.Wrap(services.ErrTransient, "store", "transaction "+op, "database busy", err)
	}
	return fmt.Errorf("transaction %s: %w", op, err)
}

// GetAsset re-reads the asset inside the transaction (row-locked on Postgres).
func (tx *Tx) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	return tx.getAsset(ctx, id, true)
}

// UpdateAsset writes every asset field. It rejects an asset whose error
// message does not agree with its status.
func (tx *Tx) UpdateAsset(ctx context.Context, asset *Asset) error {
	return tx.updateAsset(ctx, asset)
}

// Enqueue inserts the next job so it becomes visible only on commit.
func (tx *Tx) Enqueue(ctx context.Context, assetID int64, jobType JobType, payload any) (int64, error) {
	return tx.insertJob(ctx, assetID, jobType, payload)
}

// LockBatch reads the batch and holds its row lock until the transaction
// ends. On SQLite the immediate transaction already serializes writers.
func (tx *Tx) LockBatch(ctx context.Context, batchID int64) (*Batch, error) {
	return tx.getBatch(ctx, batchID, true)
}

// CountReady recounts the batch's READY assets as seen by this transaction.
func (tx *Tx) CountReady(ctx context.Context, batchID int64) (int, error) {
	return tx.countAssets(ctx, batchID, AssetReady)
}

// UpdateBatch persists processed count and status.
func (tx *Tx) UpdateBatch(ctx context.Context, batch *Batch) error {
	return tx.updateBatch(ctx, batch)
}
