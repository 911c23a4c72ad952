package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cardflow/internal/queue"
	"cardflow/internal/services"
)

// Provenance is the payload recorded on a job enqueued by a stage, naming the
// job that spawned it.
type Provenance struct {
	Source      string `json:"source"`
	ParentJobID int64  `json:"parent_job_id,omitempty"`
}

// From builds the provenance payload for a job enqueued while handling job.
func From(job *queue.Job) Provenance {
	if job == nil {
		return Provenance{Source: "unknown"}
	}
	return Provenance{Source: string(job.Type), ParentJobID: job.ID}
}

// DecodeProvenance parses a job payload. An empty payload yields the zero value.
func DecodeProvenance(job *queue.Job) (Provenance, error) {
	var p Provenance
	if job == nil || job.Payload == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
		return Provenance{}, services.Wrap(services.ErrValidation, "stage", "decode payload",
			fmt.Sprintf("job %d payload is not valid JSON", job.ID), err)
	}
	return p, nil
}

// MutateFunc applies a stage's changes to the freshly read asset inside tx.
type MutateFunc func(ctx context.Context, tx *queue.Tx, asset *queue.Asset) error

// Commit runs one stage's atomic unit: re-read the asset under the
// transaction, apply fn, then persist the asset. Anything fn enqueues or
// writes through tx commits or rolls back with the asset update.
func Commit(ctx context.Context, store Store, timeout time.Duration, assetID int64, fn MutateFunc) error {
	return store.WithinTx(ctx, timeout, func(ctx context.Context, tx *queue.Tx) error {
		asset, err := tx.GetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, asset); err != nil {
			return err
		}
		return tx.UpdateAsset(ctx, asset)
	})
}
