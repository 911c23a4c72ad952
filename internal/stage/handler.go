package stage

import (
	"context"
	"time"

	"cardflow/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Execute performs one attempt at the job; the manager owns retries and the
// terminal job status.
type Handler interface {
	Execute(ctx context.Context, job *queue.Job) error
	HealthCheck(ctx context.Context) Health
}

// Store is the slice of queue.Store stage handlers depend on.
type Store interface {
	GetAsset(ctx context.Context, id int64) (*queue.Asset, error)
	WithinTx(ctx context.Context, timeout time.Duration, fn queue.TxFunc) error
}
