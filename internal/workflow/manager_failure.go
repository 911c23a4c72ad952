package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cardflow/internal/logging"
	"cardflow/internal/notifications"
	"cardflow/internal/queue"
	"cardflow/internal/services"
	"cardflow/internal/stage"
)

// handleJobFailure records an exhausted or permanent failure: the job becomes
// FAILED with the last error message and the asset moves to ERROR with the
// same message.
func (m *Manager) handleJobFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, attempts int, jobErr error) {
	message := services.Message(jobErr)
	details := services.Details(jobErr)
	m.setLastError(jobErr)

	attrs := []logging.Attr{
		logging.Int("attempts", attempts),
		logging.String("error_kind", details.Kind),
		logging.String("error_message", message),
		logging.Bool("retryable", services.Retryable(jobErr)),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(jobErr))
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)

	if err := m.store.MarkStatus(ctx, job.ID, queue.JobFailed, message); err != nil {
		logging.ErrorWithContext(logger, "failed to mark job failed", "job_status_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job store access"),
		)
	}
	m.setLastJob(job, queue.JobFailed)

	err := stage.Commit(ctx, m.store, m.cfg.TxTimeout(), job.AssetID, func(_ context.Context, _ *queue.Tx, asset *queue.Asset) error {
		asset.Fail(message)
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logger.Warn("failed job references a missing asset",
				logging.Error(err),
				logging.String(logging.FieldEventType, "asset_missing"),
				logging.String(logging.FieldErrorHint, "the asset was removed outside the pipeline"),
				logging.String(logging.FieldImpact, "no asset status recorded"),
			)
			return
		}
		logging.ErrorWithContext(logger, "failed to persist asset error", "asset_error_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run cardflow retry once the store is reachable"),
		)
		return
	}
	m.notifyAssetError(ctx, logger, job, jobErr)
}

func (m *Manager) notifyAssetError(ctx context.Context, logger *slog.Logger, job *queue.Job, jobErr error) {
	if m.notifier == nil {
		return
	}
	label := fmt.Sprintf("%s (asset #%d)", job.Type, job.AssetID)
	if err := m.notifier.Publish(ctx, notifications.EventAssetError, notifications.Payload{
		"error":   jobErr,
		"context": label,
	}); err != nil {
		logger.Debug("asset error notification failed", logging.Error(err))
	}
}
