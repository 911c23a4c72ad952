package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cardflow/internal/logging"
	"cardflow/internal/queue"
	"cardflow/internal/services"
	"cardflow/internal/stage"
)

// ProcessNext claims one queued job for workerID and runs it to a terminal
// status. It reports false when the queue had nothing to claim.
func (m *Manager) ProcessNext(ctx context.Context, workerID string) (bool, error) {
	job, err := m.store.ClaimNext(ctx, workerID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	// A claimed job runs to completion even when the worker is stopping.
	m.processJob(context.WithoutCancel(ctx), workerID, job)
	return true, nil
}

func (m *Manager) processJob(ctx context.Context, workerID string, job *queue.Job) {
	ctx = withJobContext(ctx, workerID, job)
	logger := logging.WithContext(ctx, m.logger)
	start := time.Now()

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("claim_count", job.Attempts),
	)

	attempts, err := m.runWithRetry(ctx, logger, job)
	if err != nil {
		m.handleJobFailure(ctx, logger, job, attempts, err)
		return
	}

	if markErr := m.store.MarkStatus(ctx, job.ID, queue.JobComplete, ""); markErr != nil {
		m.setLastError(markErr)
		logging.ErrorWithContext(logger, "failed to mark job complete", "job_status_failed",
			logging.Error(markErr),
			logging.String(logging.FieldErrorHint, "check job store access"),
		)
		return
	}
	m.setLastJob(job, queue.JobComplete)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("attempts", attempts),
		logging.Duration("stage_duration", time.Since(start)),
	)
}

// runWithRetry executes the job's handler up to maxRetries+1 times with
// linear backoff, returning the number of attempts made and the last error.
// Non-retryable errors stop immediately.
func (m *Manager) runWithRetry(ctx context.Context, logger *slog.Logger, job *queue.Job) (int, error) {
	m.mu.RLock()
	handler, ok := m.handlers[job.Type]
	m.mu.RUnlock()
	if !ok {
		return 1, services.Wrap(services.ErrUnsupported, "workflow", "dispatch",
			fmt.Sprintf("unsupported job type %q", job.Type), nil)
	}

	for attempt := 1; ; attempt++ {
		err := execute(ctx, handler, job)
		if err == nil {
			return attempt, nil
		}
		if !services.Retryable(err) || attempt > m.maxRetries {
			return attempt, err
		}
		delay := time.Duration(attempt) * m.retryDelay
		logging.WarnWithContext(logger, "stage attempt failed; retrying", "stage_retry",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", m.maxRetries+1),
			logging.Duration("backoff", delay),
			logging.String("error_kind", services.Details(err).Kind),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check provider availability"),
		)
		m.sleep(delay)
	}
}

// execute runs one attempt, turning a handler panic into an error so a single
// job cannot take down its worker.
func execute(ctx context.Context, handler stage.Handler, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrTransient, stageName(job.Type), "execute",
				fmt.Sprintf("handler panic: %v", r), nil)
		}
	}()
	return handler.Execute(ctx, job)
}
