package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cardflow/internal/logging"
)

// Start launches the configured number of worker loops. Each loop claims the
// next queued job, runs it to completion, and sleeps the poll interval when
// the queue is empty.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	session := uuid.NewString()[:8]
	for i := 1; i <= m.workers; i++ {
		workerID := fmt.Sprintf("worker-%d-%s", i, session)
		group.Go(func() error {
			m.runWorker(groupCtx, workerID)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	m.running = true
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Int("max_retries", m.maxRetries),
		logging.Duration("poll_interval", m.pollInterval),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop stops claiming new jobs and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) runWorker(ctx context.Context, workerID string) {
	logger := m.logger.With(logging.String(logging.FieldWorker, workerID))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := m.ProcessNext(ctx, workerID)
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if !processed {
			waitOrShutdown(ctx, m.pollInterval)
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "job_claim_failed"),
		logging.String(logging.FieldErrorHint, "check job store access"),
	)
	waitOrShutdown(ctx, m.errorInterval)
}

func waitOrShutdown(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = 10 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Drain processes queued jobs on the calling goroutine until none remain.
// Jobs enqueued by handlers while draining are processed too.
func (m *Manager) Drain(ctx context.Context, workerID string) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		processed, err := m.ProcessNext(ctx, workerID)
		if err != nil {
			return count, err
		}
		if !processed {
			return count, nil
		}
		count++
	}
}
