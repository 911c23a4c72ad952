package workflow

import (
	"context"

	"cardflow/internal/logging"
	"cardflow/internal/queue"
	"cardflow/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	LastError   string
	LastJob     *queue.Job
	JobStats    map[queue.JobStatus]int
	AssetStats  map[queue.AssetStatus]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	handlers := make(map[queue.JobType]stage.Handler, len(m.handlers))
	for jobType, handler := range m.handlers {
		handlers[jobType] = handler
	}
	m.mu.RUnlock()

	jobStats, err := m.store.JobStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_stats_failed"),
			logging.String(logging.FieldErrorHint, "check job store access"),
			logging.String(logging.FieldImpact, "status omits job counts"),
		)
	}
	assetStats, err := m.store.AssetStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read asset stats",
			logging.Error(err),
			logging.String(logging.FieldEventType, "asset_stats_failed"),
			logging.String(logging.FieldErrorHint, "check job store access"),
			logging.String(logging.FieldImpact, "status omits asset counts"),
		)
	}

	health := make(map[string]stage.Health, len(handlers))
	for _, jobType := range stageOrder {
		handler, ok := handlers[jobType]
		if !ok {
			continue
		}
		health[stageName(jobType)] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Workers:     m.workers,
		JobStats:    jobStats,
		AssetStats:  assetStats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job, status queue.JobStatus) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		copy.Status = status
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
