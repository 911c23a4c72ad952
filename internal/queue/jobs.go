package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardflow/internal/services"
)

// ErrJobTerminal is returned when a status change targets a COMPLETE or FAILED job.
var ErrJobTerminal = errors.New("job already in terminal state")

// Enqueue inserts a QUEUED job for the asset outside any stage transaction.
// Payload is stored as JSON (strings and raw JSON are stored verbatim).
func (s *Store) Enqueue(ctx context.Context, assetID int64, jobType JobType, payload any) (int64, error) {
	ctx = ensureContext(ctx)
	var id int64
	err := retryOnBusy(ctx, func() error {
		var err error
		id, err = s.conn().insertJob(ctx, assetID, jobType, payload)
		return err
	})
	return id, err
}

// ClaimNext atomically moves the oldest QUEUED job to RUNNING for workerID and
// returns it. It returns nil when no job is queued. Two callers never receive
// the same job.
func (s *Store) ClaimNext(ctx context.Context, workerID string) (*Job, error) {
	ctx = ensureContext(ctx)
	subquery := `SELECT id FROM processing_jobs WHERE status = ? ORDER BY id LIMIT 1`
	if s.dialect == dialectPostgres {
		subquery += ` FOR UPDATE SKIP LOCKED`
	}
	now := formatTime(time.Now().UTC())
	query := `UPDATE processing_jobs
        SET status = ?, claimed_by = ?, claimed_at = ?, attempts = attempts + 1, updated_at = ?
        WHERE id = (` + subquery + `) AND status = ?
        RETURNING ` + jobColumns

	var job *Job
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		job, scanErr = scanJob(s.queryRow(ctx, query,
			string(JobRunning), nullableString(workerID), now, now, string(JobQueued), string(JobQueued),
		))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// MarkStatus records a job status and optional error message. Terminal jobs
// are immutable: changing a COMPLETE or FAILED job returns ErrJobTerminal.
func (s *Store) MarkStatus(ctx context.Context, jobID int64, status JobStatus, message string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`UPDATE processing_jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		string(status), nullableString(message), formatTime(time.Now().UTC()),
		jobID, string(JobComplete), string(JobFailed),
	)
	if err != nil {
		return fmt.Errorf("mark job %d %s: %w", jobID, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("mark job %d %s: %w (current %s)", jobID, status, ErrJobTerminal, job.Status)
}

// ResetStuckJobs returns RUNNING jobs to QUEUED. Called at daemon start, when
// any RUNNING job belongs to a process that died mid-job.
func (s *Store) ResetStuckJobs(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE processing_jobs SET status = ?, claimed_by = NULL, claimed_at = NULL, updated_at = ? WHERE status = ?`,
		string(JobQueued), formatTime(time.Now().UTC()), string(JobRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// GetJob fetches a job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(s.queryRow(ctx, `SELECT `+jobColumns+` FROM processing_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get job", fmt.Sprintf("job %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	AssetID  int64
	Statuses []JobStatus
	Limit    int
}

// ListJobs returns jobs ordered by id.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.AssetID > 0 {
		clauses = append(clauses, "asset_id = ?")
		args = append(args, filter.AssetID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query := `SELECT ` + jobColumns + ` FROM processing_jobs`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(1) FROM processing_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[JobStatus(status)] = count
	}
	return stats, rows.Err()
}
