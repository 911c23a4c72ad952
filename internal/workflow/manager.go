package workflow

import (
	"log/slog"
	"sync"
	"time"

	"cardflow/internal/config"
	"cardflow/internal/logging"
	"cardflow/internal/notifications"
	"cardflow/internal/queue"
	"cardflow/internal/stage"
)

// Manager runs the worker loops that claim jobs and dispatch them to stage
// handlers under the retry policy.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	pollInterval  time.Duration
	errorInterval time.Duration
	retryDelay    time.Duration
	maxRetries    int
	workers       int
	sleep         func(time.Duration)

	handlers map[queue.JobType]stage.Handler

	mu      sync.RWMutex
	running bool
	cancel  func()
	done    chan struct{}
	lastErr error
	lastJob *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier replaces the notifier built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithSleep replaces the backoff sleep (used in tests).
func WithSleep(sleep func(time.Duration)) ManagerOption {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// NewManager constructs a workflow manager. Stages must be registered with
// ConfigureStages before Start.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		notifier:      notifications.NewService(cfg),
		pollInterval:  cfg.PollInterval(),
		errorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		retryDelay:    cfg.RetryDelay(),
		maxRetries:    cfg.Workflow.MaxRetries,
		workers:       cfg.Workflow.WorkerCount,
		sleep:         time.Sleep,
		handlers:      make(map[queue.JobType]stage.Handler),
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	if m.maxRetries < 0 {
		m.maxRetries = 0
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
