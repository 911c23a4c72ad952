package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cardflow/internal/notifications"
	"cardflow/internal/queue"
	"cardflow/internal/services"
	"cardflow/internal/stage"
	"cardflow/internal/testsupport"
	"cardflow/internal/workflow"
)

type stubStage struct {
	name    string
	calls   atomic.Int32
	errs    []error
	execute func(ctx context.Context, job *queue.Job) error
	health  stage.Health
}

func newStubStage(name string, errs ...error) *stubStage {
	return &stubStage{name: name, errs: errs, health: stage.Healthy(name)}
}

func (s *stubStage) Execute(ctx context.Context, job *queue.Job) error {
	n := int(s.calls.Add(1))
	if s.execute != nil {
		return s.execute(ctx, job)
	}
	if n <= len(s.errs) {
		return s.errs[n-1]
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

// recordingHandler counts log records by level.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func (h *recordingHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, r := range h.records {
		if r.Level == level {
			total++
		}
	}
	return total
}

type managerNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *managerNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func noSleep(time.Duration) {}

func TestRetrySucceedsAfterTwoFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(3))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, assets := testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")

	transient := services.Wrap(services.ErrTransient, "ocr", "extract", "provider unavailable", nil)
	ocr := newStubStage("ocr", transient, transient)
	logs := &recordingHandler{}
	var delays []time.Duration
	mgr := workflow.NewManager(cfg, store, slog.New(logs),
		workflow.WithNotifier(&managerNotifier{}),
		workflow.WithSleep(func(d time.Duration) { delays = append(delays, d) }),
	)
	mgr.ConfigureStages(workflow.StageSet{OCR: ocr})

	processed, err := mgr.ProcessNext(ctx, "worker-test")
	if err != nil || !processed {
		t.Fatalf("ProcessNext = %v, %v", processed, err)
	}
	if got := ocr.calls.Load(); got != 3 {
		t.Fatalf("handler called %d times, want 3", got)
	}
	if got := logs.count(slog.LevelWarn); got != 2 {
		t.Fatalf("logged %d warnings, want 2", got)
	}
	if len(delays) != 2 || delays[0] != cfg.RetryDelay() || delays[1] != 2*cfg.RetryDelay() {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}

	jobs, err := store.ListJobs(ctx, queue.JobFilter{AssetID: assets[0].ID})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if jobs[0].Status != queue.JobComplete {
		t.Fatalf("job status = %s, want COMPLETE", jobs[0].Status)
	}
	asset, err := store.GetAsset(ctx, assets[0].ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if asset.Status != queue.AssetOCRPending || asset.ErrorMessage != "" {
		t.Fatalf("manager mutated asset on success: %#v", asset)
	}
}

func TestRetryExhaustionFailsJobAndAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(2))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, assets := testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")

	ocr := newStubStage("ocr")
	ocr.execute = func(context.Context, *queue.Job) error {
		return errors.New("vision service returned 503")
	}
	notifier := &managerNotifier{}
	mgr := workflow.NewManager(cfg, store, nil, workflow.WithNotifier(notifier), workflow.WithSleep(noSleep))
	mgr.ConfigureStages(workflow.StageSet{OCR: ocr})

	if _, err := mgr.ProcessNext(ctx, "worker-test"); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	if got := ocr.calls.Load(); got != 3 {
		t.Fatalf("handler called %d times, want 3", got)
	}

	jobs, err := store.ListJobs(ctx, queue.JobFilter{AssetID: assets[0].ID})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if jobs[0].Status != queue.JobFailed || jobs[0].ErrorMessage != "vision service returned 503" {
		t.Fatalf("unexpected job: %#v", jobs[0])
	}
	asset, err := store.GetAsset(ctx, assets[0].ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if asset.Status != queue.AssetError || asset.ErrorMessage != "vision service returned 503" {
		t.Fatalf("unexpected asset: %#v", asset)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventAssetError {
		t.Fatalf("unexpected notifications: %#v", notifier.events)
	}

	summary := mgr.Status(ctx)
	if summary.LastError == "" || summary.LastJob == nil || summary.LastJob.Status != queue.JobFailed {
		t.Fatalf("unexpected status summary: %#v", summary)
	}
}

func TestZeroMaxRetriesFailsOnFirstError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(0))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, assets := testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")

	ocr := newStubStage("ocr", errors.New("vision service returned 503"))
	mgr := workflow.NewManager(cfg, store, nil, workflow.WithNotifier(&managerNotifier{}), workflow.WithSleep(noSleep))
	mgr.ConfigureStages(workflow.StageSet{OCR: ocr})

	if _, err := mgr.ProcessNext(ctx, "worker-test"); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	if got := ocr.calls.Load(); got != 1 {
		t.Fatalf("handler called %d times, want 1", got)
	}
	asset, err := store.GetAsset(ctx, assets[0].ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if asset.Status != queue.AssetError {
		t.Fatalf("expected asset in ERROR, got %s", asset.Status)
	}
}

func TestNonRetryableErrorFailsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(3))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")

	ocr := newStubStage("ocr", services.Wrap(services.ErrNotFound, "ocr", "load image", "image missing", nil))
	mgr := workflow.NewManager(cfg, store, nil, workflow.WithNotifier(&managerNotifier{}), workflow.WithSleep(noSleep))
	mgr.ConfigureStages(workflow.StageSet{OCR: ocr})

	if _, err := mgr.ProcessNext(ctx, "worker-test"); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	if got := ocr.calls.Load(); got != 1 {
		t.Fatalf("handler called %d times, want 1", got)
	}
}

func TestUnsupportedJobTypeFailsWithoutRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, assets := testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")

	valuation := newStubStage("valuation")
	mgr := workflow.NewManager(cfg, store, nil, workflow.WithNotifier(&managerNotifier{}), workflow.WithSleep(noSleep))
	mgr.ConfigureStages(workflow.StageSet{Valuation: valuation})

	if _, err := mgr.ProcessNext(ctx, "worker-test"); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	jobs, err := store.ListJobs(ctx, queue.JobFilter{AssetID: assets[0].ID})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if jobs[0].Status != queue.JobFailed || jobs[0].Attempts != 1 {
		t.Fatalf("unexpected job: %#v", jobs[0])
	}
	if valuation.calls.Load() != 0 {
		t.Fatal("valuation handler should not run for an OCR job")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(0))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, assets := testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")

	ocr := newStubStage("ocr")
	ocr.execute = func(context.Context, *queue.Job) error {
		panic("nil image")
	}
	mgr := workflow.NewManager(cfg, store, nil, workflow.WithNotifier(&managerNotifier{}), workflow.WithSleep(noSleep))
	mgr.ConfigureStages(workflow.StageSet{OCR: ocr})

	if _, err := mgr.ProcessNext(ctx, "worker-test"); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	asset, err := store.GetAsset(ctx, assets[0].ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if asset.Status != queue.AssetError {
		t.Fatalf("status = %s, want ERROR", asset.Status)
	}
}

func TestWorkersProcessEveryJobOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(3))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.SeedBatch(t, store, "Bulk", "/cards/1.jpg", "/cards/2.jpg", "/cards/3.jpg", "/cards/4.jpg", "/cards/5.jpg", "/cards/6.jpg")

	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
	)
	ocr := newStubStage("ocr")
	ocr.execute = func(_ context.Context, job *queue.Job) error {
		mu.Lock()
		seen[job.ID]++
		mu.Unlock()
		return nil
	}
	mgr := workflow.NewManager(cfg, store, nil, workflow.WithNotifier(&managerNotifier{}))
	mgr.ConfigureStages(workflow.StageSet{OCR: ocr})

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err := store.JobStats(ctx)
		if err != nil {
			t.Fatalf("JobStats failed: %v", err)
		}
		if stats[queue.JobComplete] == 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for jobs, stats=%v", stats)
		}
		time.Sleep(10 * time.Millisecond)
	}
	mgr.Stop()

	if len(seen) != 6 {
		t.Fatalf("processed %d distinct jobs, want 6", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("job %d executed %d times", id, n)
		}
	}
	if mgr.Status(ctx).Running {
		t.Fatal("expected manager to report stopped")
	}
}

func TestStartRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, nil)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error when no stages are configured")
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ocr := newStubStage("ocr")
	ocr.health = stage.Degraded("ocr", "vision provider not configured; stub mode")
	mgr := workflow.NewManager(cfg, store, nil)
	mgr.ConfigureStages(workflow.StageSet{OCR: ocr, Valuation: newStubStage("valuation")})

	summary := mgr.Status(context.Background())
	if len(summary.StageHealth) != 2 {
		t.Fatalf("expected 2 stage health entries, got %#v", summary.StageHealth)
	}
	if summary.StageHealth["ocr"].Detail == "" || !summary.StageHealth["valuation"].Ready {
		t.Fatalf("unexpected stage health: %#v", summary.StageHealth)
	}
}
