package ocr_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"cardflow/internal/imagestore"
	"cardflow/internal/logging"
	"cardflow/internal/ocr"
	"cardflow/internal/ocr/vision"
	"cardflow/internal/queue"
	"cardflow/internal/services"
	"cardflow/internal/stage"
	"cardflow/internal/testsupport"
)

type fakeExtractor struct {
	result vision.Result
	err    error
	calls  int
	sizes  []int
}

func (f *fakeExtractor) Extract(_ context.Context, image []byte, _ string) (vision.Result, error) {
	f.calls++
	f.sizes = append(f.sizes, len(image))
	return f.result, f.err
}

func (f *fakeExtractor) Configured() bool { return true }

type failingRemover struct{}

func (failingRemover) Remove(context.Context, []byte) ([]byte, error) {
	return nil, services.Wrap(services.ErrExternalTool, "bgremove", "remove", "boom", nil)
}

const griffeyText = "1989 Upper Deck\nKen Griffey Jr.\nSeattle Mariners\n#1"

type fixture struct {
	store   *queue.Store
	asset   *queue.Asset
	handler *ocr.Handler
	vision  *fakeExtractor
}

func newFixture(t *testing.T, classify bool, opts ...ocr.Option) fixture {
	t.Helper()
	var cfgOpts []testsupport.ConfigOption
	if classify {
		cfgOpts = append(cfgOpts, testsupport.WithClassification("", ""))
	}
	cfg := testsupport.NewConfig(t, cfgOpts...)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteImage(t, cfg.Paths.ImageDir, "griffey.jpg", testsupport.NoisyJPEG(t, 320, 448, 90))
	_, assets := testsupport.SeedBatch(t, store, "binder", "griffey.jpg")

	extractor := &fakeExtractor{result: vision.Result{Text: griffeyText, Raw: `{"results":[]}`, Confidence: 0.91}}
	all := append([]ocr.Option{ocr.WithExtractor(extractor)}, opts...)
	handler := ocr.NewHandler(cfg, store, imagestore.New(cfg), logging.NewNop(), all...)
	return fixture{store: store, asset: assets[0], handler: handler, vision: extractor}
}

func jobsOfType(t *testing.T, store *queue.Store, assetID int64, jobType queue.JobType) []*queue.Job {
	t.Helper()
	jobs, err := store.ListJobs(context.Background(), queue.JobFilter{AssetID: assetID})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	var out []*queue.Job
	for _, job := range jobs {
		if job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

func TestExecuteHandsOffToValuationWhenClassificationDisabled(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	job := jobsOfType(t, f.store, f.asset.ID, queue.JobOCR)[0]

	if err := f.handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	asset, err := f.store.GetAsset(ctx, f.asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.Status != queue.AssetValuationPending {
		t.Fatalf("expected VALUATION_PENDING, got %s", asset.Status)
	}
	if asset.OCRText != griffeyText || asset.OCRConfidence != 0.91 {
		t.Fatalf("unexpected OCR fields: %q %v", asset.OCRText, asset.OCRConfidence)
	}
	if !strings.Contains(asset.AttributesJSON, `"player_name":"Ken Griffey Jr."`) {
		t.Fatalf("attributes missing player: %s", asset.AttributesJSON)
	}
	if !strings.Contains(asset.EbaySoldURL, "LH_Sold=1") || asset.MarketplaceURL == "" {
		t.Fatalf("comparison links not filled: %q %q", asset.EbaySoldURL, asset.MarketplaceURL)
	}
	if asset.ThumbnailRef == "" {
		t.Fatal("expected thumbnail reference")
	}
	if _, err := os.Stat(asset.ThumbnailRef); err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}

	next := jobsOfType(t, f.store, f.asset.ID, queue.JobValuation)
	if len(next) != 1 || next[0].Status != queue.JobQueued {
		t.Fatalf("expected one queued VALUATION job, got %+v", next)
	}
	var payload stage.Provenance
	if err := json.Unmarshal([]byte(next[0].Payload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Source != "OCR" || payload.ParentJobID != job.ID {
		t.Fatalf("unexpected provenance: %+v", payload)
	}
	if n := len(jobsOfType(t, f.store, f.asset.ID, queue.JobClassify)); n != 0 {
		t.Fatalf("expected no CLASSIFY job, got %d", n)
	}
}

func TestExecuteEnqueuesClassifyWhenEnabled(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	job := jobsOfType(t, f.store, f.asset.ID, queue.JobOCR)[0]

	if err := f.handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	asset, _ := f.store.GetAsset(ctx, f.asset.ID)
	if asset.Status != queue.AssetOCRComplete {
		t.Fatalf("expected OCR_COMPLETE, got %s", asset.Status)
	}
	if n := len(jobsOfType(t, f.store, f.asset.ID, queue.JobClassify)); n != 1 {
		t.Fatalf("expected one CLASSIFY job, got %d", n)
	}
	if n := len(jobsOfType(t, f.store, f.asset.ID, queue.JobValuation)); n != 0 {
		t.Fatalf("expected no VALUATION job, got %d", n)
	}
}

func TestExecuteKeepsExistingComparisonLinks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	err := f.store.WithinTx(ctx, 0, func(ctx context.Context, tx *queue.Tx) error {
		asset, err := tx.GetAsset(ctx, f.asset.ID)
		if err != nil {
			return err
		}
		asset.EbaySoldURL = "https://example.test/sold"
		return tx.UpdateAsset(ctx, asset)
	})
	if err != nil {
		t.Fatalf("seed link: %v", err)
	}

	job := jobsOfType(t, f.store, f.asset.ID, queue.JobOCR)[0]
	if err := f.handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	asset, _ := f.store.GetAsset(ctx, f.asset.ID)
	if asset.EbaySoldURL != "https://example.test/sold" {
		t.Fatalf("existing link overwritten: %q", asset.EbaySoldURL)
	}
	if asset.MarketplaceURL == "" {
		t.Fatal("empty marketplace link should be filled")
	}
}

func TestExecuteToleratesThumbnailFailure(t *testing.T) {
	f := newFixture(t, false, ocr.WithBackgroundRemover(failingRemover{}))
	ctx := context.Background()
	job := jobsOfType(t, f.store, f.asset.ID, queue.JobOCR)[0]

	if err := f.handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	asset, _ := f.store.GetAsset(ctx, f.asset.ID)
	if asset.Status != queue.AssetValuationPending {
		t.Fatalf("expected VALUATION_PENDING, got %s", asset.Status)
	}
	if asset.ThumbnailRef == "" {
		t.Fatal("expected thumbnail rendered from the original image")
	}
}

func TestExecuteExtractorFailureLeavesAssetUntouched(t *testing.T) {
	f := newFixture(t, false)
	f.vision.err = services.Wrap(services.ErrTransient, "vision", "extract", "service down", nil)
	ctx := context.Background()
	job := jobsOfType(t, f.store, f.asset.ID, queue.JobOCR)[0]

	err := f.handler.Execute(ctx, job)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	asset, _ := f.store.GetAsset(ctx, f.asset.ID)
	if asset.Status != queue.AssetOCRPending || asset.OCRText != "" {
		t.Fatalf("asset changed on failure: %s %q", asset.Status, asset.OCRText)
	}
	if n := len(jobsOfType(t, f.store, f.asset.ID, queue.JobValuation)); n != 0 {
		t.Fatalf("expected no successor job, got %d", n)
	}
}

func TestExecuteMissingImageIsNotRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	_, assets := testsupport.SeedBatch(t, store, "binder", "missing.jpg")
	handler := ocr.NewHandler(cfg, store, imagestore.New(cfg), logging.NewNop())

	job := jobsOfType(t, store, assets[0].ID, queue.JobOCR)[0]
	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrNotFound) || services.Retryable(err) {
		t.Fatalf("expected non-retryable not found, got %v", err)
	}
}

func TestHealthCheckReportsStubMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := ocr.NewHandler(cfg, store, imagestore.New(cfg), logging.NewNop())
	health := handler.HealthCheck(context.Background())
	if !health.Ready || health.Detail == "" {
		t.Fatalf("expected degraded health, got %+v", health)
	}
}
