package stage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cardflow/internal/queue"
	"cardflow/internal/services"
	"cardflow/internal/stage"
	"cardflow/internal/testsupport"
)

func TestDecodeProvenance(t *testing.T) {
	p, err := stage.DecodeProvenance(&queue.Job{ID: 3, Payload: `{"source":"OCR","parent_job_id":2}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Source != "OCR" || p.ParentJobID != 2 {
		t.Fatalf("unexpected provenance: %#v", p)
	}

	empty, err := stage.DecodeProvenance(&queue.Job{ID: 4})
	if err != nil || empty.Source != "" {
		t.Fatalf("expected zero provenance, got %#v, %v", empty, err)
	}

	_, err = stage.DecodeProvenance(&queue.Job{ID: 5, Payload: "{invalid"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFromRecordsParentJob(t *testing.T) {
	p := stage.From(&queue.Job{ID: 9, Type: queue.JobClassify})
	if p.Source != "CLASSIFY" || p.ParentJobID != 9 {
		t.Fatalf("unexpected provenance: %#v", p)
	}
}

func TestCommitPersistsAssetAndSuccessorTogether(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, assets := testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")
	assetID := assets[0].ID

	err := stage.Commit(ctx, store, time.Second, assetID, func(ctx context.Context, tx *queue.Tx, asset *queue.Asset) error {
		asset.Status = queue.AssetValuationPending
		_, err := tx.Enqueue(ctx, asset.ID, queue.JobValuation, stage.Provenance{Source: "test"})
		return err
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	asset, err := store.GetAsset(ctx, assetID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if asset.Status != queue.AssetValuationPending {
		t.Fatalf("status = %s", asset.Status)
	}
	jobs, err := store.ListJobs(ctx, queue.JobFilter{AssetID: assetID})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 || jobs[1].Type != queue.JobValuation {
		t.Fatalf("expected VALUATION successor, got %#v", jobs)
	}
}

func TestCommitRejectsInvariantViolation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, assets := testsupport.SeedBatch(t, store, "Binder", "/cards/a.jpg")

	err := stage.Commit(ctx, store, time.Second, assets[0].ID, func(ctx context.Context, tx *queue.Tx, asset *queue.Asset) error {
		asset.Status = queue.AssetError
		return nil
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthState(t *testing.T) {
	cases := []struct {
		health stage.Health
		want   string
	}{
		{stage.Healthy("ocr"), stage.StateReady},
		{stage.Degraded("ocr", "stub mode"), stage.StateDegraded},
		{stage.Unhealthy("ocr", "not wired"), stage.StateUnhealthy},
	}
	for _, tc := range cases {
		if got := tc.health.State(); got != tc.want {
			t.Fatalf("%+v.State() = %s, want %s", tc.health, got, tc.want)
		}
	}
}
