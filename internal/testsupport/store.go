package testsupport

import (
	"context"
	"testing"

	"cardflow/internal/config"
	"cardflow/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedBatch creates a batch with one asset per image reference. Each asset
// gets its first OCR job.
func SeedBatch(t testing.TB, store *queue.Store, name string, imageRefs ...string) (*queue.Batch, []*queue.Asset) {
	t.Helper()

	batch, assets, err := store.CreateBatch(context.Background(), name, imageRefs)
	if err != nil {
		t.Fatalf("store.CreateBatch: %v", err)
	}
	return batch, assets
}
