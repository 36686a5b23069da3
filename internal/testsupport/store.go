package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"easel/internal/config"
	"easel/internal/engine"
	"easel/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// QueueRun enqueues a run config for tests using the provided store.
func QueueRun(t testing.TB, store *queue.Store, cfg engine.RunConfig) *queue.Item {
	t.Helper()

	encoded, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode run config: %v", err)
	}
	item, err := store.Add(context.Background(), cfg.BatchID, string(encoded))
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return item
}
