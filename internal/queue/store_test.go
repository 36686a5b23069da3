package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"easel/internal/queue"
)

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndClaimPending(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, "batch-1", `{"prompt":"one"}`)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, "batch-2", `{"prompt":"two"}`); err != nil {
		t.Fatalf("add: %v", err)
	}

	claimed, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest item claimed, got %+v", claimed)
	}
	if claimed.Status != queue.StatusRunning {
		t.Fatalf("expected running status, got %s", claimed.Status)
	}

	// The claimed item must not be handed out twice.
	second, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if second == nil || second.BatchID != "batch-2" {
		t.Fatalf("expected second item, got %+v", second)
	}
	if third, err := store.NextPending(ctx); err != nil || third != nil {
		t.Fatalf("expected empty queue, got %+v err %v", third, err)
	}
}

func TestSetStatusAndLookup(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, err := store.Add(ctx, "batch-1", "{}")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.SetStatus(ctx, item.ID, queue.StatusFailed, "backend unreachable"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	loaded, err := store.GetByBatchID(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != queue.StatusFailed || loaded.ErrorMessage != "backend unreachable" {
		t.Fatalf("unexpected item %+v", loaded)
	}

	if err := store.SetStatus(ctx, 9999, queue.StatusFailed, ""); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRejectsDuplicateBatchID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "batch-1", "{}"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, "batch-1", "{}"); err == nil {
		t.Fatal("expected unique constraint error")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	a, _ := store.Add(ctx, "a", "{}")
	store.Add(ctx, "b", "{}")
	if err := store.SetStatus(ctx, a.ID, queue.StatusCompleted, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}

	pending, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].BatchID != "b" {
		t.Fatalf("unexpected pending items %+v", pending)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all))
	}
}

func TestRemoveRefusesRunning(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, _ := store.Add(ctx, "a", "{}")
	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.Remove(ctx, item.ID); err == nil {
		t.Fatal("expected error removing a running item")
	}
	if err := store.SetStatus(ctx, item.ID, queue.StatusCompleted, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := store.Remove(ctx, item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestClearTerminalOnly(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	done, _ := store.Add(ctx, "done", "{}")
	store.Add(ctx, "waiting", "{}")
	store.SetStatus(ctx, done.ID, queue.StatusCompleted, "")

	removed, err := store.Clear(ctx, false)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].BatchID != "waiting" {
		t.Fatalf("unexpected remaining %+v", remaining)
	}
}

func TestRecoverStuckRunning(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	store.Add(ctx, "a", "{}")
	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	recovered, err := store.RecoverStuck(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected 1 recovered item, got %d", recovered)
	}
	item, err := store.GetByBatchID(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending after recovery, got %s", item.Status)
	}
}

func TestSummarize(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	a, _ := store.Add(ctx, "a", "{}")
	store.Add(ctx, "b", "{}")
	store.SetStatus(ctx, a.ID, queue.StatusFailed, "boom")

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Total != 2 || summary.Pending != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestReopenKeepsItems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.db")
	ctx := context.Background()

	store, err := queue.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Add(ctx, "persisted", `{"prompt":"x"}`); err != nil {
		t.Fatalf("add: %v", err)
	}
	store.Close()

	reopened, err := queue.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	item, err := reopened.GetByBatchID(ctx, "persisted")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.ConfigJSON != `{"prompt":"x"}` {
		t.Fatalf("unexpected config %q", item.ConfigJSON)
	}
}
