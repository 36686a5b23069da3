package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"easel/internal/batch"
	"easel/internal/engine"
	"easel/internal/events"
	"easel/internal/lifecycle"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/queue"
)

// Status is a point-in-time view of the daemon for status surfaces.
type Status struct {
	Running     bool
	PID         int
	State       lifecycle.State
	LastError   string
	Counters    batch.Counters
	Queue       queue.Summary
	QueueDBPath string
	LockPath    string
}

// Submit validates and enqueues a run. The batch id is assigned here so
// the caller can track the run immediately.
func (d *Daemon) Submit(ctx context.Context, cfg engine.RunConfig) (*queue.Item, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchID == "" {
		cfg.BatchID = uuid.New().String()
	}
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("submit: encode run config: %w", err)
	}
	item, err := d.store.Add(ctx, cfg.BatchID, string(encoded))
	if err != nil {
		return nil, err
	}
	d.logger.Info("run queued",
		logging.String(logging.FieldBatchID, cfg.BatchID),
		logging.Int64("item_id", item.ID))
	return item, nil
}

// Pause suspends the active run.
func (d *Daemon) Pause() error {
	return d.engine.Pause()
}

// Resume continues the active run.
func (d *Daemon) Resume() error {
	return d.engine.Resume()
}

// CancelActive cancels the run currently executing.
func (d *Daemon) CancelActive() error {
	return d.engine.Cancel()
}

// CancelQueued cancels a pending item, or the active run when the item
// is already executing.
func (d *Daemon) CancelQueued(ctx context.Context, id int64) error {
	item, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	switch item.Status {
	case queue.StatusPending:
		return d.store.SetStatus(ctx, id, queue.StatusCancelled, "")
	case queue.StatusRunning:
		return d.engine.Cancel()
	default:
		return fmt.Errorf("queue item %d is already %s", id, item.Status)
	}
}

// Status reports daemon, run, and queue state.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	running := d.running
	lastError := d.lastError
	d.mu.Unlock()

	summary, err := d.store.Summarize(ctx)
	if err != nil {
		d.logger.Warn("queue summary failed", logging.Error(err))
	}
	return Status{
		Running:     running,
		PID:         os.Getpid(),
		State:       d.machine.State(),
		LastError:   lastError,
		Counters:    d.tracker.Snapshot(),
		Queue:       summary,
		QueueDBPath: d.store.Path(),
		LockPath:    d.lockPath,
	}
}

// ListQueue returns queue items, optionally filtered by status.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	return d.store.List(ctx, statuses...)
}

// RemoveQueueItem deletes a non-running item.
func (d *Daemon) RemoveQueueItem(ctx context.Context, id int64) error {
	return d.store.Remove(ctx, id)
}

// ClearQueue removes terminal items, or everything except the running
// item when all is set.
func (d *Daemon) ClearQueue(ctx context.Context, all bool) (int64, error) {
	return d.store.Clear(ctx, all)
}

// EventsSince returns buffered progress events newer than seq.
func (d *Daemon) EventsSince(seq uint64) []events.Event {
	return d.bus.Since(seq)
}

// Metrics returns the recorded batch metrics, newest first.
func (d *Daemon) Metrics() ([]metrics.BatchMetric, error) {
	return d.collector.LoadAll()
}

// TestNotification sends a test push and reports the outcome.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, err.Error(), err
	}
	return true, "notification sent", nil
}

// LogPath returns the daemon log file location.
func (d *Daemon) LogPath() string {
	return filepath.Join(d.cfg.Paths.LogDir, "easeld.log")
}
