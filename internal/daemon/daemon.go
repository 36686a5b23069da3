package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"easel/internal/batch"
	"easel/internal/checkpoint"
	"easel/internal/config"
	"easel/internal/engine"
	"easel/internal/events"
	"easel/internal/lifecycle"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/notifications"
	"easel/internal/outputs"
	"easel/internal/preset"
	"easel/internal/quality"
	"easel/internal/queue"
	"easel/internal/synthesis"
)

// Daemon drives queued runs through the engine.
type Daemon struct {
	cfg         *config.Config
	store       *queue.Store
	engine      *engine.Engine
	machine     *lifecycle.Machine
	tracker     *batch.Tracker
	checkpoints *checkpoint.Store
	bus         *events.Bus
	collector   *metrics.Collector
	notifier    notifications.Service
	logger      *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastError string
	recovered *checkpoint.Snapshot
}

// New wires the full daemon from configuration. The queue database is
// opened and an interrupted previous run, if any, is detected here.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := queue.Open(cfg.QueueDBPath())
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}

	var interrupt synthesis.InterruptFlag
	machine := lifecycle.NewMachine(
		lifecycle.WithInterruptObserver(interrupt.Observe),
		lifecycle.WithLogger(logging.NewComponentLogger(logger, "lifecycle")),
	)
	tracker := batch.NewTracker()

	checkpoints := checkpoint.NewStore(
		cfg.CheckpointPath(),
		cfg.Workflow.CheckpointQueueDepth,
		logging.NewComponentLogger(logger, "checkpoint"),
	)
	recovered := checkpoints.LoadRecoveryData()

	pipeline, err := synthesis.NewHTTPPipeline(
		cfg.Synthesis.Endpoint,
		&interrupt,
		synthesis.WithTimeout(time.Duration(cfg.Synthesis.TimeoutSeconds)*time.Second),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	var scorer quality.Scorer
	if cfg.Scorer.Enabled {
		httpScorer, err := synthesis.NewHTTPScorer(cfg.Scorer.Endpoint, time.Duration(cfg.Scorer.TimeoutSeconds)*time.Second)
		if err != nil {
			store.Close()
			return nil, err
		}
		scorer = httpScorer
	}
	gate := quality.NewGate(quality.Bounds{
		MinMean:   cfg.Quality.MinMean,
		MaxMean:   cfg.Quality.MaxMean,
		MinStdDev: cfg.Quality.MinStd,
	}, scorer, logging.NewComponentLogger(logger, "quality"))

	var syncer *outputs.Syncer
	if cfg.Paths.RemoteRoot != "" {
		syncer = outputs.NewSyncer(cfg.Paths.RemoteRoot, logging.NewComponentLogger(logger, "sync"))
	}

	bus := events.NewBus(cfg.Workflow.EventBufferSize, logging.NewComponentLogger(logger, "events"))
	collector := metrics.NewCollector(cfg.Paths.MetricsDir, logging.NewComponentLogger(logger, "metrics"))

	eng, err := engine.New(engine.Deps{
		Pipeline:    pipeline,
		Preparer:    pipeline,
		Gate:        gate,
		Saver:       outputs.NewSaver(cfg.Paths.OutputDir),
		Syncer:      syncer,
		Presets:     preset.NewStore(cfg.Paths.PresetDir),
		Machine:     machine,
		Tracker:     tracker,
		Checkpoints: checkpoints,
		Bus:         bus,
		Collector:   collector,
		Device:      cfg.Synthesis.Device,
		Logger:      logging.NewComponentLogger(logger, "engine"),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "easeld.lock")
	d := &Daemon{
		cfg:         cfg,
		store:       store,
		engine:      eng,
		machine:     machine,
		tracker:     tracker,
		checkpoints: checkpoints,
		bus:         bus,
		collector:   collector,
		notifier:    notifications.NewService(cfg),
		logger:      logging.NewComponentLogger(logger, "daemon"),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
		recovered:   recovered,
	}
	// The engine knows the real item total only once a run starts, so
	// the start notification rides on its event.
	bus.Subscribe(func(e events.Event) {
		if e.Type == events.TypeStarted {
			d.notifyAsync(func(nctx context.Context) error {
				return d.notifier.NotifyRunStarted(nctx, e.BatchID, e.Total)
			})
		}
	})
	return d, nil
}

// Start acquires the daemon lock and begins draining the queue.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another daemon instance holds %s", d.lockPath)
	}

	d.reportRecovery(ctx)
	if recovered, err := d.store.RecoverStuck(ctx); err != nil {
		d.logger.Warn("queue recovery failed", logging.Error(err))
	} else if recovered > 0 {
		d.logger.Info("requeued interrupted runs", logging.Int64("count", recovered))
	}

	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.wg.Add(1)
	go d.drain(workerCtx)
	d.logger.Info("daemon started", logging.Int("pid", os.Getpid()))
	return nil
}

// Stop halts queue processing. A run in flight is cancelled.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	if d.machine.CanCancel() {
		if err := d.engine.Cancel(); err != nil {
			d.logger.Warn("cancel on stop failed", logging.Error(err))
		}
	}
	cancel()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock failed", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Close releases resources after Stop.
func (d *Daemon) Close() error {
	d.Stop()
	d.checkpoints.Close()
	return d.store.Close()
}

// drain claims pending runs until the context ends.
func (d *Daemon) drain(ctx context.Context) {
	defer d.wg.Done()
	poll := time.Duration(d.cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	retry := time.Duration(d.cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = poll
	}

	for {
		if ctx.Err() != nil {
			return
		}
		item, err := d.store.NextPending(ctx)
		if err != nil {
			d.setLastError(err.Error())
			d.logger.Error("queue poll failed", logging.Error(err))
			if !sleep(ctx, retry) {
				return
			}
			continue
		}
		if item == nil {
			if !sleep(ctx, poll) {
				return
			}
			continue
		}
		d.execute(ctx, item)
	}
}

// execute runs one queue item and records its terminal status.
func (d *Daemon) execute(ctx context.Context, item *queue.Item) {
	var cfg engine.RunConfig
	if err := json.Unmarshal([]byte(item.ConfigJSON), &cfg); err != nil {
		d.logger.Error("queued run config unreadable",
			logging.String(logging.FieldBatchID, item.BatchID),
			logging.Error(err))
		d.finishItem(ctx, item.ID, queue.StatusFailed, fmt.Sprintf("config unreadable: %v", err))
		return
	}
	cfg.BatchID = item.BatchID

	// A fresh run needs both machines back at their starting states.
	if err := d.machine.Reset(); err != nil && d.machine.State() != lifecycle.StateIdle {
		d.logger.Warn("machine reset before run failed", logging.Error(err))
	}
	if err := d.tracker.Reset(); err != nil && d.tracker.State() != batch.StateInactive {
		d.logger.Warn("tracker reset before run failed", logging.Error(err))
	}

	report, err := d.engine.Run(ctx, cfg)
	switch {
	case err != nil:
		d.setLastError(err.Error())
		d.logger.Error("run failed",
			logging.String(logging.FieldBatchID, item.BatchID),
			logging.Error(err))
		d.finishItem(ctx, item.ID, queue.StatusFailed, err.Error())
		d.notifyAsync(func(nctx context.Context) error {
			return d.notifier.NotifyError(nctx, err, "run "+item.BatchID)
		})
	case report.Cancelled:
		d.finishItem(ctx, item.ID, queue.StatusCancelled, "")
		d.notifyAsync(func(nctx context.Context) error {
			return d.notifier.NotifyRunCancelled(nctx, item.BatchID, report.Completed, report.Total)
		})
	default:
		d.setLastError("")
		d.finishItem(ctx, item.ID, queue.StatusCompleted, "")
		d.notifyAsync(func(nctx context.Context) error {
			return d.notifier.NotifyRunCompleted(nctx, item.BatchID, report.Accepted, report.Rejected, report.Duration)
		})
	}
}

func (d *Daemon) finishItem(ctx context.Context, id int64, status queue.Status, message string) {
	if err := d.store.SetStatus(ctx, id, status, message); err != nil {
		d.logger.Error("queue status update failed",
			logging.Int64("item_id", id),
			logging.Error(err))
	}
}

// reportRecovery surfaces a checkpoint left behind by a crash.
func (d *Daemon) reportRecovery(ctx context.Context) {
	if d.recovered == nil {
		return
	}
	snapshot := d.recovered
	d.recovered = nil
	batchID := snapshot.Metadata["batch_id"]
	d.logger.Warn("previous run was interrupted",
		logging.String(logging.FieldBatchID, batchID),
		logging.String(logging.FieldState, string(snapshot.State)),
		logging.Int("item", snapshot.Batch.CurrentIndex),
		logging.Int("total", snapshot.Batch.Total))
	d.notifyAsync(func(nctx context.Context) error {
		return d.notifier.NotifyRecoveredRun(nctx, batchID, snapshot.Batch.CurrentIndex, snapshot.Batch.Total)
	})
	if err := d.checkpoints.Discard(); err != nil {
		d.logger.Warn("stale checkpoint discard failed", logging.Error(err))
	}
}

func (d *Daemon) notifyAsync(send func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			d.logger.Warn("notification failed", logging.Error(err))
		}
	}()
}

func (d *Daemon) setLastError(message string) {
	d.mu.Lock()
	d.lastError = message
	d.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
