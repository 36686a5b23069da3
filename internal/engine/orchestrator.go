package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"easel/internal/batch"
	"easel/internal/checkpoint"
	"easel/internal/events"
	"easel/internal/lifecycle"
	"easel/internal/logging"
	"easel/internal/metrics"
)

const conditioningCacheSize = 32

// Report summarizes one finished run.
type Report struct {
	BatchID   string
	Mode      batch.Mode
	Preset    string
	Total     int
	Completed int
	Accepted  int
	Rejected  int
	Retries   int
	Cancelled bool
	Duration  time.Duration
	ScoreAvg  float64
	ScoreMin  float64
	ScoreMax  float64
	Scored    int
}

// Run executes one batch to completion, cancellation, or startup
// failure. Item-level failures are absorbed into the rejected count;
// the returned error covers only problems that prevent the run from
// starting.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (Report, error) {
	var report Report

	if cfg.PresetName != "" {
		if e.presets == nil {
			return report, fmt.Errorf("run: preset %s requested but no preset store configured", cfg.PresetName)
		}
		p, err := e.presets.Load(cfg.PresetName)
		if err != nil {
			return report, fmt.Errorf("run: %w", err)
		}
		cfg = applyPreset(cfg, p)
	}
	if err := cfg.Validate(); err != nil {
		return report, err
	}
	if cfg.BatchID == "" {
		cfg.BatchID = uuid.New().String()
	}
	mode := cfg.mode()
	report.BatchID = cfg.BatchID
	report.Mode = mode
	report.Preset = cfg.PresetName

	runMeta := map[string]string{
		"batch_id": cfg.BatchID,
		"mode":     string(mode),
	}
	if cfg.PresetName != "" {
		runMeta["preset"] = cfg.PresetName
	}
	if err := e.machine.Start(runMeta); err != nil {
		return report, err
	}
	e.ctl.reset()
	startedAt := time.Now()

	items, err := e.buildItems(cfg)
	if err != nil {
		e.machine.Fail(err.Error(), nil)
		return report, err
	}
	if err := e.tracker.Start(len(items), mode); err != nil {
		e.machine.Fail(err.Error(), nil)
		return report, err
	}
	report.Total = len(items)

	if err := e.machine.MarkReady(); err != nil {
		return report, err
	}
	if err := e.tracker.MarkReady(); err != nil {
		e.logger.Warn("tracker ready out of step", logging.Error(err))
	}
	e.logger.Info("run started",
		logging.String(logging.FieldBatchID, cfg.BatchID),
		logging.String("mode", string(mode)),
		logging.Int("total", len(items)))
	e.publish(events.TypeStarted, cfg.BatchID, "run started", 0)

	cache, cacheErr := lru.New[uint64, []byte](conditioningCacheSize)
	if cacheErr != nil {
		return report, fmt.Errorf("run: conditioning cache: %w", cacheErr)
	}

	var (
		cancelled  bool
		scoreSum   float64
		scoreMin   float64
		scoreMax   float64
		scoreCount int
	)
	for i := range items {
		if e.pausepoint() {
			cancelled = true
			break
		}
		item := items[i]
		e.prepareConditioning(ctx, cache, &item)

		var outcome itemOutcome
		if cfg.BestOfN > 1 {
			outcome = e.runBestOf(ctx, cfg, item)
		} else {
			outcome = e.runItem(ctx, cfg, item, true)
		}
		if outcome.interrupted {
			cancelled = true
			break
		}
		if err := e.tracker.Tick(outcome.accepted); err != nil {
			e.logger.Warn("tracker tick out of step", logging.Error(err))
		}
		if outcome.scored {
			if scoreCount == 0 || outcome.score < scoreMin {
				scoreMin = outcome.score
			}
			if scoreCount == 0 || outcome.score > scoreMax {
				scoreMax = outcome.score
			}
			scoreSum += outcome.score
			scoreCount++
		}

		counters := e.tracker.Snapshot()
		e.saveCheckpoint(counters)
		e.publish(events.TypeProgress, cfg.BatchID, outcome.reason, eta(startedAt, counters))
	}

	counters := e.tracker.Snapshot()
	report.Completed = counters.CurrentIndex
	report.Accepted = counters.Accepted
	report.Rejected = counters.Rejected
	report.Retries = counters.Retries
	report.Cancelled = cancelled
	report.Duration = time.Since(startedAt)
	if scoreCount > 0 {
		report.ScoreAvg = scoreSum / float64(scoreCount)
		report.ScoreMin = scoreMin
		report.ScoreMax = scoreMax
		report.Scored = scoreCount
	}

	e.finish(cfg, report, startedAt, cancelled)
	return report, nil
}

// pausepoint is the run loop's suspension point. A pending pause moves
// both state machines to PAUSED here, at the item boundary, before
// blocking; the return value reports cancellation.
func (e *Engine) pausepoint() bool {
	if e.ctl.pausePending() {
		if err := e.machine.Pause(); err != nil {
			e.logger.Warn("machine pause out of step", logging.Error(err))
		} else {
			if err := e.tracker.Pause(); err != nil {
				e.logger.Warn("tracker pause out of step", logging.Error(err))
			}
			e.logger.Info("run paused")
		}
	}
	return e.ctl.shouldStop()
}

// finish settles both state machines, persists the metric record, and
// announces the outcome.
func (e *Engine) finish(cfg RunConfig, report Report, startedAt time.Time, cancelled bool) {
	if cancelled {
		// Cancellation via context never went through Cancel, so the
		// state machines may still believe the run is live.
		if e.tracker.State() == batch.StateRunning || e.tracker.State() == batch.StatePaused {
			if err := e.tracker.Cancel(); err != nil {
				e.logger.Warn("tracker cancel out of step", logging.Error(err))
			}
		}
		if e.tracker.State() == batch.StateCancelling {
			if err := e.tracker.CancelCompleted(); err != nil {
				e.logger.Warn("tracker cancel completion out of step", logging.Error(err))
			}
		}
		if e.machine.CanCancel() {
			if err := e.machine.Cancel(); err != nil {
				e.logger.Warn("machine cancel out of step", logging.Error(err))
			}
		}
		if e.machine.State() == lifecycle.StateCancelling {
			if err := e.machine.Reset(); err != nil {
				e.logger.Warn("machine reset out of step", logging.Error(err))
			}
		}
	} else {
		if err := e.machine.Complete(map[string]string{
			"accepted": strconv.Itoa(report.Accepted),
			"rejected": strconv.Itoa(report.Rejected),
		}); err != nil {
			e.logger.Warn("machine completion out of step", logging.Error(err))
		}
	}

	if e.checkpoints != nil {
		e.checkpoints.Flush()
		if err := e.checkpoints.Discard(); err != nil {
			e.logger.Warn("checkpoint discard failed", logging.Error(err))
		}
	}
	if e.collector != nil {
		metric := metrics.BatchMetric{
			BatchID:    cfg.BatchID,
			StartedAt:  startedAt.UTC(),
			FinishedAt: time.Now().UTC(),
			Mode:       string(report.Mode),
			Preset:     cfg.PresetName,
			Total:      report.Total,
			Accepted:   report.Accepted,
			Rejected:   report.Rejected,
			Retries:    report.Retries,
			ScoreAvg:   report.ScoreAvg,
			ScoreMin:   report.ScoreMin,
			ScoreMax:   report.ScoreMax,
			Device:     e.device,
		}
		if report.Completed > 0 {
			metric.AvgItemTime = report.Duration.Seconds() / float64(report.Completed)
		}
		if err := e.collector.Save(metric); err != nil {
			e.logger.Warn("metric save failed", logging.Error(err))
		}
	}

	message := fmt.Sprintf("%d accepted, %d rejected, %d retries", report.Accepted, report.Rejected, report.Retries)
	if cancelled {
		e.logger.Info("run cancelled",
			logging.String(logging.FieldBatchID, cfg.BatchID),
			logging.Int("completed", report.Completed),
			logging.Int("total", report.Total))
		e.publish(events.TypeCancelled, cfg.BatchID, message, 0)
		return
	}
	e.logger.Info("run completed",
		logging.String(logging.FieldBatchID, cfg.BatchID),
		logging.Int("accepted", report.Accepted),
		logging.Int("rejected", report.Rejected),
		logging.Int("retries", report.Retries))
	e.publish(events.TypeCompleted, cfg.BatchID, message, 0)
}

// buildItems expands the run into its work items. Folder mode pairs
// every input file with batch size slots.
func (e *Engine) buildItems(cfg RunConfig) ([]workItem, error) {
	if strings.TrimSpace(cfg.InputFolder) == "" {
		items := make([]workItem, cfg.BatchSize)
		for i := range items {
			items[i] = workItem{index: i}
		}
		return items, nil
	}

	entries, err := os.ReadDir(cfg.InputFolder)
	if err != nil {
		return nil, fmt.Errorf("run: read input folder: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg", ".webp":
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("run: no input images in %s", cfg.InputFolder)
	}
	sort.Strings(names)

	items := make([]workItem, 0, len(names)*cfg.BatchSize)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(cfg.InputFolder, name))
		if err != nil {
			return nil, fmt.Errorf("run: read input %s: %w", name, err)
		}
		for i := 0; i < cfg.BatchSize; i++ {
			items = append(items, workItem{
				index:      len(items),
				inputName:  name,
				inputImage: data,
			})
		}
	}
	return items, nil
}

// prepareConditioning derives conditioning for an input image, reusing
// the cached result whenever the same bytes were already prepared this
// run.
func (e *Engine) prepareConditioning(ctx context.Context, cache *lru.Cache[uint64, []byte], item *workItem) {
	if e.preparer == nil || len(item.inputImage) == 0 {
		return
	}
	key := xxhash.Sum64(item.inputImage)
	if conditioning, ok := cache.Get(key); ok {
		item.conditioning = conditioning
		return
	}
	conditioning, err := e.preparer.Prepare(ctx, item.inputImage)
	if err != nil {
		e.logger.Warn("conditioning preparation failed",
			logging.String("input", item.inputName),
			logging.Error(err))
		return
	}
	cache.Add(key, conditioning)
	item.conditioning = conditioning
}

func (e *Engine) saveCheckpoint(counters batch.Counters) {
	if e.checkpoints == nil {
		return
	}
	e.checkpoints.Save(checkpoint.Snapshot{
		State:     e.machine.State(),
		Batch:     counters,
		Metadata:  e.machine.Metadata(),
		Timestamp: time.Now().UTC(),
	})
}

func (e *Engine) publish(eventType events.Type, batchID, message string, eta time.Duration) {
	if e.bus == nil {
		return
	}
	counters := e.tracker.Snapshot()
	e.bus.Publish(events.Event{
		Type:     eventType,
		BatchID:  batchID,
		Current:  counters.CurrentIndex,
		Total:    counters.Total,
		Accepted: counters.Accepted,
		Rejected: counters.Rejected,
		Status:   string(e.machine.State()),
		Message:  message,
		ETA:      eta,
	})
}

// eta projects remaining wall time from the average pace so far.
func eta(startedAt time.Time, counters batch.Counters) time.Duration {
	if counters.CurrentIndex == 0 || counters.CurrentIndex >= counters.Total {
		return 0
	}
	elapsed := time.Since(startedAt)
	perItem := elapsed / time.Duration(counters.CurrentIndex)
	return perItem * time.Duration(counters.Total-counters.CurrentIndex)
}
