package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"easel/internal/batch"
	"easel/internal/checkpoint"
	"easel/internal/events"
	"easel/internal/lifecycle"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/outputs"
	"easel/internal/preset"
	"easel/internal/quality"
	"easel/internal/synthesis"
)

// Deps wires the engine's collaborators. Pipeline, Machine, Tracker,
// and Saver are required; everything else degrades gracefully when
// absent.
type Deps struct {
	Pipeline    synthesis.Pipeline
	Preparer    synthesis.Preparer
	Gate        *quality.Gate
	Saver       *outputs.Saver
	Syncer      *outputs.Syncer
	Presets     *preset.Store
	Machine     *lifecycle.Machine
	Tracker     *batch.Tracker
	Checkpoints *checkpoint.Store
	Bus         *events.Bus
	Collector   *metrics.Collector
	Device      string
	Logger      *slog.Logger
}

// Engine executes batch runs one at a time.
type Engine struct {
	pipeline    synthesis.Pipeline
	preparer    synthesis.Preparer
	gate        *quality.Gate
	saver       *outputs.Saver
	syncer      *outputs.Syncer
	presets     *preset.Store
	machine     *lifecycle.Machine
	tracker     *batch.Tracker
	checkpoints *checkpoint.Store
	bus         *events.Bus
	collector   *metrics.Collector
	device      string
	logger      *slog.Logger

	ctl control
}

func New(deps Deps) (*Engine, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("engine: pipeline required")
	}
	if deps.Machine == nil || deps.Tracker == nil {
		return nil, fmt.Errorf("engine: lifecycle machine and batch tracker required")
	}
	if deps.Saver == nil {
		return nil, fmt.Errorf("engine: output saver required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		pipeline:    deps.Pipeline,
		preparer:    deps.Preparer,
		gate:        deps.Gate,
		saver:       deps.Saver,
		syncer:      deps.Syncer,
		presets:     deps.Presets,
		machine:     deps.Machine,
		tracker:     deps.Tracker,
		checkpoints: deps.Checkpoints,
		bus:         deps.Bus,
		collector:   deps.Collector,
		device:      deps.Device,
		logger:      logger,
	}
	e.ctl.init()
	return e, nil
}

// Pause requests suspension before the next item. The in-flight item
// finishes first; the state machines move to PAUSED when the run loop
// reaches the item boundary, never mid-item. A request landing on the
// final item expires unused once the run completes.
func (e *Engine) Pause() error {
	if state := e.machine.State(); state != lifecycle.StateRunning {
		return &lifecycle.InvalidTransitionError{From: state, To: lifecycle.StatePaused}
	}
	e.ctl.pause()
	e.logger.Info("pause requested")
	return nil
}

// Resume continues a paused run. A pause request that has not reached
// its item boundary yet is withdrawn instead.
func (e *Engine) Resume() error {
	if e.machine.State() == lifecycle.StatePaused {
		if err := e.machine.Resume(); err != nil {
			return err
		}
		if err := e.tracker.Resume(); err != nil {
			e.logger.Warn("tracker resume out of step", logging.Error(err))
		}
		e.ctl.resume()
		e.logger.Info("run resumed")
		return nil
	}
	if e.ctl.resume() {
		e.logger.Info("pause request withdrawn")
		return nil
	}
	return &lifecycle.InvalidTransitionError{From: e.machine.State(), To: lifecycle.StateRunning}
}

// Cancel requests a stop. The run winds down after the in-flight item;
// a paused run is woken so the request is honored immediately.
func (e *Engine) Cancel() error {
	if err := e.machine.Cancel(); err != nil {
		return err
	}
	if err := e.tracker.Cancel(); err != nil {
		e.logger.Warn("tracker cancel out of step", logging.Error(err))
	}
	e.ctl.cancel()
	e.logger.Info("cancellation requested")
	return nil
}

// control coordinates pause and cancel between the control surface and
// the run loop.
type control struct {
	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	cancelled bool
}

func (c *control) init() {
	c.cond = sync.NewCond(&c.mu)
}

func (c *control) reset() {
	c.mu.Lock()
	c.paused = false
	c.cancelled = false
	c.mu.Unlock()
}

func (c *control) pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// resume clears the pause flag and reports whether one was set.
func (c *control) resume() bool {
	c.mu.Lock()
	was := c.paused
	c.paused = false
	c.mu.Unlock()
	c.cond.Broadcast()
	return was
}

// pausePending reports whether a pause request is waiting and not
// already superseded by a cancel.
func (c *control) pausePending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused && !c.cancelled
}

func (c *control) cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// shouldStop blocks while the run is paused and reports whether it was
// cancelled. Checking the flag again after waking means a cancel
// issued during a pause always wins over the resume.
func (c *control) shouldStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.cancelled {
		c.cond.Wait()
	}
	return c.cancelled
}
