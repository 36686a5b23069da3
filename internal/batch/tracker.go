package batch

import (
	"fmt"
	"sync"
)

// State represents the progress tracker's phase within one run.
type State string

const (
	StateInactive   State = "inactive"
	StatePreparing  State = "preparing"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateCancelling State = "cancelling"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Mode describes how the run was requested.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeBatch  Mode = "batch"
	ModeFolder Mode = "folder"
)

// ValidationError reports unusable tracker input (e.g. a non-positive total).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

// InvalidTransitionError reports a tracker call outside its legal states.
type InvalidTransitionError struct {
	Op       string
	From     State
	Expected string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s requires %s, current state is %s", e.Op, e.Expected, e.From)
}

// Counters is a snapshot of per-run progress.
type Counters struct {
	CurrentIndex int    `json:"current"`
	Total        int    `json:"total"`
	Accepted     int    `json:"accepted"`
	Rejected     int    `json:"rejected"`
	Retries      int    `json:"retries"`
	Mode         Mode   `json:"mode"`
	Paused       bool   `json:"paused"`
	Error        string `json:"error,omitempty"`
}

// Tracker is the per-run progress state machine. All mutation happens under
// one mutex; snapshots are torn-free.
type Tracker struct {
	mu       sync.RWMutex
	state    State
	counters Counters
}

// NewTracker constructs an inactive tracker.
func NewTracker() *Tracker {
	return &Tracker{state: StateInactive}
}

// Start begins a run of total items (INACTIVE -> PREPARING).
func (t *Tracker) Start(total int, mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateInactive {
		return &InvalidTransitionError{Op: "start", From: t.state, Expected: string(StateInactive)}
	}
	if total <= 0 {
		return &ValidationError{Field: "total", Message: "must be > 0"}
	}
	t.counters = Counters{Total: total, Mode: mode}
	t.state = StatePreparing
	return nil
}

// SetTotal rewrites the expected total while still PREPARING. Folder mode
// uses this once the input files have been enumerated.
func (t *Tracker) SetTotal(total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePreparing {
		return &InvalidTransitionError{Op: "set_total", From: t.state, Expected: string(StatePreparing)}
	}
	if total <= 0 {
		return &ValidationError{Field: "total", Message: "must be > 0"}
	}
	t.counters.Total = total
	return nil
}

// MarkReady marks preparation complete (PREPARING -> RUNNING).
func (t *Tracker) MarkReady() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePreparing {
		return &InvalidTransitionError{Op: "mark_ready", From: t.state, Expected: string(StatePreparing)}
	}
	t.state = StateRunning
	return nil
}

// Tick records one completed item and its outcome, auto-completing when the
// final item lands. No separate finish call exists in the common path.
// Ticks are only legal while RUNNING: pausing takes effect at item
// boundaries, so the in-flight item is always recorded first.
func (t *Tracker) Tick(accepted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning {
		return &InvalidTransitionError{Op: "tick", From: t.state, Expected: string(StateRunning)}
	}
	t.counters.CurrentIndex++
	if accepted {
		t.counters.Accepted++
	} else {
		t.counters.Rejected++
	}
	if t.counters.CurrentIndex >= t.counters.Total {
		t.state = StateCompleted
	}
	return nil
}

// RecordRetry increments the run's retry counter.
func (t *Tracker) RecordRetry() {
	t.mu.Lock()
	t.counters.Retries++
	t.mu.Unlock()
}

// Pause suspends the run (RUNNING -> PAUSED).
func (t *Tracker) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning {
		return &InvalidTransitionError{Op: "pause", From: t.state, Expected: string(StateRunning)}
	}
	t.state = StatePaused
	t.counters.Paused = true
	return nil
}

// Resume continues the run (PAUSED -> RUNNING).
func (t *Tracker) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePaused {
		return &InvalidTransitionError{Op: "resume", From: t.state, Expected: string(StatePaused)}
	}
	t.state = StateRunning
	t.counters.Paused = false
	return nil
}

// Cancel requests cancellation (PREPARING/RUNNING/PAUSED -> CANCELLING).
// Finalization happens separately via CancelCompleted so the orchestrator
// can run cleanup in between.
func (t *Tracker) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StatePreparing, StateRunning, StatePaused:
		t.state = StateCancelling
		t.counters.Paused = false
		return nil
	default:
		return &InvalidTransitionError{Op: "cancel", From: t.state, Expected: "preparing, running, or paused"}
	}
}

// CancelCompleted acknowledges a finished cancellation (CANCELLING -> COMPLETED).
func (t *Tracker) CancelCompleted() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateCancelling {
		return &InvalidTransitionError{Op: "cancel_completed", From: t.state, Expected: string(StateCancelling)}
	}
	t.state = StateCompleted
	return nil
}

// Fail records a fatal run error from any active state.
func (t *Tracker) Fail(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StatePreparing, StateRunning, StatePaused, StateCancelling:
		t.state = StateError
		t.counters.Error = message
		t.counters.Paused = false
		return nil
	default:
		return &InvalidTransitionError{Op: "fail", From: t.state, Expected: "an active state"}
	}
}

// Reset clears the tracker (COMPLETED/ERROR -> INACTIVE).
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateCompleted, StateError:
		t.state = StateInactive
		t.counters = Counters{}
		return nil
	default:
		return &InvalidTransitionError{Op: "reset", From: t.state, Expected: "completed or error"}
	}
}

// State returns the tracker's current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Counters {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counters
}
