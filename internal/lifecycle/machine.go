package lifecycle

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"easel/internal/logging"
)

// State represents the lifecycle of the generation system.
type State string

const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateCancelling State = "cancelling"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// historyCap bounds the transition history ring.
const historyCap = 100

var validTransitions = map[State][]State{
	StateIdle:       {StatePreparing},
	StatePreparing:  {StateRunning, StateError},
	StateRunning:    {StatePaused, StateCancelling, StateCompleted, StateError},
	StatePaused:     {StateRunning, StateCancelling},
	StateCancelling: {StateIdle},
	StateCompleted:  {StateIdle},
	StateError:      {StateIdle},
}

// InvalidTransitionError reports an attempted transition outside the table.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	allowed := validTransitions[e.From]
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return fmt.Sprintf("invalid transition: %s -> %s (valid from %s: %s)",
		e.From, e.To, e.From, strings.Join(names, ", "))
}

// TransitionRecord captures one completed transition for audit purposes.
type TransitionRecord struct {
	From      State             `json:"from"`
	To        State             `json:"to"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PersistenceHook receives a write-through notification after every
// successful transition.
type PersistenceHook func(state State, metadata map[string]string)

// InterruptObserver receives the cooperative-cancel flag: true on entering
// CANCELLING, false on returning to IDLE.
type InterruptObserver func(active bool)

// Machine is the validated process-wide lifecycle state machine.
type Machine struct {
	mu           sync.RWMutex
	state        State
	metadata     map[string]string
	errorMessage string
	history      []TransitionRecord
	transitionAt time.Time

	persist   PersistenceHook
	interrupt InterruptObserver
	logger    *slog.Logger
}

// Option configures optional Machine behavior.
type Option func(*Machine)

// WithPersistenceHook registers the write-through persistence hook.
func WithPersistenceHook(hook PersistenceHook) Option {
	return func(m *Machine) { m.persist = hook }
}

// WithInterruptObserver registers the cooperative-cancel observer.
func WithInterruptObserver(obs InterruptObserver) Option {
	return func(m *Machine) { m.interrupt = obs }
}

// WithLogger attaches a logger for transition records.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// NewMachine constructs a Machine in the IDLE state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:        StateIdle,
		metadata:     make(map[string]string),
		transitionAt: time.Now().UTC(),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "lifecycle")
	return m
}

// transition validates and applies one state change. No mutation happens on
// a validation failure.
func (m *Machine) transition(target State, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := false
	for _, next := range validTransitions[m.state] {
		if next == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return &InvalidTransitionError{From: m.state, To: target}
	}

	from := m.state
	m.state = target
	m.transitionAt = time.Now().UTC()

	for key, value := range metadata {
		m.metadata[key] = value
	}
	if from == StateError && target != StateError {
		m.errorMessage = ""
	}

	m.history = append(m.history, TransitionRecord{
		From:      from,
		To:        target,
		Timestamp: m.transitionAt,
		Metadata:  copyMetadata(metadata),
	})
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}

	m.logger.Debug("state transition",
		logging.String("from", string(from)),
		logging.String(logging.FieldState, string(target)),
	)

	if m.persist != nil {
		m.persist(target, copyMetadata(m.metadata))
	}
	if m.interrupt != nil {
		switch target {
		case StateCancelling:
			m.interrupt(true)
		case StateIdle:
			m.interrupt(false)
		}
	}
	return nil
}

// Start begins a new generation (IDLE -> PREPARING).
func (m *Machine) Start(metadata map[string]string) error {
	return m.transition(StatePreparing, metadata)
}

// MarkReady marks preparation complete (PREPARING -> RUNNING).
func (m *Machine) MarkReady() error {
	return m.transition(StateRunning, nil)
}

// Pause suspends generation (RUNNING -> PAUSED).
func (m *Machine) Pause() error {
	return m.transition(StatePaused, nil)
}

// Resume continues generation (PAUSED -> RUNNING).
func (m *Machine) Resume() error {
	return m.transition(StateRunning, nil)
}

// Cancel requests cancellation (RUNNING/PAUSED -> CANCELLING).
func (m *Machine) Cancel() error {
	return m.transition(StateCancelling, nil)
}

// Complete marks generation finished (RUNNING -> COMPLETED).
func (m *Machine) Complete(metadata map[string]string) error {
	return m.transition(StateCompleted, metadata)
}

// Fail marks generation failed (PREPARING/RUNNING -> ERROR) and records the
// error message. The message is only stored when the transition is legal.
func (m *Machine) Fail(message string, metadata map[string]string) error {
	if err := m.transition(StateError, metadata); err != nil {
		return err
	}
	m.mu.Lock()
	m.errorMessage = message
	m.mu.Unlock()
	return nil
}

// Reset returns to IDLE (CANCELLING/COMPLETED/ERROR -> IDLE), clearing
// metadata and any stored error message.
func (m *Machine) Reset() error {
	if err := m.transition(StateIdle, nil); err != nil {
		return err
	}
	m.mu.Lock()
	m.metadata = make(map[string]string)
	m.errorMessage = ""
	m.mu.Unlock()
	return nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ErrorMessage returns the stored error message when the state is ERROR.
func (m *Machine) ErrorMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorMessage
}

// Metadata returns a defensive copy of the attached metadata.
func (m *Machine) Metadata() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMetadata(m.metadata)
}

// History returns a copy of the bounded transition history, oldest first.
func (m *Machine) History() []TransitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TransitionRecord, len(m.history))
	copy(out, m.history)
	return out
}

// IsActive reports whether a generation is in flight (PREPARING, RUNNING, or
// PAUSED).
func (m *Machine) IsActive() bool {
	switch m.State() {
	case StatePreparing, StateRunning, StatePaused:
		return true
	default:
		return false
	}
}

// CanCancel reports whether Cancel is currently legal.
func (m *Machine) CanCancel() bool {
	switch m.State() {
	case StateRunning, StatePaused:
		return true
	default:
		return false
	}
}

func copyMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StateIdle, StatePreparing, StateRunning, StatePaused, StateCancelling, StateCompleted, StateError:
		return normalized, true
	default:
		return "", false
	}
}
