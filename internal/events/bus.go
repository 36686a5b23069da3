package events

import (
	"log/slog"
	"sync"
	"time"

	"easel/internal/logging"
)

// Type labels what an event announces.
type Type string

const (
	TypeProgress  Type = "progress"
	TypeStarted   Type = "started"
	TypeCompleted Type = "completed"
	TypeCancelled Type = "cancelled"
	TypeFailed    Type = "failed"
)

// Event is one progress update. Seq is assigned by the bus and strictly
// increases for the life of the process.
type Event struct {
	Seq       uint64        `json:"seq"`
	Type      Type          `json:"type"`
	BatchID   string        `json:"batch_id"`
	Current   int           `json:"current"`
	Total     int           `json:"total"`
	Accepted  int           `json:"accepted"`
	Rejected  int           `json:"rejected"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	ETA       time.Duration `json:"eta,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Callback receives published events. Callbacks run on the publisher's
// goroutine, so they should return quickly.
type Callback func(Event)

// Bus is a bounded in-memory event log with callback fanout.
type Bus struct {
	mu        sync.Mutex
	buffer    []Event
	capacity  int
	nextSeq   uint64
	callbacks []Callback
	logger    *slog.Logger
}

// NewBus creates a bus retaining at most capacity events.
func NewBus(capacity int, logger *slog.Logger) *Bus {
	if capacity <= 0 {
		capacity = 500
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{capacity: capacity, nextSeq: 1, logger: logger}
}

// Subscribe registers a callback for every future event.
func (b *Bus) Subscribe(cb Callback) {
	if cb == nil {
		return
	}
	b.mu.Lock()
	b.callbacks = append(b.callbacks, cb)
	b.mu.Unlock()
}

// Publish stamps the event with a sequence number and timestamp,
// records it, and notifies subscribers.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	event.Seq = b.nextSeq
	b.nextSeq++
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.buffer = append(b.buffer, event)
	if len(b.buffer) > b.capacity {
		b.buffer = b.buffer[len(b.buffer)-b.capacity:]
	}
	callbacks := make([]Callback, len(b.callbacks))
	copy(callbacks, b.callbacks)
	b.mu.Unlock()

	for _, cb := range callbacks {
		b.deliver(cb, event)
	}
	return event
}

// Since returns all retained events with a sequence number greater than
// seq, oldest first. Pass zero for the full retained history.
func (b *Bus) Since(seq uint64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := len(b.buffer)
	for i, event := range b.buffer {
		if event.Seq > seq {
			start = i
			break
		}
	}
	out := make([]Event, len(b.buffer)-start)
	copy(out, b.buffer[start:])
	return out
}

// Latest returns the most recent event, if any.
func (b *Bus) Latest() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buffer) == 0 {
		return Event{}, false
	}
	return b.buffer[len(b.buffer)-1], true
}

func (b *Bus) deliver(cb Callback, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event subscriber panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, string(event.Type)))
		}
	}()
	cb(event)
}
