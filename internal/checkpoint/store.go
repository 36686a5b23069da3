package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"easel/internal/batch"
	"easel/internal/lifecycle"
	"easel/internal/logging"
)

// Snapshot is the durable representation of in-flight progress.
type Snapshot struct {
	State     lifecycle.State   `json:"state"`
	Batch     batch.Counters    `json:"batch"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type writeRequest struct {
	snapshot *Snapshot
	done     chan struct{}
}

// Store writes snapshots to a single checkpoint file through a background
// worker. Callers must tolerate the on-disk state lagging the in-memory
// state by one write.
type Store struct {
	path   string
	logger *slog.Logger

	queue chan writeRequest

	closeOnce sync.Once
	closed    chan struct{}
	drained   chan struct{}
}

// NewStore starts a checkpoint store writing to path. queueDepth bounds the
// number of pending writes; when the queue is full the oldest pending write
// is discarded in favor of the newest snapshot.
func NewStore(path string, queueDepth int, logger *slog.Logger) *Store {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	s := &Store{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "checkpoint"),
		queue:   make(chan writeRequest, queueDepth),
		closed:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *Store) worker() {
	defer close(s.drained)
	for {
		select {
		case req := <-s.queue:
			s.handle(req)
		case <-s.closed:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case req := <-s.queue:
					s.handle(req)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) handle(req writeRequest) {
	if req.snapshot != nil {
		if err := s.write(req.snapshot); err != nil {
			s.logger.Warn("checkpoint write failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "checkpoint_write_failed"),
				logging.String(logging.FieldErrorHint, "check disk space and data directory permissions"),
			)
		}
	}
	if req.done != nil {
		close(req.done)
	}
}

// Save enqueues a snapshot write. It never blocks: when the queue is full
// the oldest queued snapshot is dropped, keeping writes ordered and the
// newest state durable.
func (s *Store) Save(snapshot Snapshot) {
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}
	req := writeRequest{snapshot: &snapshot}
	for {
		select {
		case s.queue <- req:
			return
		default:
		}
		select {
		case stale := <-s.queue:
			if stale.done != nil {
				close(stale.done)
			}
		default:
		}
	}
}

// Flush blocks until every write enqueued before the call has been handled.
// Tests use this instead of sleeping.
func (s *Store) Flush() {
	done := make(chan struct{})
	select {
	case s.queue <- writeRequest{done: done}:
		<-done
	case <-s.closed:
	}
}

// Close stops the background worker after draining pending writes.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	<-s.drained
}

func (s *Store) write(snapshot *Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadRecoveryData returns the persisted snapshot when it indicates an
// interrupted run (stored state not IDLE). A missing, unreadable, or corrupt
// checkpoint is treated as no recovery data, never as a fatal condition.
func (s *Store) LoadRecoveryData() *Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("checkpoint unreadable, treating as absent",
				logging.Error(err),
				logging.String(logging.FieldEventType, "checkpoint_read_failed"),
			)
		}
		return nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.logger.Warn("checkpoint corrupt, treating as absent",
			logging.Error(err),
			logging.String(logging.FieldEventType, "checkpoint_corrupt"),
		)
		return nil
	}
	if snapshot.State == "" || snapshot.State == lifecycle.StateIdle {
		return nil
	}
	return &snapshot
}

// Discard removes the checkpoint file.
func (s *Store) Discard() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
