package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound marks lookups of items that do not exist.
var ErrNotFound = errors.New("queue item not found")

// Store manages run queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure queue directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Add enqueues a run as pending.
func (s *Store) Add(ctx context.Context, batchID, configJSON string) (*Item, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("queue add: batch id required")
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO run_queue (batch_id, status, config_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		batchID, string(StatusPending), configJSON, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("queue add: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("queue add: last insert id: %w", err)
	}
	return &Item{
		ID:         id,
		BatchID:    batchID,
		Status:     StatusPending,
		ConfigJSON: configJSON,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NextPending claims the oldest pending item and marks it running.
// It returns nil when the queue has no pending work.
func (s *Store) NextPending(ctx context.Context) (*Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("queue next: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, batch_id, status, config_json, error_message, created_at, updated_at
		 FROM run_queue WHERE status = ? ORDER BY id LIMIT 1`,
		string(StatusPending),
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue next: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE run_queue SET status = ?, updated_at = ? WHERE id = ?",
		string(StatusRunning), now.Format(time.RFC3339Nano), item.ID,
	); err != nil {
		return nil, fmt.Errorf("queue next: claim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("queue next: commit: %w", err)
	}
	item.Status = StatusRunning
	item.UpdatedAt = now
	return item, nil
}

// SetStatus moves an item to a new status, recording an error message
// for failures.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status, message string) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("queue set status: unknown status %q", status)
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE run_queue SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		string(status), message, now.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("queue set status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("queue set status: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("queue set status: %w: id %d", ErrNotFound, id)
	}
	return nil
}

// Get returns the item with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_id, status, config_json, error_message, created_at, updated_at
		 FROM run_queue WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("queue get: %w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("queue get: %w", err)
	}
	return item, nil
}

// GetByBatchID returns the item carrying the given batch id.
func (s *Store) GetByBatchID(ctx context.Context, batchID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_id, status, config_json, error_message, created_at, updated_at
		 FROM run_queue WHERE batch_id = ?`, batchID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("queue get: %w: batch %s", ErrNotFound, batchID)
		}
		return nil, fmt.Errorf("queue get: %w", err)
	}
	return item, nil
}

// List returns items filtered by status, or every item when no
// statuses are given. Results are oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT id, batch_id, status, config_json, error_message, created_at, updated_at
		 FROM run_queue`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue list: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("queue list: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue list: %w", err)
	}
	return items, nil
}

// Remove deletes an item. Running items must be cancelled first.
func (s *Store) Remove(ctx context.Context, id int64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if item.Status == StatusRunning {
		return fmt.Errorf("queue remove: item %d is running", id)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM run_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("queue remove: %w", err)
	}
	return nil
}

// Clear deletes terminal items, or every non-running item when all is
// set.
func (s *Store) Clear(ctx context.Context, all bool) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if all {
		result, err = s.db.ExecContext(ctx,
			"DELETE FROM run_queue WHERE status != ?", string(StatusRunning))
	} else {
		result, err = s.db.ExecContext(ctx,
			"DELETE FROM run_queue WHERE status IN (?, ?, ?)",
			string(StatusCompleted), string(StatusFailed), string(StatusCancelled))
	}
	if err != nil {
		return 0, fmt.Errorf("queue clear: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("queue clear: rows affected: %w", err)
	}
	return affected, nil
}

// RecoverStuck returns runs left in running state by a crashed process
// to pending so they execute again.
func (s *Store) RecoverStuck(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE run_queue SET status = ?, updated_at = ? WHERE status = ?",
		string(StatusPending), now.Format(time.RFC3339Nano), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("queue recover: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("queue recover: rows affected: %w", err)
	}
	return affected, nil
}

// Summarize counts items per status.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var summary Summary
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM run_queue GROUP BY status")
	if err != nil {
		return summary, fmt.Errorf("queue summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return summary, fmt.Errorf("queue summary: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusRunning:
			summary.Running = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		case StatusCancelled:
			summary.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("queue summary: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item      Item
		status    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&item.ID, &item.BatchID, &status, &item.ConfigJSON, &item.ErrorMessage, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Status = Status(status)
	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		item.UpdatedAt = parsed
	}
	return &item, nil
}
