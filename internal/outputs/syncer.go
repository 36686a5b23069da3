package outputs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"easel/internal/logging"
)

const syncAttempts = 4

// Syncer mirrors saved artifacts to a remote root, typically a mounted
// network drive. Copies are retried with exponential backoff because
// mounts drop and recover on their own.
type Syncer struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

func NewSyncer(root string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{root: root, logger: logger, now: time.Now}
}

type manifestEntry struct {
	File     string            `json:"file"`
	BatchID  string            `json:"batch_id"`
	SyncedAt time.Time         `json:"synced_at"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Sync copies one saved file into <root>/<date>/<batch id>/ and appends
// an entry to that directory's manifest.
func (s *Syncer) Sync(ctx context.Context, localPath, batchID string, metadata map[string]string) error {
	if s.root == "" {
		return fmt.Errorf("outputs sync: remote root not configured")
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("outputs sync: read source: %w", err)
	}

	dir := filepath.Join(s.root, s.now().UTC().Format("2006-01-02"), batchID)
	destination := filepath.Join(dir, filepath.Base(localPath))

	operation := func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(destination, data, 0o644)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), syncAttempts), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("outputs sync: copy %s: %w", filepath.Base(localPath), err)
	}

	if err := s.appendManifest(dir, manifestEntry{
		File:     filepath.Base(localPath),
		BatchID:  batchID,
		SyncedAt: s.now().UTC(),
		Metadata: metadata,
	}); err != nil {
		// The copy itself succeeded; a manifest problem is not worth
		// failing the item over.
		s.logger.Warn("manifest update failed",
			logging.String(logging.FieldBatchID, batchID),
			logging.Error(err))
	}
	return nil
}

func (s *Syncer) appendManifest(dir string, entry manifestEntry) error {
	path := filepath.Join(dir, "metadata.json")
	var entries []manifestEntry
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			entries = nil
		}
	}
	entries = append(entries, entry)
	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
