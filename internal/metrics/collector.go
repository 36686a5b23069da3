package metrics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"easel/internal/logging"
)

// BatchMetric summarizes one finished batch run.
type BatchMetric struct {
	BatchID     string    `json:"batch_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Mode        string    `json:"mode"`
	Preset      string    `json:"preset,omitempty"`
	Total       int       `json:"total"`
	Accepted    int       `json:"accepted"`
	Rejected    int       `json:"rejected"`
	Retries     int       `json:"retries"`
	AvgItemTime float64   `json:"avg_item_time_seconds"`
	ScoreAvg    float64   `json:"score_avg,omitempty"`
	ScoreMin    float64   `json:"score_min,omitempty"`
	ScoreMax    float64   `json:"score_max,omitempty"`
	Device      string    `json:"device,omitempty"`
}

// Duration returns the wall time of the batch.
func (m BatchMetric) Duration() time.Duration {
	if m.FinishedAt.Before(m.StartedAt) {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// AcceptRate returns accepted over total in [0, 1].
func (m BatchMetric) AcceptRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Accepted) / float64(m.Total)
}

// Collector persists batch metrics as individual JSON files.
type Collector struct {
	dir    string
	logger *slog.Logger
}

func NewCollector(dir string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Collector{dir: dir, logger: logger}
}

// Save writes one metric record. The file name carries the batch id so
// records never clobber each other.
func (c *Collector) Save(metric BatchMetric) error {
	if strings.TrimSpace(metric.BatchID) == "" {
		return fmt.Errorf("metrics save: batch id required")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("metrics save: create directory: %w", err)
	}
	encoded, err := json.MarshalIndent(metric, "", "  ")
	if err != nil {
		return fmt.Errorf("metrics save: encode: %w", err)
	}
	path := filepath.Join(c.dir, fmt.Sprintf("batch_%s.json", metric.BatchID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("metrics save: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("metrics save: rename: %w", err)
	}
	return nil
}

// LoadAll returns every readable metric record, newest first. Corrupt
// files are logged and skipped.
func (c *Collector) LoadAll() ([]BatchMetric, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("metrics load: read directory: %w", err)
	}
	var records []BatchMetric
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "batch_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(c.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("skipping unreadable metric record",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		var metric BatchMetric
		if err := json.Unmarshal(data, &metric); err != nil || metric.BatchID == "" {
			c.logger.Warn("skipping corrupt metric record",
				logging.String("path", path))
			continue
		}
		records = append(records, metric)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// Summary aggregates a set of records for reporting.
type Summary struct {
	Batches     int
	Total       int
	Accepted    int
	Rejected    int
	Retries     int
	AcceptRate  float64
	AvgDuration time.Duration
}

// Summarize folds records into totals. An empty input yields a zero
// summary.
func Summarize(records []BatchMetric) Summary {
	var s Summary
	var elapsed time.Duration
	for _, m := range records {
		s.Batches++
		s.Total += m.Total
		s.Accepted += m.Accepted
		s.Rejected += m.Rejected
		s.Retries += m.Retries
		elapsed += m.Duration()
	}
	if s.Total > 0 {
		s.AcceptRate = float64(s.Accepted) / float64(s.Total)
	}
	if s.Batches > 0 {
		s.AvgDuration = elapsed / time.Duration(s.Batches)
	}
	return s
}
