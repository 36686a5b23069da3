package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"easel/internal/logging"
	"easel/internal/metrics"
)

func sampleMetric(id string, started time.Time) metrics.BatchMetric {
	return metrics.BatchMetric{
		BatchID:    id,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Mode:       "batch",
		Total:      10,
		Accepted:   8,
		Rejected:   2,
		Retries:    3,
	}
}

func TestSaveAndLoadAll(t *testing.T) {
	dir := t.TempDir()
	collector := metrics.NewCollector(dir, logging.NewNop())

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := collector.Save(sampleMetric("older", base)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := collector.Save(sampleMetric("newer", base.Add(time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}

	records, err := collector.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].BatchID != "newer" {
		t.Fatalf("expected newest first, got %s", records[0].BatchID)
	}
	if records[1].Accepted != 8 || records[1].Rejected != 2 {
		t.Fatalf("unexpected counters %+v", records[1])
	}
}

func TestSaveRequiresBatchID(t *testing.T) {
	collector := metrics.NewCollector(t.TempDir(), logging.NewNop())
	if err := collector.Save(metrics.BatchMetric{}); err == nil {
		t.Fatal("expected error for empty batch id")
	}
}

func TestLoadAllSkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	collector := metrics.NewCollector(dir, logging.NewNop())

	if err := collector.Save(sampleMetric("good", time.Now().UTC())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "batch_bad.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write corrupt record: %v", err)
	}

	records, err := collector.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 || records[0].BatchID != "good" {
		t.Fatalf("expected only the good record, got %+v", records)
	}
}

func TestLoadAllMissingDirectory(t *testing.T) {
	collector := metrics.NewCollector(filepath.Join(t.TempDir(), "absent"), logging.NewNop())
	records, err := collector.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records, got %+v", records)
	}
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	records := []metrics.BatchMetric{
		sampleMetric("a", base),
		sampleMetric("b", base.Add(time.Hour)),
	}

	summary := metrics.Summarize(records)
	if summary.Batches != 2 || summary.Total != 20 || summary.Accepted != 16 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.AcceptRate != 0.8 {
		t.Fatalf("expected accept rate 0.8, got %.2f", summary.AcceptRate)
	}
	if summary.AvgDuration != 90*time.Second {
		t.Fatalf("expected avg duration 90s, got %s", summary.AvgDuration)
	}

	empty := metrics.Summarize(nil)
	if empty.Batches != 0 || empty.AcceptRate != 0 {
		t.Fatalf("unexpected empty summary %+v", empty)
	}
}
