package engine_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"easel/internal/quality"
	"easel/internal/synthesis"
)

func TestRetryExhaustionUsesExactlyMaxRetriesPlusOneAttempts(t *testing.T) {
	pipeline := &fakePipeline{
		script: func(call int) (synthesis.Result, error) {
			return synthesis.Result{}, synthesis.Wrap(synthesis.ErrExternalTool, "generate", "always down", nil)
		},
	}
	h := newHarness(t, pipeline)

	cfg := baseConfig()
	cfg.MaxRetries = 2

	report, err := h.engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	invokes, releases := pipeline.counts()
	if invokes != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", invokes)
	}
	if releases != 3 {
		t.Fatalf("expected release after every attempt, got %d", releases)
	}
	if report.Accepted != 0 || report.Rejected != 1 {
		t.Fatalf("expected one rejected item, got %+v", report)
	}
	if report.Retries != 2 {
		t.Fatalf("expected 2 recorded retries, got %d", report.Retries)
	}
}

func TestGateRejectionTriggersRetry(t *testing.T) {
	pipeline := &fakePipeline{
		script: func(call int) (synthesis.Result, error) {
			if call == 0 {
				// Nearly black image, rejected by the technical filter.
				return synthesis.Result{
					Image: []byte("dark"),
					Stats: quality.SampleStats{Mean: 0.01, StdDev: 0.2},
				}, nil
			}
			return goodResult(), nil
		},
	}
	h := newHarness(t, pipeline)

	cfg := baseConfig()
	cfg.MaxRetries = 1

	report, err := h.engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Accepted != 1 || report.Retries != 1 {
		t.Fatalf("expected acceptance after one retry, got %+v", report)
	}
}

func TestDisabledFilterAcceptsEverything(t *testing.T) {
	pipeline := &fakePipeline{
		script: func(call int) (synthesis.Result, error) {
			return synthesis.Result{
				Image: []byte("dark"),
				Stats: quality.SampleStats{Mean: 0.01, StdDev: 0.001},
			}, nil
		},
	}
	h := newHarness(t, pipeline)

	cfg := baseConfig()
	cfg.EnableQualityFilter = false

	report, err := h.engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Accepted != 1 {
		t.Fatalf("expected acceptance with filter disabled, got %+v", report)
	}
	if invokes, _ := pipeline.counts(); invokes != 1 {
		t.Fatalf("expected single attempt, got %d", invokes)
	}
}

func TestSaveRejectedKeepsLastAttempt(t *testing.T) {
	pipeline := &fakePipeline{
		script: func(call int) (synthesis.Result, error) {
			return synthesis.Result{
				Image: []byte("dark"),
				Stats: quality.SampleStats{Mean: 0.01, StdDev: 0.2},
			}, nil
		},
	}
	h := newHarness(t, pipeline)

	cfg := baseConfig()
	cfg.MaxRetries = 1
	cfg.SaveRejected = true

	report, err := h.engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Rejected != 1 {
		t.Fatalf("expected one rejected item, got %+v", report)
	}

	rejectedDir := filepath.Join(h.outputDir, report.BatchID, "rejected")
	entries, err := os.ReadDir(rejectedDir)
	if err != nil {
		t.Fatalf("read rejected dir: %v", err)
	}
	images := 0
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".png" {
			images++
		}
	}
	if images != 1 {
		t.Fatalf("expected only the last rejected attempt saved, got %d images", images)
	}
}

func TestBestOfNKeepsHighestScoreAndSavesOnce(t *testing.T) {
	pipeline := &fakePipeline{}
	scorer := &seqScorer{scores: []float64{0.3, 0.9, 0.6}}
	h := newHarness(t, pipeline, withScorer(scorer))

	cfg := baseConfig()
	cfg.BestOfN = 3

	report, err := h.engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Accepted != 1 {
		t.Fatalf("expected one accepted item, got %+v", report)
	}
	if invokes, _ := pipeline.counts(); invokes != 3 {
		t.Fatalf("expected 3 candidates, got %d invokes", invokes)
	}

	batchDir := filepath.Join(h.outputDir, report.BatchID)
	entries, err := os.ReadDir(batchDir)
	if err != nil {
		t.Fatalf("read outputs: %v", err)
	}
	var sidecars []string
	images := 0
	for _, entry := range entries {
		switch filepath.Ext(entry.Name()) {
		case ".png":
			images++
		case ".json":
			sidecars = append(sidecars, filepath.Join(batchDir, entry.Name()))
		}
	}
	if images != 1 || len(sidecars) != 1 {
		t.Fatalf("expected exactly one saved winner, got %d images and %d sidecars", images, len(sidecars))
	}

	data, err := os.ReadFile(sidecars[0])
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var sidecar struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if sidecar.Score == nil || *sidecar.Score != 0.9 {
		t.Fatalf("expected winner score 0.9, got %v", sidecar.Score)
	}
}

func TestBestOfNTiesKeepEarliestCandidate(t *testing.T) {
	pipeline := &fakePipeline{
		script: func(call int) (synthesis.Result, error) {
			result := goodResult()
			result.Metadata = map[string]string{"candidate": string(rune('a' + call))}
			return result, nil
		},
	}
	scorer := &seqScorer{scores: []float64{0.5, 0.5, 0.5}}
	h := newHarness(t, pipeline, withScorer(scorer))

	cfg := baseConfig()
	cfg.BestOfN = 3

	report, err := h.engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Accepted != 1 {
		t.Fatalf("expected one accepted item, got %+v", report)
	}

	data, err := os.ReadFile(filepath.Join(h.outputDir, report.BatchID, "item_0000.json"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var sidecar struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if sidecar.Metadata["candidate"] != "a" {
		t.Fatalf("expected earliest tied candidate kept, got %q", sidecar.Metadata["candidate"])
	}
}

func TestBestOfNAllRejectedSavesNothing(t *testing.T) {
	pipeline := &fakePipeline{
		script: func(call int) (synthesis.Result, error) {
			return synthesis.Result{
				Image: []byte("dark"),
				Stats: quality.SampleStats{Mean: 0.01, StdDev: 0.2},
			}, nil
		},
	}
	h := newHarness(t, pipeline)

	cfg := baseConfig()
	cfg.BestOfN = 2

	report, err := h.engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Accepted != 0 || report.Rejected != 1 {
		t.Fatalf("expected rejected item, got %+v", report)
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, report.BatchID)); !os.IsNotExist(err) {
		t.Fatalf("expected no output directory, stat err %v", err)
	}
}
