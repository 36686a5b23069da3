package engine_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"easel/internal/batch"
	"easel/internal/checkpoint"
	"easel/internal/engine"
	"easel/internal/events"
	"easel/internal/lifecycle"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/outputs"
	"easel/internal/quality"
	"easel/internal/synthesis"
)

// fakePipeline scripts generation results per invocation and counts
// release calls.
type fakePipeline struct {
	mu       sync.Mutex
	invokes  int
	releases int
	script   func(call int) (synthesis.Result, error)
	onInvoke func(call int)
}

func (p *fakePipeline) Invoke(ctx context.Context, req synthesis.Request) (synthesis.Result, error) {
	p.mu.Lock()
	call := p.invokes
	p.invokes++
	p.mu.Unlock()
	if p.onInvoke != nil {
		p.onInvoke(call)
	}
	if p.script != nil {
		return p.script(call)
	}
	return goodResult(), nil
}

func (p *fakePipeline) Release(ctx context.Context) error {
	p.mu.Lock()
	p.releases++
	p.mu.Unlock()
	return nil
}

func (p *fakePipeline) counts() (invokes, releases int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invokes, p.releases
}

func goodResult() synthesis.Result {
	return synthesis.Result{
		Image: []byte("png"),
		Stats: quality.SampleStats{Mean: 0.5, StdDev: 0.2},
	}
}

type seqScorer struct {
	mu     sync.Mutex
	scores []float64
	next   int
}

func (s *seqScorer) Score(ctx context.Context, image []byte, prompt string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := s.scores[s.next%len(s.scores)]
	s.next++
	return score, nil
}

type countingPreparer struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPreparer) Prepare(ctx context.Context, image []byte) ([]byte, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return append([]byte("cond:"), image...), nil
}

type harness struct {
	engine    *engine.Engine
	pipeline  *fakePipeline
	machine   *lifecycle.Machine
	tracker   *batch.Tracker
	bus       *events.Bus
	collector *metrics.Collector
	store     *checkpoint.Store
	outputDir string
}

type harnessOption func(*engine.Deps)

func withScorer(scorer quality.Scorer) harnessOption {
	return func(deps *engine.Deps) {
		deps.Gate = quality.NewGate(quality.Bounds{MinMean: 0.05, MaxMean: 0.95, MinStdDev: 0.02}, scorer, logging.NewNop())
	}
}

func withPreparer(p synthesis.Preparer) harnessOption {
	return func(deps *engine.Deps) {
		deps.Preparer = p
	}
}

func newHarness(t *testing.T, pipeline *fakePipeline, opts ...harnessOption) *harness {
	t.Helper()
	dir := t.TempDir()
	store := checkpoint.NewStore(filepath.Join(dir, "checkpoint.json"), 8, logging.NewNop())
	t.Cleanup(store.Close)

	h := &harness{
		pipeline:  pipeline,
		machine:   lifecycle.NewMachine(),
		tracker:   batch.NewTracker(),
		bus:       events.NewBus(100, logging.NewNop()),
		collector: metrics.NewCollector(filepath.Join(dir, "metrics"), logging.NewNop()),
		store:     store,
		outputDir: filepath.Join(dir, "outputs"),
	}
	deps := engine.Deps{
		Pipeline:    pipeline,
		Gate:        quality.NewGate(quality.Bounds{MinMean: 0.05, MaxMean: 0.95, MinStdDev: 0.02}, nil, logging.NewNop()),
		Saver:       outputs.NewSaver(h.outputDir),
		Machine:     h.machine,
		Tracker:     h.tracker,
		Checkpoints: store,
		Bus:         h.bus,
		Collector:   h.collector,
		Device:      "test-device",
		Logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	eng, err := engine.New(deps)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.engine = eng
	return h
}

func baseConfig() engine.RunConfig {
	return engine.RunConfig{
		Prompt:              "a quiet harbor",
		BatchSize:           1,
		MaxRetries:          0,
		BestOfN:             1,
		SemanticThreshold:   0.25,
		EnableQualityFilter: true,
	}
}
