package testsupport

import (
	"path/filepath"
	"testing"

	"easel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.OutputDir = filepath.Join(base, "outputs")
	cfg.Paths.MetricsDir = filepath.Join(base, "metrics")
	cfg.Paths.PresetDir = filepath.Join(base, "presets")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "easeld.sock")
	cfg.Synthesis.Endpoint = "http://127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSynthesisEndpoint points the config at a live synthesis server.
func WithSynthesisEndpoint(endpoint string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Synthesis.Endpoint = endpoint
	}
}

// WithScorer enables the semantic scorer against the given endpoint.
func WithScorer(endpoint string, threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scorer.Enabled = true
		cfg.Scorer.Endpoint = endpoint
		cfg.Scorer.Threshold = threshold
	}
}

// WithRemoteRoot enables remote sync into the given directory.
func WithRemoteRoot(dir string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.RemoteRoot = dir
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
