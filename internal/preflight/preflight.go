package preflight

import (
	"context"

	"easel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("Metrics directory", cfg.Paths.MetricsDir))
	results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, cfg.Workflow.MinFreeSpaceGiB))

	results = append(results, CheckEndpoint(ctx, "Synthesis engine", cfg.Synthesis.Endpoint))
	if cfg.Scorer.Enabled {
		results = append(results, CheckEndpoint(ctx, "Semantic scorer", cfg.Scorer.Endpoint))
	}

	if cfg.Paths.RemoteRoot != "" {
		results = append(results, CheckDirectoryAccess("Remote sync root", cfg.Paths.RemoteRoot))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
