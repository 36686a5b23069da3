package quality

import (
	"context"
	"fmt"
	"log/slog"

	"easel/internal/logging"
)

// SampleStats summarizes the pixel distribution of a generated image.
// Values are normalized to [0, 1].
type SampleStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Bounds holds the technical filter limits. Images whose mean falls
// outside [MinMean, MaxMean] or whose standard deviation falls below
// MinStdDev are rejected before the scorer is consulted.
type Bounds struct {
	MinMean   float64
	MaxMean   float64
	MinStdDev float64
}

// Scorer rates how well an image matches its prompt. Implementations
// return a similarity score; higher is better.
type Scorer interface {
	Score(ctx context.Context, image []byte, prompt string) (float64, error)
}

// Stage identifies which evaluation stage produced a rejection.
type Stage string

const (
	StageTechnical Stage = "technical"
	StageSemantic  Stage = "semantic"
)

// Rejection describes why an image was not kept. It is an outcome, not
// an error: the caller decides whether to retry.
type Rejection struct {
	Stage  Stage
	Reason string
	Score  float64
}

func (r *Rejection) String() string {
	if r.Stage == StageSemantic {
		return fmt.Sprintf("%s: %s (score %.4f)", r.Stage, r.Reason, r.Score)
	}
	return fmt.Sprintf("%s: %s", r.Stage, r.Reason)
}

// Result is the outcome of evaluating one image. Score is only
// meaningful when Scored is true.
type Result struct {
	Accepted  bool
	Score     float64
	Scored    bool
	Rejection *Rejection
}

// Gate applies the two-stage evaluation. A nil scorer disables the
// semantic stage entirely.
type Gate struct {
	bounds Bounds
	scorer Scorer
	logger *slog.Logger
}

func NewGate(bounds Bounds, scorer Scorer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{bounds: bounds, scorer: scorer, logger: logger}
}

// CheckTechnical applies only the pixel statistics filter. It returns
// nil when the image passes.
func (g *Gate) CheckTechnical(stats SampleStats) *Rejection {
	switch {
	case stats.Mean < g.bounds.MinMean:
		return &Rejection{Stage: StageTechnical, Reason: fmt.Sprintf("mean %.4f below %.4f, image nearly black", stats.Mean, g.bounds.MinMean)}
	case stats.Mean > g.bounds.MaxMean:
		return &Rejection{Stage: StageTechnical, Reason: fmt.Sprintf("mean %.4f above %.4f, image nearly white", stats.Mean, g.bounds.MaxMean)}
	case stats.StdDev < g.bounds.MinStdDev:
		return &Rejection{Stage: StageTechnical, Reason: fmt.Sprintf("std dev %.4f below %.4f, image too flat", stats.StdDev, g.bounds.MinStdDev)}
	}
	return nil
}

// Evaluate runs both stages against one image. The threshold applies to
// the semantic stage; scores strictly below it reject, an equal score
// passes. Scorer errors are logged and treated as a pass without a
// score.
func (g *Gate) Evaluate(ctx context.Context, image []byte, prompt string, stats SampleStats, threshold float64) Result {
	if rejection := g.CheckTechnical(stats); rejection != nil {
		return Result{Rejection: rejection}
	}
	if g.scorer == nil {
		return Result{Accepted: true}
	}

	score, err := g.scorer.Score(ctx, image, prompt)
	if err != nil {
		g.logger.Warn("scorer unavailable, accepting image unscored",
			logging.Error(err))
		return Result{Accepted: true}
	}
	if score < threshold {
		return Result{
			Score:  score,
			Scored: true,
			Rejection: &Rejection{
				Stage:  StageSemantic,
				Reason: fmt.Sprintf("score below threshold %.4f", threshold),
				Score:  score,
			},
		}
	}
	return Result{Accepted: true, Score: score, Scored: true}
}
