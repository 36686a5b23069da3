package quality_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"easel/internal/logging"
	"easel/internal/quality"
)

func defaultBounds() quality.Bounds {
	return quality.Bounds{MinMean: 0.05, MaxMean: 0.95, MinStdDev: 0.02}
}

type fixedScorer struct {
	score float64
	err   error
	calls int
}

func (s *fixedScorer) Score(ctx context.Context, image []byte, prompt string) (float64, error) {
	s.calls++
	return s.score, s.err
}

func TestTechnicalFilterRejectsDarkImage(t *testing.T) {
	gate := quality.NewGate(defaultBounds(), nil, logging.NewNop())

	rejection := gate.CheckTechnical(quality.SampleStats{Mean: 0.02, StdDev: 0.2})
	if rejection == nil {
		t.Fatal("expected rejection for mean 0.02")
	}
	if rejection.Stage != quality.StageTechnical {
		t.Fatalf("expected technical stage, got %s", rejection.Stage)
	}
	if !strings.Contains(rejection.Reason, "black") {
		t.Fatalf("unexpected reason: %s", rejection.Reason)
	}
}

func TestTechnicalFilterRejectsBrightAndFlatImages(t *testing.T) {
	gate := quality.NewGate(defaultBounds(), nil, logging.NewNop())

	if rejection := gate.CheckTechnical(quality.SampleStats{Mean: 0.97, StdDev: 0.2}); rejection == nil {
		t.Fatal("expected rejection for mean 0.97")
	}
	if rejection := gate.CheckTechnical(quality.SampleStats{Mean: 0.5, StdDev: 0.01}); rejection == nil {
		t.Fatal("expected rejection for std dev 0.01")
	}
}

func TestTechnicalFilterAcceptsNormalImage(t *testing.T) {
	gate := quality.NewGate(defaultBounds(), nil, logging.NewNop())

	if rejection := gate.CheckTechnical(quality.SampleStats{Mean: 0.5, StdDev: 0.2}); rejection != nil {
		t.Fatalf("unexpected rejection: %s", rejection)
	}
}

func TestEvaluateWithoutScorerAccepts(t *testing.T) {
	gate := quality.NewGate(defaultBounds(), nil, logging.NewNop())

	result := gate.Evaluate(context.Background(), []byte("img"), "a prompt", quality.SampleStats{Mean: 0.5, StdDev: 0.2}, 0.25)
	if !result.Accepted {
		t.Fatal("expected acceptance without a scorer")
	}
	if result.Scored {
		t.Fatal("expected no score without a scorer")
	}
}

func TestEvaluateRejectsScoreBelowThreshold(t *testing.T) {
	scorer := &fixedScorer{score: 0.19}
	gate := quality.NewGate(defaultBounds(), scorer, logging.NewNop())

	result := gate.Evaluate(context.Background(), []byte("img"), "a prompt", quality.SampleStats{Mean: 0.5, StdDev: 0.2}, 0.25)
	if result.Accepted {
		t.Fatal("expected rejection for score below threshold")
	}
	if result.Rejection == nil || result.Rejection.Stage != quality.StageSemantic {
		t.Fatalf("expected semantic rejection, got %+v", result.Rejection)
	}
	if result.Rejection.Score != 0.19 {
		t.Fatalf("expected score 0.19 on the rejection, got %.2f", result.Rejection.Score)
	}
}

func TestEvaluateAcceptsScoreEqualToThreshold(t *testing.T) {
	scorer := &fixedScorer{score: 0.25}
	gate := quality.NewGate(defaultBounds(), scorer, logging.NewNop())

	result := gate.Evaluate(context.Background(), []byte("img"), "a prompt", quality.SampleStats{Mean: 0.5, StdDev: 0.2}, 0.25)
	if !result.Accepted {
		t.Fatal("expected acceptance for score equal to threshold")
	}
	if !result.Scored || result.Score != 0.25 {
		t.Fatalf("expected score 0.25, got %+v", result)
	}
}

func TestEvaluateScorerFailureAcceptsUnscored(t *testing.T) {
	scorer := &fixedScorer{err: errors.New("connection refused")}
	gate := quality.NewGate(defaultBounds(), scorer, logging.NewNop())

	result := gate.Evaluate(context.Background(), []byte("img"), "a prompt", quality.SampleStats{Mean: 0.5, StdDev: 0.2}, 0.25)
	if !result.Accepted {
		t.Fatal("expected acceptance when scorer fails")
	}
	if result.Scored {
		t.Fatal("expected no score when scorer fails")
	}
}

func TestEvaluateSkipsScorerWhenTechnicalRejects(t *testing.T) {
	scorer := &fixedScorer{score: 0.9}
	gate := quality.NewGate(defaultBounds(), scorer, logging.NewNop())

	result := gate.Evaluate(context.Background(), []byte("img"), "a prompt", quality.SampleStats{Mean: 0.01, StdDev: 0.2}, 0.25)
	if result.Accepted {
		t.Fatal("expected technical rejection")
	}
	if scorer.calls != 0 {
		t.Fatalf("scorer should not run after technical rejection, got %d calls", scorer.calls)
	}
}
