package engine

import (
	"context"

	"easel/internal/logging"
)

// runBestOf generates N candidates for one item and keeps the highest
// scoring accepted one. Replacement requires a strictly greater score,
// so ties keep the earliest candidate. The winner is written exactly
// once, after all candidates finish.
func (e *Engine) runBestOf(ctx context.Context, cfg RunConfig, item workItem) itemOutcome {
	var aggregate itemOutcome
	var best *itemOutcome

	for candidate := 0; candidate < cfg.BestOfN; candidate++ {
		outcome := e.runItem(ctx, cfg, item, false)
		aggregate.retries += outcome.retries
		if outcome.interrupted {
			aggregate.interrupted = true
			return aggregate
		}
		if !outcome.accepted {
			aggregate.reason = outcome.reason
			continue
		}
		if best == nil || outcome.score > best.score {
			kept := outcome
			best = &kept
		}
		e.logger.Debug("candidate evaluated",
			logging.Int(logging.FieldItemIndex, item.index),
			logging.Int("candidate", candidate),
			logging.Float64("score", outcome.score))
	}

	if best == nil {
		return aggregate
	}
	best.retries = aggregate.retries
	e.persist(ctx, cfg, item, best, 0, false)
	return *best
}
