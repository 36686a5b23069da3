package engine

import (
	"context"
	"errors"
	"strconv"

	"easel/internal/logging"
	"easel/internal/outputs"
	"easel/internal/synthesis"
)

// workItem is one slot in a run. Folder mode fills inputName and
// inputImage from the source file.
type workItem struct {
	index        int
	inputName    string
	inputImage   []byte
	conditioning []byte
}

// itemOutcome is the result of driving one item to acceptance,
// rejection, or interruption.
type itemOutcome struct {
	accepted    bool
	interrupted bool
	retries     int
	image       []byte
	metadata    map[string]string
	score       float64
	scored      bool
	reason      string
	saved       *outputs.SavedFile
}

// runItem generates one image with up to maxRetries+1 attempts. Every
// attempt releases pipeline resources before the next one starts. When
// persist is false the accepted image is returned in the outcome
// instead of being written, which is how best-of-N collects
// candidates.
func (e *Engine) runItem(ctx context.Context, cfg RunConfig, item workItem, persist bool) itemOutcome {
	var outcome itemOutcome
	var lastRejected []byte
	attempts := cfg.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := e.invoke(ctx, cfg, item)
		if err != nil {
			if errors.Is(err, synthesis.ErrInterrupted) {
				outcome.interrupted = true
				return outcome
			}
			outcome.reason = err.Error()
			if !synthesis.Retryable(err) {
				e.logger.Error("generation failed",
					logging.Int(logging.FieldItemIndex, item.index),
					logging.Error(err))
				return outcome
			}
			e.logger.Warn("generation attempt failed",
				logging.Int(logging.FieldItemIndex, item.index),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Error(err))
			if attempt < attempts-1 {
				outcome.retries++
				e.tracker.RecordRetry()
			}
			continue
		}

		if cfg.EnableQualityFilter && e.gate != nil {
			verdict := e.gate.Evaluate(ctx, result.Image, cfg.Prompt, result.Stats, cfg.SemanticThreshold)
			if !verdict.Accepted {
				lastRejected = result.Image
				outcome.reason = verdict.Rejection.String()
				e.logger.Debug("image rejected",
					logging.Int(logging.FieldItemIndex, item.index),
					logging.Int(logging.FieldAttempt, attempt),
					logging.String("reason", outcome.reason))
				if attempt < attempts-1 {
					outcome.retries++
					e.tracker.RecordRetry()
				}
				continue
			}
			outcome.score = verdict.Score
			outcome.scored = verdict.Scored
		}

		outcome.accepted = true
		outcome.image = result.Image
		outcome.metadata = result.Metadata
		outcome.reason = ""
		if persist {
			e.persist(ctx, cfg, item, &outcome, attempt, false)
		}
		return outcome
	}

	if persist && cfg.SaveRejected && lastRejected != nil {
		rejected := outcome
		rejected.image = lastRejected
		e.persist(ctx, cfg, item, &rejected, attempts-1, true)
	}
	return outcome
}

func (e *Engine) invoke(ctx context.Context, cfg RunConfig, item workItem) (synthesis.Result, error) {
	result, err := e.pipeline.Invoke(ctx, synthesis.Request{
		Prompt:         cfg.Prompt,
		NegativePrompt: cfg.NegativePrompt,
		Seed:           cfg.Seed,
		Steps:          cfg.Steps,
		Width:          cfg.Width,
		Height:         cfg.Height,
		InputImage:     item.inputImage,
		Conditioning:   item.conditioning,
		Params:         cfg.Params,
	})
	if releaseErr := e.pipeline.Release(ctx); releaseErr != nil {
		e.logger.Warn("pipeline release failed", logging.Error(releaseErr))
	}
	return result, err
}

// persist writes the outcome's image and optionally mirrors it. Save
// and sync problems are logged, never escalated; losing one artifact
// must not end the run.
func (e *Engine) persist(ctx context.Context, cfg RunConfig, item workItem, outcome *itemOutcome, attempt int, rejected bool) {
	metadata := make(map[string]string, len(outcome.metadata)+6)
	for k, v := range outcome.metadata {
		metadata[k] = v
	}
	metadata["batch_id"] = cfg.BatchID
	metadata["mode"] = string(cfg.mode())
	if cfg.Prompt != "" {
		metadata["prompt"] = cfg.Prompt
	}
	if cfg.PresetName != "" {
		metadata["preset"] = cfg.PresetName
	}
	if item.inputName != "" {
		metadata["input"] = item.inputName
	}
	if outcome.scored {
		metadata["score"] = strconv.FormatFloat(outcome.score, 'f', 4, 64)
	}

	saved, err := e.saver.Save(outputs.Artifact{
		BatchID:   cfg.BatchID,
		ItemIndex: item.index,
		Attempt:   attempt,
		Image:     outcome.image,
		Metadata:  metadata,
		Rejected:  rejected,
		Score:     outcome.score,
		Scored:    outcome.scored,
	})
	if err != nil {
		e.logger.Error("artifact save failed",
			logging.Int(logging.FieldItemIndex, item.index),
			logging.Error(err))
		return
	}
	outcome.saved = &saved

	if !rejected && cfg.EnableRemoteSync && e.syncer != nil {
		if err := e.syncer.Sync(ctx, saved.ImagePath, cfg.BatchID, metadata); err != nil {
			e.logger.Warn("remote sync failed",
				logging.Int(logging.FieldItemIndex, item.index),
				logging.Error(err))
		}
	}
}
