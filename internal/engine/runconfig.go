package engine

import (
	"fmt"
	"strings"

	"easel/internal/batch"
	"easel/internal/preset"
)

const (
	maxBatchSize = 50
	minBatchSize = 1
)

// RunConfig fixes every knob of one batch run. It is validated and
// preset overrides are applied once at run start; nothing mutates it
// afterwards.
type RunConfig struct {
	BatchID        string
	Prompt         string
	NegativePrompt string
	Seed           int64
	Steps          int
	Width          int
	Height         int
	Params         map[string]string

	BatchSize         int
	MaxRetries        int
	BestOfN           int
	SemanticThreshold float64

	EnableQualityFilter bool
	SaveRejected        bool
	EnableRemoteSync    bool

	InputFolder string
	PresetName  string
}

// Validate checks ranges before a run starts.
func (c *RunConfig) Validate() error {
	if strings.TrimSpace(c.Prompt) == "" && strings.TrimSpace(c.InputFolder) == "" {
		return fmt.Errorf("run config: prompt or input folder required")
	}
	if c.BatchSize < minBatchSize || c.BatchSize > maxBatchSize {
		return fmt.Errorf("run config: batch size %d out of range %d..%d", c.BatchSize, minBatchSize, maxBatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("run config: max retries must not be negative")
	}
	if c.BestOfN < 1 {
		return fmt.Errorf("run config: best of n must be at least 1")
	}
	if c.SemanticThreshold < -1 || c.SemanticThreshold > 1 {
		return fmt.Errorf("run config: semantic threshold must be between -1 and 1")
	}
	return nil
}

func (c *RunConfig) mode() batch.Mode {
	switch {
	case strings.TrimSpace(c.InputFolder) != "":
		return batch.ModeFolder
	case c.BatchSize == 1:
		return batch.ModeSingle
	default:
		return batch.ModeBatch
	}
}

// applyPreset folds preset overrides into a copy of the config.
func applyPreset(cfg RunConfig, p preset.Preset) RunConfig {
	if p.MaxRetries != nil {
		cfg.MaxRetries = *p.MaxRetries
	}
	if p.SemanticThreshold != nil {
		cfg.SemanticThreshold = *p.SemanticThreshold
	}
	if p.NegativePrompt != "" && cfg.NegativePrompt == "" {
		cfg.NegativePrompt = p.NegativePrompt
	}
	if len(p.Params) > 0 {
		merged := make(map[string]string, len(p.Params)+len(cfg.Params))
		for k, v := range p.Params {
			merged[k] = v
		}
		for k, v := range cfg.Params {
			merged[k] = v
		}
		cfg.Params = merged
	}
	return cfg
}
