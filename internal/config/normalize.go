package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSynthesis()
	c.normalizeScorer()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MetricsDir) == "" {
		c.Paths.MetricsDir = defaultMetricsDir
	}
	if c.Paths.MetricsDir, err = expandPath(c.Paths.MetricsDir); err != nil {
		return fmt.Errorf("paths.metrics_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PresetDir) == "" {
		c.Paths.PresetDir = defaultPresetDir
	}
	if c.Paths.PresetDir, err = expandPath(c.Paths.PresetDir); err != nil {
		return fmt.Errorf("paths.preset_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = defaultSocketPath
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.RemoteRoot) != "" {
		if c.Paths.RemoteRoot, err = expandPath(c.Paths.RemoteRoot); err != nil {
			return fmt.Errorf("paths.remote_root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Endpoint = strings.TrimRight(strings.TrimSpace(c.Synthesis.Endpoint), "/")
	if c.Synthesis.TimeoutSeconds <= 0 {
		c.Synthesis.TimeoutSeconds = defaultSynthesisTimeout
	}
	if strings.TrimSpace(c.Synthesis.Device) == "" {
		c.Synthesis.Device = "unknown"
	}
}

func (c *Config) normalizeScorer() {
	c.Scorer.Endpoint = strings.TrimRight(strings.TrimSpace(c.Scorer.Endpoint), "/")
	if c.Scorer.TimeoutSeconds <= 0 {
		c.Scorer.TimeoutSeconds = defaultScorerTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.CheckpointQueueDepth <= 0 {
		c.Workflow.CheckpointQueueDepth = defaultCheckpointQueueDepth
	}
	if c.Workflow.EventBufferSize <= 0 {
		c.Workflow.EventBufferSize = defaultEventBufferSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
