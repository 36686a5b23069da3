package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateScorer(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if strings.TrimSpace(c.Synthesis.Endpoint) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/easel/config.toml"
		}
		return fmt.Errorf("synthesis.endpoint is required. Edit %s (create with 'easel config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateScorer() error {
	if !c.Scorer.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Scorer.Endpoint) == "" {
		return errors.New("scorer.endpoint must be set when scorer.enabled is true")
	}
	if c.Scorer.Threshold < -1 || c.Scorer.Threshold > 1 {
		return errors.New("scorer.threshold must be within the similarity range [-1, 1]")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.MinMean < 0 || c.Quality.MaxMean > 1 || c.Quality.MinMean >= c.Quality.MaxMean {
		return errors.New("quality.min_mean and quality.max_mean must satisfy 0 <= min < max <= 1")
	}
	if c.Quality.MinStd < 0 {
		return errors.New("quality.min_std must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}
