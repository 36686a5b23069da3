package config

const (
	defaultDataDir              = "~/.local/share/easel"
	defaultOutputDir            = "~/.local/share/easel/outputs"
	defaultMetricsDir           = "~/.local/share/easel/metrics"
	defaultPresetDir            = "~/.config/easel/presets"
	defaultLogDir               = "~/.local/share/easel/logs"
	defaultSocketPath           = "~/.local/share/easel/easeld.sock"
	defaultSynthesisTimeout     = 600
	defaultScorerTimeout        = 30
	defaultScorerThreshold      = 0.25
	defaultQualityMinMean       = 0.05
	defaultQualityMaxMean       = 0.95
	defaultQualityMinStd        = 0.02
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultCheckpointQueueDepth = 16
	defaultEventBufferSize      = 500
	defaultMinFreeSpaceGiB      = 2
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			OutputDir:  defaultOutputDir,
			MetricsDir: defaultMetricsDir,
			PresetDir:  defaultPresetDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Synthesis: Synthesis{
			TimeoutSeconds: defaultSynthesisTimeout,
		},
		Scorer: Scorer{
			TimeoutSeconds: defaultScorerTimeout,
			Threshold:      defaultScorerThreshold,
		},
		Quality: Quality{
			MinMean: defaultQualityMinMean,
			MaxMean: defaultQualityMaxMean,
			MinStd:  defaultQualityMinStd,
		},
		Workflow: Workflow{
			QueuePollInterval:    defaultQueuePollInterval,
			ErrorRetryInterval:   defaultErrorRetryInterval,
			CheckpointQueueDepth: defaultCheckpointQueueDepth,
			EventBufferSize:      defaultEventBufferSize,
			MinFreeSpaceGiB:      defaultMinFreeSpaceGiB,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			RunLifecycle:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
