package config

const (
	defaultDataDir             = "~/.local/share/lectern/data"
	defaultLogDir              = "~/.local/share/lectern/logs"
	defaultHighLane            = "high"
	defaultDefaultLane         = "default"
	defaultAudioQuality        = "standard"
	defaultTranscriptPreset    = "lecture"
	defaultTranscriptKeyPrefix = "transcripts"
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
	defaultSweepSchedule       = "@every 15m"
	defaultFailedRetentionDays = 7
	defaultStatusCacheTTL      = 30

	defaultClassifierMinSizeBytes   = 64 * 1024
	defaultClassifierMinDurationSec = 20.0
	defaultClassifierMinBitrateKbps = 8.0
	defaultClassifierMaxSilence     = 0.85
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Pipeline: Pipeline{
			AutoTranscribe:      false,
			TerminologyEnabled:  false,
			AudioQuality:        defaultAudioQuality,
			TranscriptPreset:    defaultTranscriptPreset,
			TranscriptKeyPrefix: defaultTranscriptKeyPrefix,
		},
		Queues: Queues{
			HighLane:    defaultHighLane,
			DefaultLane: defaultDefaultLane,
		},
		Classifier: Classifier{
			Enabled:            true,
			MinSizeBytes:       defaultClassifierMinSizeBytes,
			MinDurationSeconds: defaultClassifierMinDurationSec,
			MinBitrateKbps:     defaultClassifierMinBitrateKbps,
			MaxSilenceRatio:    defaultClassifierMaxSilence,
		},
		Hygiene: Hygiene{
			SweepSchedule:       defaultSweepSchedule,
			FailedRetentionDays: defaultFailedRetentionDays,
		},
		StatusCache: StatusCache{
			TTLSeconds: defaultStatusCacheTTL,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
