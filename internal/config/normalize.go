package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.DataDir == "" {
		if c.Paths.DataDir, err = ExpandPath(defaultDataDir); err != nil {
			return fmt.Errorf("paths.data_dir: %w", err)
		}
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LogDir == "" {
		if c.Paths.LogDir, err = ExpandPath(defaultLogDir); err != nil {
			return fmt.Errorf("paths.log_dir: %w", err)
		}
	}

	c.Queues.HighLane = strings.TrimSpace(c.Queues.HighLane)
	if c.Queues.HighLane == "" {
		c.Queues.HighLane = defaultHighLane
	}
	c.Queues.DefaultLane = strings.TrimSpace(c.Queues.DefaultLane)
	if c.Queues.DefaultLane == "" {
		c.Queues.DefaultLane = defaultDefaultLane
	}

	c.Pipeline.AudioQuality = strings.TrimSpace(c.Pipeline.AudioQuality)
	if c.Pipeline.AudioQuality == "" {
		c.Pipeline.AudioQuality = defaultAudioQuality
	}
	c.Pipeline.TranscriptPreset = strings.TrimSpace(c.Pipeline.TranscriptPreset)
	if c.Pipeline.TranscriptPreset == "" {
		c.Pipeline.TranscriptPreset = defaultTranscriptPreset
	}
	c.Pipeline.TranscriptKeyPrefix = strings.Trim(strings.TrimSpace(c.Pipeline.TranscriptKeyPrefix), "/")
	if c.Pipeline.TranscriptKeyPrefix == "" {
		c.Pipeline.TranscriptKeyPrefix = defaultTranscriptKeyPrefix
	}

	if c.StatusCache.RedisURL == "" {
		if value, ok := os.LookupEnv("LECTERN_REDIS_URL"); ok {
			c.StatusCache.RedisURL = strings.TrimSpace(value)
		}
	}
	if c.StatusCache.TTLSeconds <= 0 {
		c.StatusCache.TTLSeconds = defaultStatusCacheTTL
	}

	c.Hygiene.SweepSchedule = strings.TrimSpace(c.Hygiene.SweepSchedule)
	if c.Hygiene.SweepSchedule == "" {
		c.Hygiene.SweepSchedule = defaultSweepSchedule
	}
	if c.Hygiene.FailedRetentionDays <= 0 {
		c.Hygiene.FailedRetentionDays = defaultFailedRetentionDays
	}

	c.normalizeLogging()
	return nil
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
