package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Queues.HighLane == c.Queues.DefaultLane {
		return fmt.Errorf("queues.high_lane and queues.default_lane must differ (both %q)", c.Queues.HighLane)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json (got %q)", c.Logging.Format)
	}
	if c.Classifier.Enabled {
		if c.Classifier.MinSizeBytes < 0 {
			return errors.New("classifier.min_size_bytes must not be negative")
		}
		if c.Classifier.MinDurationSeconds < 0 {
			return errors.New("classifier.min_duration_seconds must not be negative")
		}
		if c.Classifier.MinBitrateKbps < 0 {
			return errors.New("classifier.min_bitrate_kbps must not be negative")
		}
		if c.Classifier.MaxSilenceRatio < 0 || c.Classifier.MaxSilenceRatio > 1 {
			return errors.New("classifier.max_silence_ratio must be between 0 and 1")
		}
	}
	if c.StatusCache.Enabled && c.StatusCache.RedisURL == "" {
		return errors.New("status_cache.redis_url must be set when status_cache.enabled is true (or export LECTERN_REDIS_URL)")
	}
	return nil
}
