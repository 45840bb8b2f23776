// Package statuscache keeps short-lived segment status snapshots in redis so
// frequent status polls do not hit SQLite. The cache is advisory: every
// method tolerates a nil cache and a miss simply falls back to the store.
package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/record"
)

// Snapshot is the cached projection of a processing record.
type Snapshot struct {
	Status          string    `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	HasAudio        bool      `json:"has_audio"`
	HasTranscript   bool      `json:"has_transcript"`
	HasTerminology  bool      `json:"has_terminology"`
	ErrorMessage    string    `json:"error_message,omitempty"`

	AudioSeconds         float64 `json:"audio_seconds,omitempty"`
	TranscriptionSeconds float64 `json:"transcription_seconds,omitempty"`
	TerminologySeconds   float64 `json:"terminology_seconds,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Cache wraps a redis client with snapshot helpers. A nil *Cache is valid
// and inert, so callers never branch on whether caching is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to redis when the cache is enabled; returns nil otherwise.
func New(cfg config.StatusCache, logger *slog.Logger) (*Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{
		client: redis.NewClient(opts),
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
		logger: logging.NewComponentLogger(logger, "statuscache"),
	}, nil
}

// Ping verifies connectivity; inert on a nil cache.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// SetSnapshot stores the record's current projection. Failures are logged
// and swallowed; the store remains authoritative.
func (c *Cache) SetSnapshot(ctx context.Context, rec *record.Record) {
	if c == nil || rec == nil {
		return
	}
	snap := Snapshot{
		Status:          string(rec.Status),
		ProgressPercent: rec.Progress(),
		HasAudio:        rec.HasAudio(),
		HasTranscript:   rec.HasTranscript(),
		HasTerminology:  rec.HasTerminology(),
		ErrorMessage:    rec.ErrorMessage,

		AudioSeconds:         rec.AudioSeconds,
		TranscriptionSeconds: rec.TranscriptionSeconds,
		TerminologySeconds:   rec.TerminologySeconds,

		UpdatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	key := SnapshotKey(rec.CourseID, rec.SegmentID)
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "snapshot write failed",
			logging.String("key", key), logging.Error(err))
	}
}

// GetSnapshot returns the cached projection, or ok=false on miss or error.
func (c *Cache) GetSnapshot(ctx context.Context, courseID, segmentID int64) (Snapshot, bool) {
	if c == nil {
		return Snapshot{}, false
	}
	key := SnapshotKey(courseID, segmentID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "snapshot read failed",
				logging.String("key", key), logging.Error(err))
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Invalidate drops the cached projection, used before resets.
func (c *Cache) Invalidate(ctx context.Context, courseID, segmentID int64) {
	if c == nil {
		return
	}
	key := SnapshotKey(courseID, segmentID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WarnContext(ctx, "snapshot invalidate failed",
			logging.String("key", key), logging.Error(err))
	}
}
