// Package classify decides, from cheap evidence reported by the extraction
// worker, whether a segment's audio is lecture speech worth transcribing or
// non-speech performance content that should skip transcription. A false
// negative only costs one transcription call; every verdict is returned with
// the evidence that produced it so callers can log it.
package classify

import (
	"fmt"

	"lectern/internal/config"
)

// Audio is the evidence available at the audio->transcription boundary.
// SilenceRatio is optional; workers that do not measure it leave it nil.
type Audio struct {
	Path            string
	SizeBytes       int64
	DurationSeconds float64
	SilenceRatio    *float64
}

// Kind values mirror record.ContentKind*.
const (
	KindLecture     = "lecture"
	KindPerformance = "performance"
)

// Reason tags name the first heuristic that matched.
const (
	ReasonTinyFile     = "file_below_size_floor"
	ReasonShortClip    = "duration_below_floor"
	ReasonLowBitrate   = "bitrate_below_floor"
	ReasonMostlySilent = "silence_ratio_above_ceiling"
)

// Result is a verdict plus the evidence behind it.
type Result struct {
	Kind        string
	Reason      string
	Detail      string
	SizeBytes   int64
	DurationSec float64
	BitrateKbps float64
}

// Performance reports whether the verdict short-circuits transcription.
func (r Result) Performance() bool {
	return r.Kind == KindPerformance
}

// Classifier evaluates the ordered heuristics against configured floors.
type Classifier struct {
	enabled         bool
	minSizeBytes    int64
	minDurationSec  float64
	minBitrateKbps  float64
	maxSilenceRatio float64
}

// New builds a classifier from pipeline configuration. A disabled classifier
// always returns the lecture verdict.
func New(cfg config.Classifier) *Classifier {
	return &Classifier{
		enabled:         cfg.Enabled,
		minSizeBytes:    cfg.MinSizeBytes,
		minDurationSec:  cfg.MinDurationSeconds,
		minBitrateKbps:  cfg.MinBitrateKbps,
		maxSilenceRatio: cfg.MaxSilenceRatio,
	}
}

// Classify runs the heuristics in order and returns on the first match.
func (c *Classifier) Classify(a Audio) Result {
	result := Result{
		Kind:        KindLecture,
		SizeBytes:   a.SizeBytes,
		DurationSec: a.DurationSeconds,
		BitrateKbps: bitrateKbps(a),
	}
	if !c.enabled {
		return result
	}

	switch {
	case a.SizeBytes > 0 && a.SizeBytes < c.minSizeBytes:
		result.Kind = KindPerformance
		result.Reason = ReasonTinyFile
		result.Detail = fmt.Sprintf("%d bytes below floor %d", a.SizeBytes, c.minSizeBytes)
	case a.DurationSeconds > 0 && a.DurationSeconds < c.minDurationSec:
		result.Kind = KindPerformance
		result.Reason = ReasonShortClip
		result.Detail = fmt.Sprintf("%.1fs below floor %.1fs", a.DurationSeconds, c.minDurationSec)
	case result.BitrateKbps > 0 && result.BitrateKbps < c.minBitrateKbps:
		result.Kind = KindPerformance
		result.Reason = ReasonLowBitrate
		result.Detail = fmt.Sprintf("%.1f kbps below floor %.1f", result.BitrateKbps, c.minBitrateKbps)
	case a.SilenceRatio != nil && *a.SilenceRatio > c.maxSilenceRatio:
		result.Kind = KindPerformance
		result.Reason = ReasonMostlySilent
		result.Detail = fmt.Sprintf("silence ratio %.2f above ceiling %.2f", *a.SilenceRatio, c.maxSilenceRatio)
	}
	return result
}

// bitrateKbps derives an approximate bitrate from size and duration. Returns
// zero when either dimension is missing.
func bitrateKbps(a Audio) float64 {
	if a.SizeBytes <= 0 || a.DurationSeconds <= 0 {
		return 0
	}
	return float64(a.SizeBytes) * 8 / 1000 / a.DurationSeconds
}
