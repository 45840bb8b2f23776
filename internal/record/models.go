package record

import (
	"time"
)

// ContentKind classifies a segment's extracted audio.
const (
	ContentKindLecture     = "lecture"
	ContentKindPerformance = "performance"
)

// Record is the durable per-segment processing state, one row per segment.
// Status is the single mutable control field; everything else is stage
// artifacts, timing, or bookkeeping around it.
type Record struct {
	ID        int64
	CourseID  int64
	SegmentID int64
	Status    Status

	// Audio extraction artifacts.
	AudioPath            string
	AudioDurationSeconds float64
	AudioSizeBytes       int64
	AudioSilenceRatio    *float64

	// Transcription artifacts.
	TranscriptPath         string
	TranscriptJSON         string
	TranscriptSegmentCount int

	// Terminology artifacts.
	TerminologyPath string
	TerminologyJSON string
	TermCount       int

	// Classifier verdict for the audio->transcription boundary.
	ContentKind string
	SkipReason  string

	// Approval gate between extraction and transcription.
	Approved   bool
	ApprovedAt *time.Time
	ApprovedBy string

	// Stage timing. StartedAt values are stamped by worker start pings, never
	// by the dispatcher, so durations reflect actual work rather than queue wait.
	AudioStartedAt           *time.Time
	AudioCompletedAt         *time.Time
	AudioSeconds             float64
	TranscriptionStartedAt   *time.Time
	TranscriptionCompletedAt *time.Time
	TranscriptionSeconds     float64
	TerminologyStartedAt     *time.Time
	TerminologyCompletedAt   *time.Time
	TerminologySeconds       float64

	ErrorMessage     string
	TerminologyError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Progress returns the advisory completion percentage derived from status.
func (r *Record) Progress() int {
	return r.Status.Progress()
}

// HasAudio reports whether the extraction stage produced its artifact.
func (r *Record) HasAudio() bool {
	return r.AudioCompletedAt != nil
}

// HasTranscript reports whether the transcription stage produced its artifact.
func (r *Record) HasTranscript() bool {
	return r.TranscriptionCompletedAt != nil
}

// HasTerminology reports whether the terminology stage produced its artifact.
func (r *Record) HasTerminology() bool {
	return r.TerminologyCompletedAt != nil
}

// StageStartedAt returns the start timestamp recorded for a stage.
func (r *Record) StageStartedAt(stage Stage) *time.Time {
	switch stage {
	case StageAudioExtraction:
		return r.AudioStartedAt
	case StageTranscription:
		return r.TranscriptionStartedAt
	case StageTerminology:
		return r.TerminologyStartedAt
	default:
		return nil
	}
}

// StageCompletedAt returns the completion timestamp recorded for a stage.
func (r *Record) StageCompletedAt(stage Stage) *time.Time {
	switch stage {
	case StageAudioExtraction:
		return r.AudioCompletedAt
	case StageTranscription:
		return r.TranscriptionCompletedAt
	case StageTerminology:
		return r.TerminologyCompletedAt
	default:
		return nil
	}
}

// SetStageStarted stamps a stage's start time if not already recorded.
// Worker start pings are at-least-once; the first one wins.
func (r *Record) SetStageStarted(stage Stage, at time.Time) bool {
	at = at.UTC()
	switch stage {
	case StageAudioExtraction:
		if r.AudioStartedAt != nil {
			return false
		}
		r.AudioStartedAt = &at
	case StageTranscription:
		if r.TranscriptionStartedAt != nil {
			return false
		}
		r.TranscriptionStartedAt = &at
	case StageTerminology:
		if r.TerminologyStartedAt != nil {
			return false
		}
		r.TerminologyStartedAt = &at
	default:
		return false
	}
	return true
}

// SetStageCompleted stamps completion and stores the stage duration when the
// start time is known.
func (r *Record) SetStageCompleted(stage Stage, at time.Time) {
	at = at.UTC()
	switch stage {
	case StageAudioExtraction:
		r.AudioCompletedAt = &at
		if r.AudioStartedAt != nil {
			r.AudioSeconds = at.Sub(*r.AudioStartedAt).Seconds()
		}
	case StageTranscription:
		r.TranscriptionCompletedAt = &at
		if r.TranscriptionStartedAt != nil {
			r.TranscriptionSeconds = at.Sub(*r.TranscriptionStartedAt).Seconds()
		}
	case StageTerminology:
		r.TerminologyCompletedAt = &at
		if r.TerminologyStartedAt != nil {
			r.TerminologySeconds = at.Sub(*r.TerminologyStartedAt).Seconds()
		}
	}
}

// ClearStageCompletion clears a stage's completion stamp before re-dispatch.
func (r *Record) ClearStageCompletion(stage Stage) {
	switch stage {
	case StageAudioExtraction:
		r.AudioCompletedAt = nil
		r.AudioSeconds = 0
	case StageTranscription:
		r.TranscriptionCompletedAt = nil
		r.TranscriptionSeconds = 0
	case StageTerminology:
		r.TerminologyCompletedAt = nil
		r.TerminologySeconds = 0
	}
}

// ResetPipeline returns the record to its initial state, clearing every stage
// artifact, timestamp, approval, and error. Abort and redo both run this;
// the record itself is never deleted.
func (r *Record) ResetPipeline() {
	r.Status = StatusReady
	r.AudioPath = ""
	r.AudioDurationSeconds = 0
	r.AudioSizeBytes = 0
	r.AudioSilenceRatio = nil
	r.TranscriptPath = ""
	r.TranscriptJSON = ""
	r.TranscriptSegmentCount = 0
	r.TerminologyPath = ""
	r.TerminologyJSON = ""
	r.TermCount = 0
	r.ContentKind = ""
	r.SkipReason = ""
	r.Approved = false
	r.ApprovedAt = nil
	r.ApprovedBy = ""
	r.AudioStartedAt = nil
	r.AudioCompletedAt = nil
	r.AudioSeconds = 0
	r.TranscriptionStartedAt = nil
	r.TranscriptionCompletedAt = nil
	r.TranscriptionSeconds = 0
	r.TerminologyStartedAt = nil
	r.TerminologyCompletedAt = nil
	r.TerminologySeconds = 0
	r.ErrorMessage = ""
	r.TerminologyError = ""
}

// SetFailed marks the record failed with the given reason.
func (r *Record) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
}

// HealthSummary describes aggregated record counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Ready      int
	InFlight   int
	Awaiting   int
	Failed     int
	Completed  int
	QueuedJobs int
	FailedJobs int
}
