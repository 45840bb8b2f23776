package reconcile

import (
	"strings"

	"lectern/internal/record"
	"lectern/internal/services"
)

// Report is a worker callback: the stage it reports on, the reported status,
// and the stage-specific response data.
type Report struct {
	Stage  record.Stage
	Status string
	Data   ResponseData
}

// ResponseData carries the artifact references a worker returns. Fields are
// stage-specific; workers populate only the ones their stage produces.
type ResponseData struct {
	// Audio extraction.
	AudioPath       string   `json:"audio_path,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	SizeBytes       int64    `json:"size_bytes,omitempty"`
	SilenceRatio    *float64 `json:"silence_ratio,omitempty"`

	// Transcription.
	TranscriptPath string `json:"transcript_path,omitempty"`
	TranscriptJSON string `json:"transcript_json,omitempty"`
	SegmentCount   int    `json:"segment_count,omitempty"`

	// Terminology.
	TerminologyPath string `json:"terminology_path,omitempty"`
	TerminologyJSON string `json:"terminology_json,omitempty"`
	TermCount       int    `json:"term_count,omitempty"`

	Error string `json:"error,omitempty"`
}

// Validate checks the report names a known stage and status.
func (r Report) Validate() error {
	if _, ok := record.ParseStage(string(r.Stage)); !ok {
		return services.Wrap(services.ErrValidation, "reconcile", "report", "unknown stage "+string(r.Stage), nil)
	}
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case "started", "completed", "failed":
		return nil
	default:
		return services.Wrap(services.ErrValidation, "reconcile", "report", "unknown report status "+r.Status, nil)
	}
}

// Outcome summarizes what a reconciliation did. Applied is false for accepted
// duplicates; Status is always the record's current authoritative status so
// callers can resynchronize.
type Outcome struct {
	Applied bool
	Status  record.Status
}
