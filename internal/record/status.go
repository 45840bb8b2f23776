package record

import "strings"

// Status represents the lifecycle of a processing record.
type Status string

const (
	StatusReady                 Status = "ready"
	StatusProcessing            Status = "processing"
	StatusAudioExtracted        Status = "audio_extracted"
	StatusApproved              Status = "approved_for_transcription"
	StatusTranscribing          Status = "transcribing"
	StatusTranscribed           Status = "transcribed"
	StatusProcessingTerminology Status = "processing_terminology"
	StatusCompleted             Status = "completed"
	StatusFailed                Status = "failed"
)

// Stage identifies one of the three pipeline stages.
type Stage string

const (
	StageAudioExtraction Stage = "audio_extraction"
	StageTranscription   Stage = "transcription"
	StageTerminology     Stage = "terminology"
)

var allStatuses = []Status{
	StatusReady,
	StatusProcessing,
	StatusAudioExtracted,
	StatusApproved,
	StatusTranscribing,
	StatusTranscribed,
	StatusProcessingTerminology,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// statusRank orders statuses along the success path so stale callbacks can be
// distinguished from duplicates. Failed is outside the ordering.
var statusRank = map[Status]int{
	StatusReady:                 0,
	StatusProcessing:            1,
	StatusAudioExtracted:        2,
	StatusApproved:              3,
	StatusTranscribing:          4,
	StatusTranscribed:           5,
	StatusProcessingTerminology: 6,
	StatusCompleted:             7,
}

// inFlightStages maps each in-flight status to the stage awaiting a callback.
var inFlightStages = map[Status]Stage{
	StatusProcessing:            StageAudioExtraction,
	StatusTranscribing:          StageTranscription,
	StatusProcessingTerminology: StageTerminology,
}

// progressByStatus is advisory only; status remains the single control field.
var progressByStatus = map[Status]int{
	StatusReady:                 0,
	StatusProcessing:            10,
	StatusAudioExtracted:        30,
	StatusApproved:              40,
	StatusTranscribing:          50,
	StatusTranscribed:           75,
	StatusProcessingTerminology: 90,
	StatusCompleted:             100,
	StatusFailed:                0,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	switch Stage(strings.ToLower(strings.TrimSpace(value))) {
	case StageAudioExtraction:
		return StageAudioExtraction, true
	case StageTranscription:
		return StageTranscription, true
	case StageTerminology:
		return StageTerminology, true
	default:
		return "", false
	}
}

// InFlightStage returns the stage a status is waiting on, if any.
func (s Status) InFlightStage() (Stage, bool) {
	stage, ok := inFlightStages[s]
	return stage, ok
}

// InFlightStatus returns the status representing the given stage in flight.
func InFlightStatus(stage Stage) Status {
	switch stage {
	case StageAudioExtraction:
		return StatusProcessing
	case StageTranscription:
		return StatusTranscribing
	case StageTerminology:
		return StatusProcessingTerminology
	default:
		return ""
	}
}

// IsTerminal reports whether a status ends the pipeline.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsInFlight reports whether the status reflects a dispatched stage awaiting
// its callback.
func (s Status) IsInFlight() bool {
	_, ok := inFlightStages[s]
	return ok
}

// AtOrBeyond reports whether s is at least as far along the success path as
// other. Failed compares beyond nothing and nothing compares beyond failed.
func (s Status) AtOrBeyond(other Status) bool {
	a, okA := statusRank[s]
	b, okB := statusRank[other]
	if !okA || !okB {
		return false
	}
	return a >= b
}

// Progress returns the advisory completion percentage for a status.
func (s Status) Progress() int {
	return progressByStatus[s]
}
