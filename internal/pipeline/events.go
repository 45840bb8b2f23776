package pipeline

import (
	"strings"

	"lectern/internal/record"
)

// Event names a stimulus applied to a processing record: a manual action, a
// worker start ping, or a worker completion/failure callback.
type Event string

const (
	EventStartExtraction      Event = "start_extraction"
	EventExtractionStarted    Event = "extraction_started"
	EventExtractionDone       Event = "extraction_done"
	EventExtractionFailed     Event = "extraction_failed"
	EventApprove              Event = "approve"
	EventTranscriptionStarted Event = "transcription_started"
	EventTranscriptionDone    Event = "transcription_done"
	EventTranscriptionFailed  Event = "transcription_failed"
	EventTerminologyStarted   Event = "terminology_started"
	EventTerminologyDone      Event = "terminology_done"
	EventTerminologyFailed    Event = "terminology_failed"
	EventAbort                Event = "abort"
	EventRedo                 Event = "redo"
)

// stageEvents indexes the worker-driven events by stage and report kind.
var stageEvents = map[record.Stage]struct {
	started Event
	done    Event
	failed  Event
}{
	record.StageAudioExtraction: {EventExtractionStarted, EventExtractionDone, EventExtractionFailed},
	record.StageTranscription:   {EventTranscriptionStarted, EventTranscriptionDone, EventTranscriptionFailed},
	record.StageTerminology:     {EventTerminologyStarted, EventTerminologyDone, EventTerminologyFailed},
}

// StageEvent maps a worker report kind onto the machine event for a stage.
func StageEvent(stage record.Stage, reportStatus string) (Event, bool) {
	events, ok := stageEvents[stage]
	if !ok {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(reportStatus)) {
	case "started":
		return events.started, true
	case "completed":
		return events.done, true
	case "failed":
		return events.failed, true
	default:
		return "", false
	}
}

// Stage returns the pipeline stage a worker event belongs to, if any.
func (e Event) Stage() (record.Stage, bool) {
	for stage, events := range stageEvents {
		if e == events.started || e == events.done || e == events.failed {
			return stage, true
		}
	}
	return "", false
}
