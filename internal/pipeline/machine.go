package pipeline

import (
	"lectern/internal/record"
	"lectern/internal/services"
)

// Lane selects the queue a follow-on dispatch is routed to. User-initiated
// actions take the high lane; automatic continuation takes the default lane.
type Lane string

const (
	LaneHigh    Lane = "high"
	LaneDefault Lane = "default"
)

// Policy carries the per-deployment toggles the machine consults.
type Policy struct {
	// AutoTranscribe follows successful extraction with transcription
	// directly, bypassing the human approval gate.
	AutoTranscribe bool
	// TerminologyEnabled runs terminology recognition after transcription.
	// When false, transcription completion finishes the pipeline.
	TerminologyEnabled bool
}

// Dispatch directs the caller to enqueue a stage after persisting Next.
// The enqueue flips the record from Next to the stage's in-flight status
// in the same transaction.
type Dispatch struct {
	Stage record.Stage
	Lane  Lane
}

// Decision is the declarative outcome of applying an event: the status to
// persist and the side effects the caller must carry out. The machine itself
// performs no I/O.
type Decision struct {
	// Next is the status to persist, guarded on the current status. Equal to
	// the current status when the event only stamps a timestamp.
	Next record.Status
	// Dispatch, when non-nil, names the stage to enqueue after persisting.
	Dispatch *Dispatch
	// StampStart names the stage whose started_at the caller records.
	StampStart record.Stage
	// CompleteStage names the stage whose artifacts and completed_at the
	// caller persists.
	CompleteStage record.Stage
	// Terminal reports that Next ends the pipeline.
	Terminal bool
	// Reset directs the caller to clear all stage artifacts and timestamps.
	Reset bool
	// PurgeJobs directs the caller to delete pending and failed queue
	// entries for the segment before acting.
	PurgeJobs bool
	// TerminologyFailed marks a non-fatal terminology failure; the caller
	// stores the error detail outside error_message and completes the record.
	TerminologyFailed bool
}

// Decide computes the transition for an event against the record's current
// status under the given policy. Duplicate deliveries whose effect is already
// applied return ErrAlreadySatisfied; reports that would regress the record
// return ErrStale; actions illegal in the current state return ErrPrecondition.
func Decide(current record.Status, ev Event, pol Policy) (Decision, error) {
	switch ev {
	case EventStartExtraction:
		return decideStart(current)
	case EventExtractionStarted:
		return decideStarted(current, record.StageAudioExtraction)
	case EventExtractionDone:
		return decideExtractionDone(current, pol)
	case EventExtractionFailed:
		return decideFailed(current, record.StageAudioExtraction)
	case EventApprove:
		return decideApprove(current)
	case EventTranscriptionStarted:
		return decideStarted(current, record.StageTranscription)
	case EventTranscriptionDone:
		return decideTranscriptionDone(current, pol)
	case EventTranscriptionFailed:
		return decideFailed(current, record.StageTranscription)
	case EventTerminologyStarted:
		return decideStarted(current, record.StageTerminology)
	case EventTerminologyDone:
		return decideTerminologyDone(current)
	case EventTerminologyFailed:
		return decideTerminologyFailed(current)
	case EventAbort:
		return Decision{Next: record.StatusReady, Reset: true, PurgeJobs: true}, nil
	case EventRedo:
		return decideRedo(current)
	default:
		return Decision{}, services.Wrap(services.ErrValidation, "pipeline", "decide", "unknown event "+string(ev), nil)
	}
}

func decideStart(current record.Status) (Decision, error) {
	switch {
	case current == record.StatusReady:
		return Decision{
			Next:     record.StatusReady,
			Dispatch: &Dispatch{Stage: record.StageAudioExtraction, Lane: LaneHigh},
		}, nil
	case current == record.StatusFailed:
		return Decision{}, services.Wrap(services.ErrPrecondition, "pipeline", "start", "segment failed; redo to retry", nil)
	default:
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "start", "extraction already underway or done", nil)
	}
}

func decideStarted(current record.Status, stage record.Stage) (Decision, error) {
	inFlight := record.InFlightStatus(stage)
	switch {
	case current == inFlight:
		return Decision{Next: current, StampStart: stage}, nil
	case current.AtOrBeyond(inFlight):
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "started", "stage already past start", nil)
	default:
		return Decision{}, services.Wrap(services.ErrStale, "pipeline", "started", "start ping for a stage that is not in flight", nil)
	}
}

func decideExtractionDone(current record.Status, pol Policy) (Decision, error) {
	switch {
	case current == record.StatusProcessing:
		decision := Decision{
			Next:          record.StatusAudioExtracted,
			CompleteStage: record.StageAudioExtraction,
		}
		if pol.AutoTranscribe {
			decision.Dispatch = &Dispatch{Stage: record.StageTranscription, Lane: LaneDefault}
		}
		return decision, nil
	case current.AtOrBeyond(record.StatusAudioExtracted):
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "extraction", "completion already recorded", nil)
	default:
		return Decision{}, services.Wrap(services.ErrStale, "pipeline", "extraction", "completion without extraction in flight", nil)
	}
}

func decideApprove(current record.Status) (Decision, error) {
	switch {
	// approved_for_transcription is transient between approve and enqueue;
	// re-approving from it retries a dispatch that failed.
	case current == record.StatusAudioExtracted, current == record.StatusApproved:
		return Decision{
			Next:     record.StatusApproved,
			Dispatch: &Dispatch{Stage: record.StageTranscription, Lane: LaneHigh},
		}, nil
	case current.AtOrBeyond(record.StatusTranscribing):
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "approve", "transcription already approved", nil)
	default:
		return Decision{}, services.Wrap(services.ErrPrecondition, "pipeline", "approve", "approval requires extracted audio", nil)
	}
}

func decideTranscriptionDone(current record.Status, pol Policy) (Decision, error) {
	switch {
	case current == record.StatusTranscribing:
		if !pol.TerminologyEnabled {
			return Decision{
				Next:          record.StatusCompleted,
				CompleteStage: record.StageTranscription,
				Terminal:      true,
			}, nil
		}
		return Decision{
			Next:          record.StatusTranscribed,
			CompleteStage: record.StageTranscription,
			Dispatch:      &Dispatch{Stage: record.StageTerminology, Lane: LaneDefault},
		}, nil
	case current.AtOrBeyond(record.StatusTranscribed):
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "transcription", "completion already recorded", nil)
	default:
		return Decision{}, services.Wrap(services.ErrStale, "pipeline", "transcription", "completion without transcription in flight", nil)
	}
}

func decideTerminologyDone(current record.Status) (Decision, error) {
	switch {
	case current == record.StatusProcessingTerminology:
		return Decision{
			Next:          record.StatusCompleted,
			CompleteStage: record.StageTerminology,
			Terminal:      true,
		}, nil
	case current == record.StatusCompleted:
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "terminology", "completion already recorded", nil)
	default:
		return Decision{}, services.Wrap(services.ErrStale, "pipeline", "terminology", "completion without terminology in flight", nil)
	}
}

// decideTerminologyFailed completes the record anyway; terminology is an
// enrichment stage and its failure never fails the segment.
func decideTerminologyFailed(current record.Status) (Decision, error) {
	switch current {
	case record.StatusProcessingTerminology:
		return Decision{
			Next:              record.StatusCompleted,
			Terminal:          true,
			TerminologyFailed: true,
		}, nil
	case record.StatusCompleted, record.StatusFailed:
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "terminology", "record already terminal", nil)
	default:
		return Decision{}, services.Wrap(services.ErrStale, "pipeline", "terminology", "failure without terminology in flight", nil)
	}
}

func decideFailed(current record.Status, stage record.Stage) (Decision, error) {
	inFlight := record.InFlightStatus(stage)
	switch {
	case current == inFlight:
		return Decision{Next: record.StatusFailed, Terminal: true}, nil
	case current == record.StatusFailed:
		return Decision{}, services.Wrap(services.ErrAlreadySatisfied, "pipeline", "failure", "record already failed", nil)
	default:
		return Decision{}, services.Wrap(services.ErrStale, "pipeline", "failure", "failure report for a stage that is not in flight", nil)
	}
}

func decideRedo(current record.Status) (Decision, error) {
	if !current.IsTerminal() {
		return Decision{}, services.Wrap(services.ErrPrecondition, "pipeline", "redo", "redo requires a terminal record", nil)
	}
	return Decision{
		Next:      record.StatusReady,
		Reset:     true,
		PurgeJobs: true,
		Dispatch:  &Dispatch{Stage: record.StageAudioExtraction, Lane: LaneHigh},
	}, nil
}
