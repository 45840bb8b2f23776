// Package orchestrator is the synchronous control surface of the pipeline:
// status queries, pipeline start, the approval gate, abort, and redo. Every
// operation is a short read-modify-write; long-running work always happens in
// external workers reached through the dispatcher.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lectern/internal/config"
	"lectern/internal/dispatch"
	"lectern/internal/hygiene"
	"lectern/internal/logging"
	"lectern/internal/pipeline"
	"lectern/internal/record"
	"lectern/internal/services"
	"lectern/internal/statuscache"
)

type Orchestrator struct {
	store      *record.Store
	dispatcher *dispatch.Dispatcher
	hygiene    *hygiene.Service
	cache      *statuscache.Cache
	policy     pipeline.Policy
	logger     *slog.Logger
}

func New(store *record.Store, dispatcher *dispatch.Dispatcher, hyg *hygiene.Service, cache *statuscache.Cache, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		hygiene:    hyg,
		cache:      cache,
		policy: pipeline.Policy{
			AutoTranscribe:     cfg.Pipeline.AutoTranscribe,
			TerminologyEnabled: cfg.Pipeline.TerminologyEnabled,
		},
		logger: logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// StatusView is the consumer-facing projection of a record.
type StatusView struct {
	CourseID        int64   `json:"course_id"`
	SegmentID       int64   `json:"segment_id"`
	Status          string  `json:"status"`
	ProgressPercent int     `json:"progress_percentage"`
	HasAudio        bool    `json:"has_audio"`
	HasTranscript   bool    `json:"has_transcript"`
	HasTerminology  bool    `json:"has_terminology"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ContentKind     string  `json:"content_kind,omitempty"`
	Timing          Timing  `json:"timing"`
	Cached          bool    `json:"-"`
}

// Timing reports per-stage durations in seconds, zero until a stage has both
// its start ping and completion callback.
type Timing struct {
	AudioSeconds         float64 `json:"audio_seconds,omitempty"`
	TranscriptionSeconds float64 `json:"transcription_seconds,omitempty"`
	TerminologySeconds   float64 `json:"terminology_seconds,omitempty"`
}

// Status returns the segment's status view, creating the record lazily on
// first query. A fresh cache snapshot short-circuits the store read.
func (o *Orchestrator) Status(ctx context.Context, courseID, segmentID int64) (StatusView, error) {
	if snap, ok := o.cache.GetSnapshot(ctx, courseID, segmentID); ok {
		return StatusView{
			CourseID:        courseID,
			SegmentID:       segmentID,
			Status:          snap.Status,
			ProgressPercent: snap.ProgressPercent,
			HasAudio:        snap.HasAudio,
			HasTranscript:   snap.HasTranscript,
			HasTerminology:  snap.HasTerminology,
			ErrorMessage:    snap.ErrorMessage,
			Timing: Timing{
				AudioSeconds:         snap.AudioSeconds,
				TranscriptionSeconds: snap.TranscriptionSeconds,
				TerminologySeconds:   snap.TerminologySeconds,
			},
			Cached: true,
		}, nil
	}

	rec, err := o.store.Ensure(ctx, courseID, segmentID)
	if err != nil {
		return StatusView{}, services.Wrap(services.ErrUnavailable, "orchestrator", "status", "ensure record", err)
	}
	o.cache.SetSnapshot(ctx, rec)
	return viewOf(rec), nil
}

// Record returns the full processing record, without lazy creation.
func (o *Orchestrator) Record(ctx context.Context, courseID, segmentID int64) (*record.Record, error) {
	rec, err := o.store.Get(ctx, courseID, segmentID)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "orchestrator", "record", "load record", err)
	}
	if rec == nil {
		return nil, notFound(courseID, segmentID)
	}
	return rec, nil
}

// List returns records, optionally filtered by status.
func (o *Orchestrator) List(ctx context.Context, statuses ...record.Status) ([]*record.Record, error) {
	return o.store.List(ctx, statuses...)
}

// Health returns aggregate record and queue counts.
func (o *Orchestrator) Health(ctx context.Context) (record.HealthSummary, error) {
	return o.store.Health(ctx)
}

// JobStats returns queue depth by lane plus the failed count.
func (o *Orchestrator) JobStats(ctx context.Context) (record.QueueStats, error) {
	return o.store.JobStats(ctx)
}

// Start begins the pipeline for a segment: lazily creates the record and
// dispatches audio extraction on the high lane.
func (o *Orchestrator) Start(ctx context.Context, courseID, segmentID int64, opts dispatch.Options) (*record.Record, error) {
	rec, err := o.store.Ensure(ctx, courseID, segmentID)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "orchestrator", "start", "ensure record", err)
	}

	decision, err := pipeline.Decide(rec.Status, pipeline.EventStartExtraction, o.policy)
	if err != nil {
		return rec, err
	}
	if _, err := o.dispatcher.Dispatch(ctx, rec, decision.Dispatch.Stage, decision.Dispatch.Lane, opts); err != nil {
		return rec, err
	}
	return rec, nil
}

// Approve releases the human gate after audio extraction and dispatches
// transcription on the high lane. Replays from the transient approved state
// retry the dispatch.
func (o *Orchestrator) Approve(ctx context.Context, courseID, segmentID int64, by string) (*record.Record, error) {
	rec, err := o.store.Get(ctx, courseID, segmentID)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "orchestrator", "approve", "load record", err)
	}
	if rec == nil {
		return nil, notFound(courseID, segmentID)
	}

	decision, err := pipeline.Decide(rec.Status, pipeline.EventApprove, o.policy)
	if err != nil {
		return rec, err
	}

	prior := rec.Status
	if !rec.Approved {
		now := time.Now().UTC()
		rec.Approved = true
		rec.ApprovedAt = &now
		rec.ApprovedBy = by
	}
	rec.Status = decision.Next
	if err := o.store.UpdateGuarded(ctx, rec, prior); err != nil {
		rec.Status = prior
		return rec, classifyStoreErr(err, "approve")
	}

	o.logger.InfoContext(ctx, "transcription approved",
		logging.Int64(logging.FieldCourseID, courseID),
		logging.Int64(logging.FieldSegmentID, segmentID),
		logging.String("approved_by", by))

	if _, err := o.dispatcher.Dispatch(ctx, rec, decision.Dispatch.Stage, decision.Dispatch.Lane, dispatch.Options{}); err != nil {
		// Record stays approved_for_transcription; re-approving retries.
		return rec, err
	}
	return rec, nil
}

// Abort resets the record to ready, clears all stage state, and purges the
// segment's queue entries. Legal from any state; already-running remote work
// is rendered inert by the reconciler's guard rule.
func (o *Orchestrator) Abort(ctx context.Context, courseID, segmentID int64) (*record.Record, error) {
	rec, err := o.store.Get(ctx, courseID, segmentID)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "orchestrator", "abort", "load record", err)
	}
	if rec == nil {
		return nil, notFound(courseID, segmentID)
	}

	if _, err := o.reset(ctx, rec, pipeline.EventAbort); err != nil {
		return rec, err
	}
	o.logger.InfoContext(ctx, "segment aborted",
		logging.Int64(logging.FieldCourseID, courseID),
		logging.Int64(logging.FieldSegmentID, segmentID))
	return rec, nil
}

// Redo re-runs the pipeline from scratch for a terminal record, with
// caller-supplied extraction overrides, dispatching on the high lane.
func (o *Orchestrator) Redo(ctx context.Context, courseID, segmentID int64, opts dispatch.Options) (*record.Record, error) {
	rec, err := o.store.Get(ctx, courseID, segmentID)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "orchestrator", "redo", "load record", err)
	}
	if rec == nil {
		return nil, notFound(courseID, segmentID)
	}

	decision, err := o.reset(ctx, rec, pipeline.EventRedo)
	if err != nil {
		return rec, err
	}

	if _, err := o.dispatcher.Dispatch(ctx, rec, decision.Dispatch.Stage, decision.Dispatch.Lane, opts); err != nil {
		return rec, err
	}
	o.logger.InfoContext(ctx, "segment redo dispatched",
		logging.Int64(logging.FieldCourseID, courseID),
		logging.Int64(logging.FieldSegmentID, segmentID),
		logging.Bool("force_reextraction", opts.ForceReextraction))
	return rec, nil
}

// reset applies abort/redo: purge queue entries, clear the record in place,
// persist guarded on the prior status. Purge failure is logged, not fatal.
func (o *Orchestrator) reset(ctx context.Context, rec *record.Record, ev pipeline.Event) (pipeline.Decision, error) {
	decision, err := pipeline.Decide(rec.Status, ev, o.policy)
	if err != nil {
		return pipeline.Decision{}, err
	}

	if decision.PurgeJobs {
		_ = o.hygiene.Purge(ctx, rec.CourseID, rec.SegmentID)
	}

	prior := rec.Status
	rec.ResetPipeline()
	if err := o.store.UpdateGuarded(ctx, rec, prior); err != nil {
		rec.Status = prior
		return pipeline.Decision{}, classifyStoreErr(err, string(ev))
	}
	o.cache.Invalidate(ctx, rec.CourseID, rec.SegmentID)
	return decision, nil
}

func viewOf(rec *record.Record) StatusView {
	return StatusView{
		CourseID:        rec.CourseID,
		SegmentID:       rec.SegmentID,
		Status:          string(rec.Status),
		ProgressPercent: rec.Progress(),
		HasAudio:        rec.HasAudio(),
		HasTranscript:   rec.HasTranscript(),
		HasTerminology:  rec.HasTerminology(),
		ErrorMessage:    rec.ErrorMessage,
		ContentKind:     rec.ContentKind,
		Timing: Timing{
			AudioSeconds:         rec.AudioSeconds,
			TranscriptionSeconds: rec.TranscriptionSeconds,
			TerminologySeconds:   rec.TerminologySeconds,
		},
	}
}

func notFound(courseID, segmentID int64) error {
	return services.Wrap(services.ErrNotFound, "orchestrator", "lookup",
		fmt.Sprintf("no processing record for segment %d/%d", courseID, segmentID), nil)
}

func classifyStoreErr(err error, op string) error {
	if errors.Is(err, record.ErrStatusConflict) {
		return services.Wrap(services.ErrStale, "orchestrator", op, "record changed concurrently", err)
	}
	return services.Wrap(services.ErrUnavailable, "orchestrator", op, "store write failed", err)
}
