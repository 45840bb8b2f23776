// Package reconcile applies worker callbacks to processing records. Every
// callback is a short read-modify-write guarded by an optimistic
// compare-and-swap on status, so a callback racing a manual action loses
// cleanly instead of corrupting the record. Delivery is at-least-once:
// replays of an already-applied callback are accepted as no-ops.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lectern/internal/classify"
	"lectern/internal/dispatch"
	"lectern/internal/logging"
	"lectern/internal/pipeline"
	"lectern/internal/record"
	"lectern/internal/services"
	"lectern/internal/statuscache"
)

// Reconciler maps callbacks onto state machine events and carries out the
// resulting decisions against the store.
type Reconciler struct {
	store      *record.Store
	dispatcher *dispatch.Dispatcher
	classifier *classify.Classifier
	cache      *statuscache.Cache
	policy     pipeline.Policy
	logger     *slog.Logger
	now        func() time.Time
}

// New wires a reconciler. The classifier may be nil when disabled.
func New(store *record.Store, dispatcher *dispatch.Dispatcher, classifier *classify.Classifier, cache *statuscache.Cache, policy pipeline.Policy, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		store:      store,
		dispatcher: dispatcher,
		classifier: classifier,
		cache:      cache,
		policy:     policy,
		logger:     logging.NewComponentLogger(logger, "reconcile"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile applies a worker report to the segment's record and returns the
// record's authoritative status. Duplicates return Outcome{Applied: false}
// with no error; stale or illegal reports return the classified error with
// the current status attached for resynchronization.
func (r *Reconciler) Reconcile(ctx context.Context, courseID, segmentID int64, report Report) (Outcome, error) {
	if err := report.Validate(); err != nil {
		return Outcome{}, err
	}
	// Workers are loose about casing; everything downstream compares the
	// canonical form.
	report.Status = strings.ToLower(strings.TrimSpace(report.Status))

	rec, err := r.store.Get(ctx, courseID, segmentID)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrUnavailable, "reconcile", "lookup", "load record", err)
	}
	if rec == nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, "reconcile", "lookup",
			fmt.Sprintf("no processing record for segment %d/%d", courseID, segmentID), nil)
	}

	ev, ok := pipeline.StageEvent(report.Stage, report.Status)
	if !ok {
		return Outcome{Status: rec.Status}, services.Wrap(services.ErrValidation, "reconcile", "report", "unmappable report", nil)
	}

	decision, err := pipeline.Decide(rec.Status, ev, r.policy)
	if err != nil {
		if errors.Is(err, services.ErrAlreadySatisfied) {
			r.logger.InfoContext(ctx, "duplicate callback accepted",
				logging.Int64(logging.FieldCourseID, courseID),
				logging.Int64(logging.FieldSegmentID, segmentID),
				logging.String(logging.FieldStage, string(report.Stage)),
				logging.String("report_status", report.Status))
			return Outcome{Applied: false, Status: rec.Status}, nil
		}
		return Outcome{Status: rec.Status}, err
	}

	switch {
	case decision.StampStart != "":
		return r.applyStart(ctx, rec, decision)
	case report.Status == "failed" || decision.TerminologyFailed:
		return r.applyFailure(ctx, rec, report, decision)
	default:
		return r.applyCompletion(ctx, rec, report, decision)
	}
}

// applyStart stamps the stage's started_at. First ping wins; replays are
// no-ops without a store write.
func (r *Reconciler) applyStart(ctx context.Context, rec *record.Record, decision pipeline.Decision) (Outcome, error) {
	if !rec.SetStageStarted(decision.StampStart, r.now()) {
		return Outcome{Applied: false, Status: rec.Status}, nil
	}
	if err := r.store.UpdateGuarded(ctx, rec, rec.Status); err != nil {
		return Outcome{Status: rec.Status}, classifyStoreErr(err, "stamp stage start")
	}
	return Outcome{Applied: true, Status: rec.Status}, nil
}

func (r *Reconciler) applyFailure(ctx context.Context, rec *record.Record, report Report, decision pipeline.Decision) (Outcome, error) {
	prior := rec.Status
	message := report.Data.Error
	if message == "" {
		message = fmt.Sprintf("%s worker reported failure", report.Stage)
	}

	if decision.TerminologyFailed {
		rec.Status = decision.Next
		rec.TerminologyError = message
		r.logger.WarnContext(ctx, "terminology failed, completing without terms",
			logging.Int64(logging.FieldCourseID, rec.CourseID),
			logging.Int64(logging.FieldSegmentID, rec.SegmentID),
			logging.String("error", message))
	} else {
		rec.SetFailed(message)
		r.logger.ErrorContext(ctx, "stage failed",
			logging.Int64(logging.FieldCourseID, rec.CourseID),
			logging.Int64(logging.FieldSegmentID, rec.SegmentID),
			logging.String(logging.FieldStage, string(report.Stage)),
			logging.String("error", message))
	}

	if err := r.store.UpdateGuarded(ctx, rec, prior); err != nil {
		rec.Status = prior
		return Outcome{Status: prior}, classifyStoreErr(err, "persist failure")
	}
	r.cache.SetSnapshot(ctx, rec)
	return Outcome{Applied: true, Status: rec.Status}, nil
}

func (r *Reconciler) applyCompletion(ctx context.Context, rec *record.Record, report Report, decision pipeline.Decision) (Outcome, error) {
	prior := rec.Status
	now := r.now()

	r.persistArtifacts(rec, report)
	rec.SetStageCompleted(decision.CompleteStage, now)
	rec.Status = decision.Next

	followOn := decision.Dispatch

	// Consult the classifier once, at the audio->transcription boundary. A
	// performance verdict short-circuits: placeholder transcript, no
	// transcription dispatch, record completed.
	if decision.CompleteStage == record.StageAudioExtraction {
		if verdict, skip := r.classifyAudio(ctx, rec); skip {
			rec.ContentKind = record.ContentKindPerformance
			rec.SkipReason = verdict.Reason
			rec.TranscriptJSON = placeholderTranscript(verdict)
			rec.TranscriptSegmentCount = 0
			rec.TranscriptionCompletedAt = rec.AudioCompletedAt
			rec.Status = record.StatusCompleted
			followOn = nil
		} else {
			rec.ContentKind = record.ContentKindLecture
		}
	}

	if err := r.store.UpdateGuarded(ctx, rec, prior); err != nil {
		rec.Status = prior
		return Outcome{Status: prior}, classifyStoreErr(err, "persist completion")
	}
	r.cache.SetSnapshot(ctx, rec)

	r.logger.InfoContext(ctx, "stage completed",
		logging.Int64(logging.FieldCourseID, rec.CourseID),
		logging.Int64(logging.FieldSegmentID, rec.SegmentID),
		logging.String(logging.FieldStage, string(decision.CompleteStage)),
		logging.String("status", string(rec.Status)))

	if followOn != nil {
		if _, err := r.dispatcher.Dispatch(ctx, rec, followOn.Stage, followOn.Lane, dispatch.Options{}); err != nil {
			// The record holds its post-completion status with no in-flight
			// claim, so a manual approve/redo can resume the pipeline.
			r.logger.ErrorContext(ctx, "continuation dispatch failed",
				logging.Int64(logging.FieldSegmentID, rec.SegmentID),
				logging.String(logging.FieldStage, string(followOn.Stage)),
				logging.Error(err))
			return Outcome{Applied: true, Status: rec.Status}, err
		}
	}
	return Outcome{Applied: true, Status: rec.Status}, nil
}

// persistArtifacts copies the report's stage outputs onto the record.
func (r *Reconciler) persistArtifacts(rec *record.Record, report Report) {
	data := report.Data
	switch report.Stage {
	case record.StageAudioExtraction:
		rec.AudioPath = data.AudioPath
		rec.AudioDurationSeconds = data.DurationSeconds
		rec.AudioSizeBytes = data.SizeBytes
		rec.AudioSilenceRatio = data.SilenceRatio
	case record.StageTranscription:
		rec.TranscriptPath = data.TranscriptPath
		rec.TranscriptJSON = data.TranscriptJSON
		rec.TranscriptSegmentCount = data.SegmentCount
	case record.StageTerminology:
		rec.TerminologyPath = data.TerminologyPath
		rec.TerminologyJSON = data.TerminologyJSON
		rec.TermCount = data.TermCount
	}
}

// classifyAudio runs the non-speech heuristics and logs every verdict with
// its evidence. A nil classifier passes everything through.
func (r *Reconciler) classifyAudio(ctx context.Context, rec *record.Record) (classify.Result, bool) {
	if r.classifier == nil {
		return classify.Result{Kind: classify.KindLecture}, false
	}
	verdict := r.classifier.Classify(classify.Audio{
		Path:            rec.AudioPath,
		SizeBytes:       rec.AudioSizeBytes,
		DurationSeconds: rec.AudioDurationSeconds,
		SilenceRatio:    rec.AudioSilenceRatio,
	})
	r.logger.InfoContext(ctx, "audio classified",
		logging.Int64(logging.FieldCourseID, rec.CourseID),
		logging.Int64(logging.FieldSegmentID, rec.SegmentID),
		logging.String("kind", verdict.Kind),
		logging.String("reason", verdict.Reason),
		logging.String("detail", verdict.Detail),
		logging.Int64("size_bytes", verdict.SizeBytes),
		logging.Float64("duration_seconds", verdict.DurationSec),
		logging.Float64("bitrate_kbps", verdict.BitrateKbps))
	return verdict, verdict.Performance()
}

// placeholderTranscript synthesizes the minimal transcript recorded for
// skipped non-speech content.
func placeholderTranscript(verdict classify.Result) string {
	body := map[string]any{
		"segments": []any{},
		"text":     "",
		"note":     "non-speech content, transcription skipped: " + verdict.Reason,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return `{"segments":[],"text":""}`
	}
	return string(raw)
}

func classifyStoreErr(err error, op string) error {
	if errors.Is(err, record.ErrStatusConflict) {
		return services.Wrap(services.ErrStale, "reconcile", op, "record changed concurrently", err)
	}
	return services.Wrap(services.ErrUnavailable, "reconcile", op, "store write failed", err)
}
