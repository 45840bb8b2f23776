package reconcile_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lectern/internal/classify"
	"lectern/internal/config"
	"lectern/internal/dispatch"
	"lectern/internal/logging"
	"lectern/internal/pipeline"
	"lectern/internal/reconcile"
	"lectern/internal/record"
	"lectern/internal/services"
	"lectern/internal/testsupport"
)

func newReconciler(t *testing.T, cfg *config.Config) (*reconcile.Reconciler, *record.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	d := dispatch.New(store, cfg, nil, logging.NewNop())
	policy := pipeline.Policy{
		AutoTranscribe:     cfg.Pipeline.AutoTranscribe,
		TerminologyEnabled: cfg.Pipeline.TerminologyEnabled,
	}
	r := reconcile.New(store, d, classify.New(cfg.Classifier), nil, policy, logging.NewNop())
	return r, store
}

func lectureAudio() reconcile.ResponseData {
	return reconcile.ResponseData{
		AudioPath:       "audio/1/1.mp3",
		DurationSeconds: 1800,
		SizeBytes:       24 * 1024 * 1024,
	}
}

func inFlight(t *testing.T, store *record.Store, courseID, segmentID int64, stage record.Stage) *record.Record {
	t.Helper()
	ctx := context.Background()
	rec, err := store.Ensure(ctx, courseID, segmentID)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	rec.Status = record.InFlightStatus(stage)
	if stage != record.StageAudioExtraction {
		rec.AudioPath = "audio/prior.mp3"
		rec.AudioDurationSeconds = 1800
		rec.AudioSizeBytes = 24 * 1024 * 1024
	}
	if stage == record.StageTerminology {
		rec.TranscriptPath = "transcripts/prior.json"
	}
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return rec
}

func TestReconcileUnknownSegment(t *testing.T) {
	r, _ := newReconciler(t, testsupport.NewConfig(t))
	_, err := r.Reconcile(context.Background(), 1, 999, reconcile.Report{
		Stage:  record.StageAudioExtraction,
		Status: "completed",
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReconcileRejectsMalformedReport(t *testing.T) {
	r, _ := newReconciler(t, testsupport.NewConfig(t))
	_, err := r.Reconcile(context.Background(), 1, 1, reconcile.Report{Stage: "ripping", Status: "completed"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	_, err = r.Reconcile(context.Background(), 1, 1, reconcile.Report{Stage: record.StageTranscription, Status: "queued"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStartedPingStampsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 10, record.StageAudioExtraction)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 10, reconcile.Report{Stage: record.StageAudioExtraction, Status: "started"})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !outcome.Applied {
		t.Fatal("first start ping must apply")
	}

	stored, err := store.Get(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first := stored.AudioStartedAt
	if first == nil {
		t.Fatal("started_at not stamped")
	}

	outcome, err = r.Reconcile(ctx, 1, 10, reconcile.Report{Stage: record.StageAudioExtraction, Status: "started"})
	if err != nil {
		t.Fatalf("replayed ping failed: %v", err)
	}
	if outcome.Applied {
		t.Fatal("replayed start ping must be a no-op")
	}
	stored, err = store.Get(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.AudioStartedAt.Equal(*first) {
		t.Fatal("replayed ping must not move started_at")
	}
}

func TestExtractionCompletedAwaitsApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 20, record.StageAudioExtraction)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 20, reconcile.Report{
		Stage:  record.StageAudioExtraction,
		Status: "completed",
		Data:   lectureAudio(),
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !outcome.Applied || outcome.Status != record.StatusAudioExtracted {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	stored, err := store.Get(ctx, 1, 20)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.AudioPath != "audio/1/1.mp3" || !stored.HasAudio() {
		t.Fatalf("artifacts not persisted: %+v", stored)
	}
	if stored.ContentKind != record.ContentKindLecture {
		t.Fatalf("expected lecture verdict, got %q", stored.ContentKind)
	}

	jobs, err := store.JobsForSegment(ctx, 1, 20)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatal("gated pipeline must not auto-dispatch transcription")
	}
}

func TestExtractionCompletedAutoTranscribes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoTranscribe())
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 30, record.StageAudioExtraction)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 30, reconcile.Report{
		Stage:  record.StageAudioExtraction,
		Status: "completed",
		Data:   lectureAudio(),
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != record.StatusTranscribing {
		t.Fatalf("expected transcribing after auto continuation, got %s", outcome.Status)
	}

	jobs, err := store.JobsForSegment(ctx, 1, 30)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Stage != record.StageTranscription {
		t.Fatalf("expected one transcription job, got %#v", jobs)
	}
	if jobs[0].Lane != cfg.Queues.DefaultLane {
		t.Fatalf("continuation must use the default lane, got %q", jobs[0].Lane)
	}
}

func TestExtractionCompletedReplayIsNoOp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 40, record.StageAudioExtraction)

	ctx := context.Background()
	report := reconcile.Report{Stage: record.StageAudioExtraction, Status: "completed", Data: lectureAudio()}
	if _, err := r.Reconcile(ctx, 1, 40, report); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	outcome, err := r.Reconcile(ctx, 1, 40, report)
	if err != nil {
		t.Fatalf("replay must not error: %v", err)
	}
	if outcome.Applied {
		t.Fatal("replay must be a no-op")
	}
	if outcome.Status != record.StatusAudioExtracted {
		t.Fatalf("replay must disclose current status, got %s", outcome.Status)
	}
}

func TestCallbackBeforeDispatchIsStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r, store := newReconciler(t, cfg)
	ctx := context.Background()
	if _, err := store.Ensure(ctx, 1, 50); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	_, err := r.Reconcile(ctx, 1, 50, reconcile.Report{
		Stage:  record.StageAudioExtraction,
		Status: "completed",
		Data:   lectureAudio(),
	})
	if !errors.Is(err, services.ErrStale) {
		t.Fatalf("expected ErrStale for callback before dispatch, got %v", err)
	}
}

func TestExtractionFailureIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 60, record.StageAudioExtraction)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 60, reconcile.Report{
		Stage:  record.StageAudioExtraction,
		Status: "failed",
		Data:   reconcile.ResponseData{Error: "source media unreadable"},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != record.StatusFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}

	stored, err := store.Get(ctx, 1, 60)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.ErrorMessage != "source media unreadable" {
		t.Fatalf("error message not stored: %q", stored.ErrorMessage)
	}
}

func TestFailureReportStatusIsCaseInsensitive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 61, record.StageAudioExtraction)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 61, reconcile.Report{
		Stage:  record.StageAudioExtraction,
		Status: " Failed ",
		Data:   reconcile.ResponseData{Error: "source media unreadable"},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != record.StatusFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}

	stored, err := store.Get(ctx, 1, 61)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.ErrorMessage != "source media unreadable" {
		t.Fatalf("error message not stored: %q", stored.ErrorMessage)
	}
	if stored.AudioCompletedAt != nil {
		t.Fatal("failure must not stamp stage completion")
	}
}

func TestTranscriptionCompletedFinishesWithoutTerminology(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 70, record.StageTranscription)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 70, reconcile.Report{
		Stage:  record.StageTranscription,
		Status: "completed",
		Data: reconcile.ResponseData{
			TranscriptPath: "transcripts/1/70.json",
			SegmentCount:   42,
		},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != record.StatusCompleted {
		t.Fatalf("terminology disabled must complete, got %s", outcome.Status)
	}

	stored, err := store.Get(ctx, 1, 70)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.TranscriptSegmentCount != 42 || !stored.HasTranscript() {
		t.Fatalf("transcript artifacts not persisted: %+v", stored)
	}
}

func TestTranscriptionCompletedContinuesToTerminology(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTerminology())
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 80, record.StageTranscription)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 80, reconcile.Report{
		Stage:  record.StageTranscription,
		Status: "completed",
		Data:   reconcile.ResponseData{TranscriptPath: "transcripts/1/80.json"},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != record.StatusProcessingTerminology {
		t.Fatalf("expected terminology in flight, got %s", outcome.Status)
	}

	jobs, err := store.JobsForSegment(ctx, 1, 80)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Stage != record.StageTerminology {
		t.Fatalf("expected terminology job, got %#v", jobs)
	}
}

func TestTerminologyFailureIsNonFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTerminology())
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 90, record.StageTerminology)

	ctx := context.Background()
	outcome, err := r.Reconcile(ctx, 1, 90, reconcile.Report{
		Stage:  record.StageTerminology,
		Status: "failed",
		Data:   reconcile.ResponseData{Error: "glossary service timeout"},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != record.StatusCompleted {
		t.Fatalf("terminology failure must still complete, got %s", outcome.Status)
	}

	stored, err := store.Get(ctx, 1, 90)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.TerminologyError != "glossary service timeout" {
		t.Fatalf("terminology error not stored: %q", stored.TerminologyError)
	}
	if stored.ErrorMessage != "" {
		t.Fatalf("non-fatal failure must not set error_message, got %q", stored.ErrorMessage)
	}
}

func TestPerformanceAudioSkipsTranscription(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoTranscribe())
	r, store := newReconciler(t, cfg)
	inFlight(t, store, 1, 100, record.StageAudioExtraction)

	ctx := context.Background()
	// Eight seconds of audio is under the duration floor.
	outcome, err := r.Reconcile(ctx, 1, 100, reconcile.Report{
		Stage:  record.StageAudioExtraction,
		Status: "completed",
		Data: reconcile.ResponseData{
			AudioPath:       "audio/1/100.mp3",
			DurationSeconds: 8,
			SizeBytes:       256 * 1024,
		},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != record.StatusCompleted {
		t.Fatalf("performance content must complete directly, got %s", outcome.Status)
	}

	stored, err := store.Get(ctx, 1, 100)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.ContentKind != record.ContentKindPerformance {
		t.Fatalf("expected performance verdict, got %q", stored.ContentKind)
	}
	if stored.SkipReason == "" {
		t.Fatal("skip reason must be recorded")
	}
	if !strings.Contains(stored.TranscriptJSON, "transcription skipped") {
		t.Fatalf("placeholder transcript missing: %q", stored.TranscriptJSON)
	}

	jobs, err := store.JobsForSegment(ctx, 1, 100)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatal("performance verdict must suppress transcription dispatch")
	}
}
