package record_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"lectern/internal/record"
	"lectern/internal/testsupport"
)

func TestEnsureCreatesLazily(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 1, 100)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if rec.Status != record.StatusReady {
		t.Fatalf("expected ready status, got %s", rec.Status)
	}
	if rec.ID == 0 {
		t.Fatal("expected record ID to be assigned")
	}

	again, err := store.Ensure(ctx, 1, 100)
	if err != nil {
		t.Fatalf("Ensure (second) failed: %v", err)
	}
	if again.ID != rec.ID {
		t.Fatalf("expected idempotent create, got ids %d and %d", rec.ID, again.ID)
	}
}

func TestGetReturnsNilWhenAbsent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	rec, err := store.Get(context.Background(), 9, 9)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for absent record, got %#v", rec)
	}
}

func TestUpdateRoundTripsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 1, 200)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	started := time.Now().UTC().Add(-2 * time.Minute)
	ratio := 0.42
	rec.Status = record.StatusAudioExtracted
	rec.AudioPath = "audio/1/200.mp3"
	rec.AudioDurationSeconds = 1800
	rec.AudioSizeBytes = 12_345_678
	rec.AudioSilenceRatio = &ratio
	rec.AudioStartedAt = &started
	rec.SetStageCompleted(record.StageAudioExtraction, time.Now().UTC())
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.Get(ctx, 1, 200)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Status != record.StatusAudioExtracted {
		t.Fatalf("expected audio_extracted, got %s", fetched.Status)
	}
	if fetched.AudioPath != "audio/1/200.mp3" {
		t.Fatalf("unexpected audio path %q", fetched.AudioPath)
	}
	if fetched.AudioSilenceRatio == nil || *fetched.AudioSilenceRatio != 0.42 {
		t.Fatalf("silence ratio not round-tripped: %v", fetched.AudioSilenceRatio)
	}
	if !fetched.HasAudio() {
		t.Fatal("expected HasAudio after completion stamp")
	}
	if fetched.AudioSeconds <= 0 {
		t.Fatalf("expected stored stage duration, got %f", fetched.AudioSeconds)
	}
}

func TestUpdateGuardedDetectsConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 1, 300)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	rec.Status = record.StatusProcessing
	if err := store.UpdateGuarded(ctx, rec, record.StatusReady); err != nil {
		t.Fatalf("UpdateGuarded failed: %v", err)
	}

	stale := *rec
	stale.Status = record.StatusFailed
	if err := store.UpdateGuarded(ctx, &stale, record.StatusReady); !errors.Is(err, record.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	current, err := store.Get(ctx, 1, 300)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.Status != record.StatusProcessing {
		t.Fatalf("conflicting write mutated record: %s", current.Status)
	}
}

func TestEnqueueAndTransitionAtomicity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 2, 400)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	job := &record.Job{
		ID:          uuid.NewString(),
		Lane:        "high",
		Stage:       record.StageAudioExtraction,
		CourseID:    2,
		SegmentID:   400,
		PayloadJSON: `{"job_id":400}`,
		CreatedAt:   time.Now().UTC(),
	}
	rec.Status = record.StatusProcessing
	if err := store.EnqueueAndTransition(ctx, rec, job, record.StatusReady); err != nil {
		t.Fatalf("EnqueueAndTransition failed: %v", err)
	}

	jobs, err := store.JobsForSegment(ctx, 2, 400)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Fatalf("expected enqueued job, got %#v", jobs)
	}

	// A second dispatch with the stale guard must leave no job behind.
	dup := *rec
	dupJob := *job
	dupJob.ID = uuid.NewString()
	if err := store.EnqueueAndTransition(ctx, &dup, &dupJob, record.StatusReady); !errors.Is(err, record.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	jobs, err = store.JobsForSegment(ctx, 2, 400)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("conflicted dispatch leaked a job: %d entries", len(jobs))
	}
}

func TestClaimNextJobPrefersHighLane(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	older := time.Now().UTC().Add(-time.Minute)

	for i, lane := range []string{"default", "high"} {
		rec, err := store.Ensure(ctx, 3, int64(500+i))
		if err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
		rec.Status = record.StatusProcessing
		job := &record.Job{
			ID:          uuid.NewString(),
			Lane:        lane,
			Stage:       record.StageAudioExtraction,
			CourseID:    3,
			SegmentID:   rec.SegmentID,
			PayloadJSON: "{}",
			CreatedAt:   older.Add(time.Duration(i) * time.Second),
		}
		if err := store.EnqueueAndTransition(ctx, rec, job, record.StatusReady); err != nil {
			t.Fatalf("EnqueueAndTransition failed: %v", err)
		}
	}

	claimed, err := store.ClaimNextJob(ctx, "high", "default")
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed == nil || claimed.Lane != "high" {
		t.Fatalf("expected high-lane job first, got %#v", claimed)
	}

	claimed, err = store.ClaimNextJob(ctx, "high", "default")
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed == nil || claimed.Lane != "default" {
		t.Fatalf("expected default-lane job second, got %#v", claimed)
	}

	claimed, err = store.ClaimNextJob(ctx, "high", "default")
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty queue, got %#v", claimed)
	}
}

func TestPurgeSegmentJobsRemovesBothTables(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 4, 600)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	rec.Status = record.StatusProcessing
	job := &record.Job{
		ID:          uuid.NewString(),
		Lane:        "default",
		Stage:       record.StageAudioExtraction,
		CourseID:    4,
		SegmentID:   600,
		PayloadJSON: "{}",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.EnqueueAndTransition(ctx, rec, job, record.StatusReady); err != nil {
		t.Fatalf("EnqueueAndTransition failed: %v", err)
	}
	failed := &record.Job{
		ID:          uuid.NewString(),
		Lane:        "default",
		Stage:       record.StageTranscription,
		CourseID:    4,
		SegmentID:   600,
		PayloadJSON: "{}",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.RecordFailedJob(ctx, failed, "worker crashed"); err != nil {
		t.Fatalf("RecordFailedJob failed: %v", err)
	}

	pending, failedCount, err := store.PurgeSegmentJobs(ctx, 4, 600)
	if err != nil {
		t.Fatalf("PurgeSegmentJobs failed: %v", err)
	}
	if pending != 1 || failedCount != 1 {
		t.Fatalf("expected 1 pending and 1 failed purged, got %d and %d", pending, failedCount)
	}

	jobs, err := store.JobsForSegment(ctx, 4, 600)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no remaining jobs, got %d", len(jobs))
	}
}

func TestSweepOrphanedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 5, 700)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	rec.Status = record.StatusProcessing
	job := &record.Job{
		ID:          uuid.NewString(),
		Lane:        "default",
		Stage:       record.StageAudioExtraction,
		CourseID:    5,
		SegmentID:   700,
		PayloadJSON: "{}",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.EnqueueAndTransition(ctx, rec, job, record.StatusReady); err != nil {
		t.Fatalf("EnqueueAndTransition failed: %v", err)
	}

	// Terminal record leaves the job orphaned.
	rec.Status = record.StatusFailed
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	orphaned, expired, err := store.SweepOrphanedJobs(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("SweepOrphanedJobs failed: %v", err)
	}
	if orphaned != 1 {
		t.Fatalf("expected 1 orphaned job swept, got %d", orphaned)
	}
	if expired != 0 {
		t.Fatalf("expected no expired failed jobs, got %d", expired)
	}
}

func TestHealthAggregatesCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i, status := range []record.Status{record.StatusReady, record.StatusTranscribing, record.StatusCompleted, record.StatusFailed} {
		rec, err := store.Ensure(ctx, 6, int64(800+i))
		if err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
		rec.Status = status
		if err := store.Update(ctx, rec); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 4 || health.Ready != 1 || health.InFlight != 1 || health.Completed != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}
