package hygiene_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"lectern/internal/hygiene"
	"lectern/internal/logging"
	"lectern/internal/record"
	"lectern/internal/testsupport"
)

func enqueue(t *testing.T, store *record.Store, courseID, segmentID int64) {
	t.Helper()
	ctx := context.Background()
	rec, err := store.Ensure(ctx, courseID, segmentID)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	rec.Status = record.StatusProcessing
	job := &record.Job{
		ID:          uuid.NewString(),
		Lane:        "default",
		Stage:       record.StageAudioExtraction,
		CourseID:    courseID,
		SegmentID:   segmentID,
		PayloadJSON: "{}",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.EnqueueAndTransition(ctx, rec, job, record.StatusReady); err != nil {
		t.Fatalf("EnqueueAndTransition failed: %v", err)
	}
}

func TestPurgeRemovesSegmentJobsOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := hygiene.New(store, cfg.Hygiene, logging.NewNop())

	enqueue(t, store, 1, 10)
	enqueue(t, store, 1, 11)

	ctx := context.Background()
	if err := svc.Purge(ctx, 1, 10); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	jobs, err := store.JobsForSegment(ctx, 1, 10)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("purged segment still has %d jobs", len(jobs))
	}

	other, err := store.JobsForSegment(ctx, 1, 11)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("neighboring segment lost its job: %d entries", len(other))
	}
}

func TestSweepCollectsOrphans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := hygiene.New(store, cfg.Hygiene, logging.NewNop())

	enqueue(t, store, 2, 20)

	ctx := context.Background()
	rec, err := store.Get(ctx, 2, 20)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	rec.Status = record.StatusCompleted
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	svc.Sweep(ctx)

	jobs, err := store.JobsForSegment(ctx, 2, 20)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("sweep left %d orphaned jobs", len(jobs))
	}
}
