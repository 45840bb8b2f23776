package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lectern/internal/dispatch"
	"lectern/internal/logging"
	"lectern/internal/pipeline"
	"lectern/internal/record"
	"lectern/internal/services"
	"lectern/internal/testsupport"
)

func TestDispatchAudioFlipsToProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := dispatch.New(store, cfg, nil, logging.NewNop())

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	job, err := d.Dispatch(ctx, rec, record.StageAudioExtraction, pipeline.LaneHigh, dispatch.Options{})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if job.Lane != cfg.Queues.HighLane {
		t.Fatalf("expected high lane %q, got %q", cfg.Queues.HighLane, job.Lane)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["job_id"] != float64(10) {
		t.Fatalf("payload job_id = %v, want segment id", payload["job_id"])
	}
	if payload["quality"] != cfg.Pipeline.AudioQuality {
		t.Fatalf("payload quality = %v, want configured default", payload["quality"])
	}
	// The worker resolves media from the catalog by job_id; the payload
	// carries no media reference of its own.
	for key := range payload {
		switch key {
		case "job_id", "course_id", "quality", "force_reextraction":
		default:
			t.Fatalf("unexpected payload field %q", key)
		}
	}

	stored, err := store.Get(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != record.StatusProcessing {
		t.Fatalf("expected processing after dispatch, got %s", stored.Status)
	}
	if stored.AudioStartedAt != nil {
		t.Fatal("dispatch must not stamp started_at")
	}
}

func TestDispatchTranscriptionRequiresAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := dispatch.New(store, cfg, nil, logging.NewNop())

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 1, 20)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	rec.Status = record.StatusAudioExtracted

	_, err = d.Dispatch(ctx, rec, record.StageTranscription, pipeline.LaneHigh, dispatch.Options{})
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition without audio, got %v", err)
	}
}

func TestDispatchTranscriptionPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := dispatch.New(store, cfg, nil, logging.NewNop())

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 7, 30)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	rec.Status = record.StatusApproved
	rec.AudioPath = "audio/7/30.mp3"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	job, err := d.Dispatch(ctx, rec, record.StageTranscription, pipeline.LaneHigh, dispatch.Options{AutoPreset: true})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["audio_path"] != "audio/7/30.mp3" {
		t.Fatalf("payload audio_path = %v", payload["audio_path"])
	}
	if payload["auto_preset"] != true {
		t.Fatal("auto preset flag not carried")
	}
	if payload["preset"] != "" {
		t.Fatalf("auto preset dispatch must not pin a preset, got %v", payload["preset"])
	}
	if payload["transcript_key"] == "" {
		t.Fatal("transcript key missing")
	}

	stored, err := store.Get(ctx, 7, 30)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != record.StatusTranscribing {
		t.Fatalf("expected transcribing, got %s", stored.Status)
	}
}

func TestDispatchConflictLeavesRecordRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := dispatch.New(store, cfg, nil, logging.NewNop())

	ctx := context.Background()
	rec, err := store.Ensure(ctx, 1, 40)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	completedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec.AudioCompletedAt = &completedAt
	rec.AudioSeconds = 90
	rec.ErrorMessage = "prior failure"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Simulate a concurrent transition having moved the record on.
	concurrent := *rec
	concurrent.Status = record.StatusFailed
	if err := store.Update(ctx, &concurrent); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_, err = d.Dispatch(ctx, rec, record.StageAudioExtraction, pipeline.LaneHigh, dispatch.Options{})
	if !errors.Is(err, record.ErrStatusConflict) {
		t.Fatalf("expected status conflict to surface, got %v", err)
	}
	if rec.Status != record.StatusReady {
		t.Fatalf("failed dispatch must restore prior in-memory status, got %s", rec.Status)
	}
	if rec.AudioCompletedAt == nil || !rec.AudioCompletedAt.Equal(completedAt) || rec.AudioSeconds != 90 {
		t.Fatal("failed dispatch must restore the stage completion stamp")
	}
	if rec.ErrorMessage != "prior failure" {
		t.Fatalf("failed dispatch must restore the error message, got %q", rec.ErrorMessage)
	}

	jobs, err := store.JobsForSegment(ctx, 1, 40)
	if err != nil {
		t.Fatalf("JobsForSegment failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("conflicted dispatch must not enqueue, got %d jobs", len(jobs))
	}
}
