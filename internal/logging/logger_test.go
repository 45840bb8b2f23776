package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lectern/internal/logging"
	"lectern/internal/services"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "lectern.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("dispatched", logging.String("stage", "audio_extraction"), logging.Int64("segment_id", 42))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "dispatched") {
		t.Fatalf("expected message in output, got %q", line)
	}
	if !strings.Contains(line, "segment_id=42") {
		t.Fatalf("expected structured attr in output, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleQuotesValuesWithSpaces(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "lectern.log")

	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Warn("stage failed", logging.String("error", "audio track missing"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `error="audio track missing"`) {
		t.Fatalf("expected quoted attr, got %q", string(data))
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithSegmentID(context.Background(), 7)
	ctx = services.WithCourseID(ctx, 3)
	ctx = services.WithStage(ctx, "transcription")

	fields := logging.ContextFields(ctx)
	keys := map[string]bool{}
	for _, f := range fields {
		keys[f.Key] = true
	}
	for _, want := range []string{logging.FieldSegmentID, logging.FieldCourseID, logging.FieldStage} {
		if !keys[want] {
			t.Fatalf("expected context field %s, got %v", want, keys)
		}
	}
}
