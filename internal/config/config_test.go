package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lectern/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Queues.HighLane != "high" || cfg.Queues.DefaultLane != "default" {
		t.Fatalf("unexpected lane defaults: %+v", cfg.Queues)
	}
	if cfg.Pipeline.TerminologyEnabled {
		t.Fatal("terminology should default to disabled")
	}
	if !cfg.Classifier.Enabled {
		t.Fatal("classifier should default to enabled")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[pipeline]",
		"auto_transcribe = true",
		"terminology_enabled = true",
		`transcript_key_prefix = "/keys/transcripts/"`,
		"[queues]",
		`high_lane = "urgent"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path, got %q exists=%v", resolved, exists)
	}
	if !cfg.Pipeline.AutoTranscribe || !cfg.Pipeline.TerminologyEnabled {
		t.Fatalf("pipeline overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.TranscriptKeyPrefix != "keys/transcripts" {
		t.Fatalf("expected trimmed key prefix, got %q", cfg.Pipeline.TranscriptKeyPrefix)
	}
	if cfg.Queues.HighLane != "urgent" {
		t.Fatalf("queue override not applied: %+v", cfg.Queues)
	}
}

func TestValidateRejectsIdenticalLanes(t *testing.T) {
	cfg := config.Default()
	cfg.Queues.HighLane = "default"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for identical lane names")
	}
}

func TestValidateRejectsCacheWithoutURL(t *testing.T) {
	cfg := config.Default()
	cfg.StatusCache.Enabled = true
	cfg.StatusCache.RedisURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled cache without redis url")
	}
}

func TestValidateRejectsSilenceRatioOutOfRange(t *testing.T) {
	cfg := config.Default()
	cfg.Classifier.MaxSilenceRatio = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for silence ratio above 1")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when file exists")
	}
}
