package testsupport

import (
	"path/filepath"
	"testing"

	"lectern/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAutoTranscribe enables automatic transcription chaining.
func WithAutoTranscribe() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.AutoTranscribe = true
	}
}

// WithTerminology enables the terminology stage.
func WithTerminology() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.TerminologyEnabled = true
	}
}

// WithClassifierDisabled turns off non-speech detection.
func WithClassifierDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Classifier.Enabled = false
	}
}
