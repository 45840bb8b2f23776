package testsupport

import (
	"testing"

	"lectern/internal/config"
	"lectern/internal/record"
)

// MustOpenStore opens the coordinator store for a test config and closes it
// on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *record.Store {
	t.Helper()

	store, err := record.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
