package testsupport

import (
	"testing"

	"loom/internal/checkpoint"
	"loom/internal/config"
)

// MustOpenStore opens a checkpoint store for the given config and registers
// cleanup to close it when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("open checkpoint store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close checkpoint store: %v", err)
		}
	})
	return store
}
