package testsupport

import (
	"testing"

	"transcodehost/internal/config"
	"transcodehost/internal/history"
)

// MustOpenHistory opens the launch history store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
