package testutil

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nhle/homesync/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return openTestStore(t, ":memory:")
}

// NewFileStore opens a SQLiteStore at name inside dir, so several stores
// can share one database the way separate processes would.
func NewFileStore(t *testing.T, dir, name string) *store.SQLiteStore {
	t.Helper()
	return openTestStore(t, filepath.Join(dir, name))
}

func openTestStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
