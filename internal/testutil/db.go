// Package testutil provides shared test helpers: a migrated throwaway
// database and a fixture builder for segments, grants, and routings.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"routecard/internal/infrastructure/sqlite"
)

// NewTestDB creates a fully migrated routing database in a temp directory.
// The database is closed automatically when the test finishes.
func NewTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routecard.db")
	db, err := sqlite.NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
