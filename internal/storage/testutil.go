package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDB opens a fresh in-memory database with migrations applied and
// registers cleanup. dimensions sizes the chunk_vectors virtual table.
func newTestDB(t testing.TB, dimensions int) *DB {
	t.Helper()
	db, err := Open(":memory:", dimensions)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
