package delta

import (
	"testing"

	"github.com/repoindex/semindex/internal/hashutil"
	"github.com/repoindex/semindex/internal/storage"
)

func newDBForTest(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func hashText(s string) string {
	return hashutil.HashText(s)
}
