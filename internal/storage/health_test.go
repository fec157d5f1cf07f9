package storage

import "testing"

func TestSweepOrphans_RemovesRowsLeftBehindByManualDeletes(t *testing.T) {
	db := newTestDB(t, 4)
	repoID := newRepo(t, db)
	fileID := newFile(t, db, repoID, "a.go")
	chunkIDs, err := InsertChunks(db, fileID, []Chunk{{Content: "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := InsertEmbeddings(db, chunkIDs, [][]float32{{1, 2, 3, 4}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate inconsistent state by deleting parent rows directly,
	// bypassing the FK cascade the normal code paths rely on.
	if _, err := db.conn.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := db.conn.Exec(`DELETE FROM files WHERE id = ?`, fileID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := db.conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := SweepOrphans(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ChunksRemoved != 1 {
		t.Fatalf("expected 1 orphaned chunk removed, got %d", result.ChunksRemoved)
	}
	if result.EmbeddingsRemoved != 1 {
		t.Fatalf("expected 1 orphaned embedding removed, got %d", result.EmbeddingsRemoved)
	}

	chunks, err := ListChunksByFile(db, fileID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks left, got %d", len(chunks))
	}

	var vecCount int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM chunk_vectors`).Scan(&vecCount); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecCount != 0 {
		t.Fatalf("expected chunk_vectors to be swept, got %d", vecCount)
	}
}

func TestSweepOrphans_NoopOnConsistentData(t *testing.T) {
	db := newTestDB(t, 4)
	repoID := newRepo(t, db)
	fileID := newFile(t, db, repoID, "a.go")
	chunkIDs, err := InsertChunks(db, fileID, []Chunk{{Content: "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := InsertEmbeddings(db, chunkIDs, [][]float32{{1, 2, 3, 4}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := SweepOrphans(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FilesRemoved != 0 || result.ChunksRemoved != 0 || result.EmbeddingsRemoved != 0 {
		t.Fatalf("expected no-op sweep, got %+v", result)
	}
}
