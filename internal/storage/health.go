package storage

import "fmt"

// SweepResult reports how many orphaned rows a health sweep removed.
type SweepResult struct {
	FilesRemoved      int64
	ChunksRemoved     int64
	EmbeddingsRemoved int64
}

// SweepOrphans removes files with no repository, chunks with no file,
// and embeddings with no chunk (including stale chunk_vectors rows).
// This is a maintenance operation, never invoked automatically.
func SweepOrphans(db *DB) (SweepResult, error) {
	var result SweepResult

	// Cascades are switched off for the sweep so that each orphaned row is
	// removed, and counted, by its own statement below.
	if _, err := db.conn.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		return result, wrapErr("SweepOrphans", fmt.Errorf("disabling foreign keys: %w", err))
	}
	defer db.conn.Exec(`PRAGMA foreign_keys = ON`)

	res, err := db.conn.Exec(`DELETE FROM files WHERE repository_id NOT IN (SELECT id FROM repositories)`)
	if err != nil {
		return result, wrapErr("SweepOrphans", fmt.Errorf("sweeping files: %w", err))
	}
	result.FilesRemoved, _ = res.RowsAffected()

	res, err = db.conn.Exec(`DELETE FROM chunks WHERE file_id NOT IN (SELECT id FROM files)`)
	if err != nil {
		return result, wrapErr("SweepOrphans", fmt.Errorf("sweeping chunks: %w", err))
	}
	result.ChunksRemoved, _ = res.RowsAffected()

	res, err = db.conn.Exec(`DELETE FROM embeddings WHERE chunk_id NOT IN (SELECT id FROM chunks)`)
	if err != nil {
		return result, wrapErr("SweepOrphans", fmt.Errorf("sweeping embeddings: %w", err))
	}
	result.EmbeddingsRemoved, _ = res.RowsAffected()

	if _, err := db.conn.Exec(`DELETE FROM chunk_vectors WHERE chunk_id NOT IN (SELECT id FROM chunks)`); err != nil {
		return result, wrapErr("SweepOrphans", fmt.Errorf("sweeping chunk_vectors: %w", err))
	}

	return result, nil
}
