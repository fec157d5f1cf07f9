package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
)

const maxEmbeddingBatchRows = 300 // 300 rows * 4 params = 1200 bound parameters

// InsertEmbeddings writes one embedding per chunk id, in the same order,
// validating every vector's length against db.Dimensions() before
// touching the store. The relational embeddings table and the chunk_vectors
// vec0 virtual table are kept in sync inside the same transaction.
func InsertEmbeddings(db *DB, chunkIDs []string, vectors [][]float32) ([]string, error) {
	if len(chunkIDs) != len(vectors) {
		return nil, wrapErr("InsertEmbeddings", fmt.Errorf("chunkIDs and vectors length mismatch: %d vs %d", len(chunkIDs), len(vectors)))
	}
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	for i, vec := range vectors {
		if len(vec) != db.dimensions {
			return nil, wrapErr("InsertEmbeddings", fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(vec), db.dimensions))
		}
	}

	ids := make([]string, len(chunkIDs))
	now := time.Now().UTC().Format(time.RFC3339)

	err := withTransaction(db, func(tx *sql.Tx) error {
		for start := 0; start < len(chunkIDs); start += maxEmbeddingBatchRows {
			end := start + maxEmbeddingBatchRows
			if end > len(chunkIDs) {
				end = len(chunkIDs)
			}
			batchIDs, err := insertEmbeddingsTx(tx, chunkIDs[start:end], vectors[start:end], now)
			if err != nil {
				return err
			}
			copy(ids[start:end], batchIDs)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("InsertEmbeddings", err)
	}
	return ids, nil
}

func insertEmbeddingsTx(tx *sql.Tx, chunkIDs []string, vectors [][]float32, createdAt string) ([]string, error) {
	ids := make([]string, len(chunkIDs))

	builder := sq.Insert("embeddings").Columns("id", "chunk_id", "vector", "created_at")
	for i, chunkID := range chunkIDs {
		id := uuid.NewString()
		ids[i] = id
		builder = builder.Values(id, chunkID, serializeVector(vectors[i]), createdAt)
	}
	if _, err := builder.RunWith(tx).Exec(); err != nil {
		return nil, fmt.Errorf("inserting embedding batch of %d: %w", len(chunkIDs), err)
	}

	if err := syncVectorTableTx(tx, chunkIDs, vectors); err != nil {
		return nil, err
	}
	return ids, nil
}

// syncVectorTableTx upserts chunk_vectors entries. vec0 virtual tables
// don't support INSERT OR REPLACE, so existing rows are deleted first.
func syncVectorTableTx(tx *sql.Tx, chunkIDs []string, vectors [][]float32) error {
	deleteStmt, err := tx.Prepare(`DELETE FROM chunk_vectors WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("preparing vector delete: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.Prepare(`INSERT INTO chunk_vectors (chunk_id, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing vector insert: %w", err)
	}
	defer insertStmt.Close()

	for i, chunkID := range chunkIDs {
		if _, err := deleteStmt.Exec(chunkID); err != nil {
			return fmt.Errorf("clearing stale vector for chunk %s: %w", chunkID, err)
		}
		packed, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("serializing vector for chunk %s: %w", chunkID, err)
		}
		if _, err := insertStmt.Exec(chunkID, packed); err != nil {
			return fmt.Errorf("inserting vector for chunk %s: %w", chunkID, err)
		}
	}
	return nil
}

// DeleteEmbeddingsByChunkIDs removes embeddings (relational and vector
// index) for the given chunks. Used when a file's chunks are regenerated.
func DeleteEmbeddingsByChunkIDs(db *DB, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	return withTransaction(db, func(tx *sql.Tx) error {
		if _, err := sq.Delete("embeddings").Where(sq.Eq{"chunk_id": chunkIDs}).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("deleting embeddings: %w", err)
		}
		if _, err := sq.Delete("chunk_vectors").Where(sq.Eq{"chunk_id": chunkIDs}).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("deleting vector entries: %w", err)
		}
		return nil
	})
}

// HasEmbedding reports whether a chunk already has an embedding, used by
// the resume-mode delta analysis to classify a file as "already processed".
func HasEmbedding(db *DB, chunkID string) (bool, error) {
	var count int
	err := sq.Select("COUNT(*)").From("embeddings").Where(sq.Eq{"chunk_id": chunkID}).
		RunWith(db.conn).QueryRow().Scan(&count)
	return count > 0, wrapErr("HasEmbedding", err)
}
