package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const maxChunkBatchRows = 150 // 150 rows * 6 params = 900 bound parameters

// chunkColumns is the 6-column projection the batch insert ceiling is
// computed against (150 rows * 6 params = 900 bound parameters). Token
// estimate and overlap bookkeeping are written per-row afterward, inside
// the same transaction, since they are secondary metadata derived from
// content rather than identity-defining fields.
var chunkColumns = []string{
	"id", "file_id", "chunk_index", "content", "start_char", "end_char",
}

// InsertChunks replaces (via delete-then-insert) all chunks for fileID
// with the given ordered chunks, minting a UUID per chunk. Returns the
// minted ids in chunk order.
func InsertChunks(db *DB, fileID string, chunks []Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	ids := make([]string, len(chunks))
	assigned := make([]Chunk, len(chunks))
	for i, c := range chunks {
		id := uuid.NewString()
		c.ID = id
		c.FileID = fileID
		c.ChunkIndex = i
		ids[i] = id
		assigned[i] = c
	}

	err := withTransaction(db, func(tx *sql.Tx) error {
		if err := deleteChunksByFileTx(tx, fileID); err != nil {
			return err
		}
		for start := 0; start < len(assigned); start += maxChunkBatchRows {
			end := start + maxChunkBatchRows
			if end > len(assigned) {
				end = len(assigned)
			}
			if err := insertChunksTx(tx, assigned[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("InsertChunks", err)
	}
	return ids, nil
}

func insertChunksTx(tx *sql.Tx, chunks []Chunk) error {
	primary := sq.Insert("chunks").Columns(chunkColumns...)
	for _, c := range chunks {
		primary = primary.Values(c.ID, c.FileID, c.ChunkIndex, c.Content, c.StartChar, c.EndChar)
	}
	if _, err := primary.RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("inserting chunk batch of %d: %w", len(chunks), err)
	}

	update := sq.Update("chunks")
	for _, c := range chunks {
		_, err := update.
			Set("start_token_est", c.StartTokenEst).
			Set("end_token_est", c.EndTokenEst).
			Set("overlap_from_prev", c.OverlapFromPrev).
			Where(sq.Eq{"id": c.ID}).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("updating chunk token bookkeeping for %s: %w", c.ID, err)
		}
	}
	return nil
}

func deleteChunksByFileTx(tx *sql.Tx, fileID string) error {
	_, err := sq.Delete("chunks").Where(sq.Eq{"file_id": fileID}).RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("clearing existing chunks for file %s: %w", fileID, err)
	}
	return nil
}

// DeleteChunksByFile removes all chunks (and, via cascade, their
// embeddings) for a file without inserting replacements. Used by
// crash-recovery to discard incomplete artifacts from an interrupted run.
func DeleteChunksByFile(db *DB, fileID string) error {
	return withTransaction(db, func(tx *sql.Tx) error {
		return deleteChunksByFileTx(tx, fileID)
	})
}

// ListChunksByFile returns a file's chunks ordered by chunk_index.
func ListChunksByFile(db *DB, fileID string) ([]Chunk, error) {
	rows, err := sq.Select(
		"id", "file_id", "chunk_index", "content", "start_char", "end_char",
		"start_token_est", "end_token_est", "overlap_from_prev",
	).
		From("chunks").
		Where(sq.Eq{"file_id": fileID}).
		OrderBy("chunk_index ASC").
		RunWith(db.conn).
		Query()
	if err != nil {
		return nil, wrapErr("ListChunksByFile", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.FileID, &c.ChunkIndex, &c.Content, &c.StartChar, &c.EndChar,
			&c.StartTokenEst, &c.EndTokenEst, &c.OverlapFromPrev); err != nil {
			return nil, wrapErr("ListChunksByFile", err)
		}
		out = append(out, c)
	}
	return out, wrapErr("ListChunksByFile", rows.Err())
}

// CountChunksByFile reports how many chunks exist for a file, without
// loading their content.
func CountChunksByFile(db *DB, fileID string) (int, error) {
	var count int
	err := sq.Select("COUNT(*)").From("chunks").Where(sq.Eq{"file_id": fileID}).
		RunWith(db.conn).QueryRow().Scan(&count)
	return count, wrapErr("CountChunksByFile", err)
}
