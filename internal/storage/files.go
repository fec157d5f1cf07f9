package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const maxFileBatchRows = 90 // 90 rows * 11 params = 990 bound parameters

var fileColumns = []string{
	"id", "repository_id", "relative_path", "classification", "content",
	"binary_metadata", "content_hash", "size_bytes", "last_modified",
	"language", "status_metadata",
}

// InsertFile inserts a single file row, minting a UUID for its id.
func InsertFile(db *DB, f File) (string, error) {
	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := withTransaction(db, func(tx *sql.Tx) error {
		return insertFilesTx(tx, []File{withID(f, id)})
	}); err != nil {
		return "", err
	}
	return id, nil
}

func withID(f File, id string) File {
	f.ID = id
	return f
}

// InsertFiles batch-inserts files, splitting into sub-batches so the
// bound parameter count per prepared statement never exceeds the fixed
// ceiling. Each file without an ID is assigned a fresh UUID; ids are
// returned in input order.
func InsertFiles(db *DB, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	ids := make([]string, len(files))
	assigned := make([]File, len(files))
	for i, f := range files {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		assigned[i] = withID(f, id)
	}

	err := withTransaction(db, func(tx *sql.Tx) error {
		for start := 0; start < len(assigned); start += maxFileBatchRows {
			end := start + maxFileBatchRows
			if end > len(assigned) {
				end = len(assigned)
			}
			if err := insertFilesTx(tx, assigned[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("InsertFiles", err)
	}
	return ids, nil
}

func insertFilesTx(tx *sql.Tx, files []File) error {
	builder := sq.Insert("files").Columns(fileColumns...).Options("OR REPLACE")
	for _, f := range files {
		builder = builder.Values(
			f.ID, f.RepositoryID, f.RelativePath, string(f.Classification),
			f.Content, f.BinaryMetadata, f.ContentHash, f.SizeBytes,
			f.LastModified.UTC().Format(time.RFC3339), f.Language, f.StatusMetadata,
		)
	}
	_, err := builder.RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("inserting file batch of %d: %w", len(files), err)
	}
	return nil
}

// ListFileMetadata returns path/size/hash/classification metadata for
// every file in a repository, without loading content. This is the
// projection the delta analyzer uses.
func ListFileMetadata(db *DB, repositoryID string) ([]FileMetadata, error) {
	rows, err := sq.Select("id", "relative_path", "classification", "content_hash", "size_bytes", "last_modified").
		From("files").
		Where(sq.Eq{"repository_id": repositoryID}).
		RunWith(db.conn).
		Query()
	if err != nil {
		return nil, wrapErr("ListFileMetadata", err)
	}
	defer rows.Close()

	var out []FileMetadata
	for rows.Next() {
		var m FileMetadata
		var classification, lastModified string
		if err := rows.Scan(&m.ID, &m.RelativePath, &classification, &m.ContentHash, &m.SizeBytes, &lastModified); err != nil {
			return nil, wrapErr("ListFileMetadata", err)
		}
		m.Classification = Classification(classification)
		parsed, err := time.Parse(time.RFC3339, lastModified)
		if err != nil {
			return nil, wrapErr("ListFileMetadata", err)
		}
		m.LastModified = parsed
		out = append(out, m)
	}
	return out, wrapErr("ListFileMetadata", rows.Err())
}

// GetFile returns the full file row, including content.
func GetFile(db *DB, id string) (File, error) {
	row := sq.Select(fileColumns...).From("files").Where(sq.Eq{"id": id}).RunWith(db.conn).QueryRow()
	return scanFile(row)
}

// GetFileByPath returns the full file row for a (repository, path) pair.
func GetFileByPath(db *DB, repositoryID, relativePath string) (File, error) {
	row := sq.Select(fileColumns...).From("files").
		Where(sq.Eq{"repository_id": repositoryID, "relative_path": relativePath}).
		RunWith(db.conn).QueryRow()
	return scanFile(row)
}

func scanFile(row sq.RowScanner) (File, error) {
	var f File
	var classification, lastModified string
	if err := row.Scan(&f.ID, &f.RepositoryID, &f.RelativePath, &classification,
		&f.Content, &f.BinaryMetadata, &f.ContentHash, &f.SizeBytes, &lastModified,
		&f.Language, &f.StatusMetadata); err != nil {
		if err == sql.ErrNoRows {
			return File{}, err
		}
		return File{}, wrapErr("scanFile", err)
	}
	f.Classification = Classification(classification)
	parsed, err := time.Parse(time.RFC3339, lastModified)
	if err != nil {
		return File{}, wrapErr("scanFile", err)
	}
	f.LastModified = parsed
	return f, nil
}

// DeleteFile removes a file and, via ON DELETE CASCADE, its chunks and
// their embeddings.
func DeleteFile(db *DB, id string) error {
	_, err := sq.Delete("files").Where(sq.Eq{"id": id}).RunWith(db.conn).Exec()
	return wrapErr("DeleteFile", err)
}

// DeleteFiles removes multiple files by id in one statement.
func DeleteFiles(db *DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := sq.Delete("files").Where(sq.Eq{"id": ids}).RunWith(db.conn).Exec()
	return wrapErr("DeleteFiles", err)
}
