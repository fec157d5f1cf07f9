package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// InsertRepository creates a repository row, minting a UUID for its id.
// Returns the minted id.
func InsertRepository(db *DB, repo Repository) (string, error) {
	id := uuid.NewString()

	metaJSON, err := json.Marshal(repo.Metadata)
	if err != nil {
		return "", wrapErr("InsertRepository", err)
	}

	_, err = sq.Insert("repositories").
		Columns("id", "name", "path", "commit_tag", "ingested_at", "metadata").
		Values(id, repo.Name, repo.Path, repo.CommitTag, repo.IngestedAt.UTC().Format(time.RFC3339), string(metaJSON)).
		RunWith(db.conn).
		Exec()
	if err != nil {
		return "", wrapErr("InsertRepository", fmt.Errorf("inserting %s: %w", repo.Path, err))
	}
	return id, nil
}

// GetRepositoryByPath returns the repository registered at path, or
// sql.ErrNoRows if none exists.
func GetRepositoryByPath(db *DB, path string) (Repository, error) {
	row := sq.Select("id", "name", "path", "commit_tag", "ingested_at", "metadata").
		From("repositories").
		Where(sq.Eq{"path": path}).
		RunWith(db.conn).
		QueryRow()
	return scanRepository(row)
}

// GetRepository returns the repository by id.
func GetRepository(db *DB, id string) (Repository, error) {
	row := sq.Select("id", "name", "path", "commit_tag", "ingested_at", "metadata").
		From("repositories").
		Where(sq.Eq{"id": id}).
		RunWith(db.conn).
		QueryRow()
	return scanRepository(row)
}

func scanRepository(row sq.RowScanner) (Repository, error) {
	var repo Repository
	var ingestedAt, metaJSON string
	if err := row.Scan(&repo.ID, &repo.Name, &repo.Path, &repo.CommitTag, &ingestedAt, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return Repository{}, err
		}
		return Repository{}, wrapErr("scanRepository", err)
	}
	parsed, err := time.Parse(time.RFC3339, ingestedAt)
	if err != nil {
		return Repository{}, wrapErr("scanRepository", err)
	}
	repo.IngestedAt = parsed
	if err := json.Unmarshal([]byte(metaJSON), &repo.Metadata); err != nil {
		return Repository{}, wrapErr("scanRepository", err)
	}
	return repo, nil
}

// ListRepositories returns every registered repository.
func ListRepositories(db *DB) ([]Repository, error) {
	rows, err := sq.Select("id", "name", "path", "commit_tag", "ingested_at", "metadata").
		From("repositories").
		OrderBy("name").
		RunWith(db.conn).
		Query()
	if err != nil {
		return nil, wrapErr("ListRepositories", err)
	}
	defer rows.Close()

	var out []Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, wrapErr("ListRepositories", err)
		}
		out = append(out, repo)
	}
	return out, wrapErr("ListRepositories", rows.Err())
}

// UpdateRepositoryMetadata merges updates into the repository's existing
// metadata bag and persists the result. Used by the ingest orchestrator
// to record last_ingested/file_count after a run.
func UpdateRepositoryMetadata(db *DB, id string, updates map[string]string) error {
	repo, err := GetRepository(db, id)
	if err != nil {
		return err
	}
	if repo.Metadata == nil {
		repo.Metadata = map[string]string{}
	}
	for k, v := range updates {
		repo.Metadata[k] = v
	}

	metaJSON, err := json.Marshal(repo.Metadata)
	if err != nil {
		return wrapErr("UpdateRepositoryMetadata", err)
	}

	_, err = sq.Update("repositories").
		Set("metadata", string(metaJSON)).
		Where(sq.Eq{"id": id}).
		RunWith(db.conn).
		Exec()
	return wrapErr("UpdateRepositoryMetadata", err)
}

// DeleteRepository removes the repository and, via ON DELETE CASCADE,
// its files, chunks, and embeddings.
func DeleteRepository(db *DB, id string) error {
	_, err := sq.Delete("repositories").Where(sq.Eq{"id": id}).RunWith(db.conn).Exec()
	return wrapErr("DeleteRepository", err)
}
