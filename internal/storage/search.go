package storage

import (
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Nearest returns the limit chunks whose stored vector minimizes cosine
// distance to queryVec, joined to file and repository context, ordered
// by ascending distance with embedding id as the tiebreaker.
func Nearest(db *DB, queryVec []float32, limit int) ([]SearchResult, error) {
	return nearest(db, queryVec, "", limit)
}

// NearestInRepository is Nearest scoped to a single repository.
func NearestInRepository(db *DB, queryVec []float32, repositoryID string, limit int) ([]SearchResult, error) {
	return nearest(db, queryVec, repositoryID, limit)
}

func nearest(db *DB, queryVec []float32, repositoryID string, limit int) ([]SearchResult, error) {
	if len(queryVec) != db.dimensions {
		return nil, wrapErr("nearest", fmt.Errorf("query vector has dimension %d, expected %d", len(queryVec), db.dimensions))
	}

	packed, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, wrapErr("nearest", err)
	}

	query := `
		SELECT
			c.id, c.file_id, f.repository_id, r.name, f.relative_path, c.content,
			v.distance, e.id AS embedding_id
		FROM (
			SELECT chunk_id, vec_distance_cosine(embedding, ?) AS distance
			FROM chunk_vectors
		) v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN files f ON f.id = c.file_id
		JOIN repositories r ON r.id = f.repository_id
		JOIN embeddings e ON e.chunk_id = c.id
	`
	args := []any{packed}
	if repositoryID != "" {
		query += " WHERE f.repository_id = ?"
		args = append(args, repositoryID)
	}
	query += " ORDER BY v.distance ASC, embedding_id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, wrapErr("nearest", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var distance float64
		var embeddingID string
		if err := rows.Scan(&r.ChunkID, &r.FileID, &r.RepositoryID, &r.RepositoryName, &r.FilePath, &r.Content, &distance, &embeddingID); err != nil {
			return nil, wrapErr("nearest", err)
		}
		r.Similarity = clamp01(1 - distance)
		out = append(out, r)
	}
	return out, wrapErr("nearest", rows.Err())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
