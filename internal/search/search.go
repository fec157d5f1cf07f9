// Package search implements the natural-language query surface over an
// indexed repository: embed the query text via an Oracle, then delegate
// to storage's vector nearest-neighbor search.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/repoindex/semindex/internal/embedding"
	"github.com/repoindex/semindex/internal/storage"
)

// ErrEmptyQuery is returned for a blank or whitespace-only query string.
var ErrEmptyQuery = errors.New("search: query must not be empty")

const binaryContentPlaceholder = "[binary file content omitted]"

// Options narrows a search to a repository and/or classification, and
// caps the number of results.
type Options struct {
	RepositoryID   string // empty searches across all repositories
	Limit          int    // defaults to 10
	Classification storage.Classification // empty matches any classification
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	return o
}

// Result is a single ranked match, enriched with the fields the caller
// needs to render it without a further storage round-trip.
type Result struct {
	RepositoryName string
	RelativePath   string
	Classification storage.Classification
	Language       string
	Content        string
	Similarity     float64
}

// Service answers nearest-neighbor queries against an indexed corpus.
type Service struct {
	db     *storage.DB
	oracle embedding.Oracle
}

// New builds a Service bound to a storage handle and embedding oracle,
// both owned by the caller.
func New(db *storage.DB, oracle embedding.Oracle) *Service {
	return &Service{db: db, oracle: oracle}
}

// Query embeds text and returns its nearest chunks, most similar first.
func (s *Service) Query(ctx context.Context, text string, opts Options) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	opts = opts.withDefaults()

	vec, err := s.oracle.EmbedOne(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search: embedding query: %w", err)
	}

	var hits []storage.SearchResult
	if opts.RepositoryID != "" {
		hits, err = storage.NearestInRepository(s.db, vec, opts.RepositoryID, opts.Limit)
	} else {
		hits, err = storage.Nearest(s.db, vec, opts.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search: nearest neighbor: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		file, err := storage.GetFile(s.db, h.FileID)
		if err != nil {
			return nil, fmt.Errorf("search: loading file %s: %w", h.FileID, err)
		}
		if opts.Classification != "" && file.Classification != opts.Classification {
			continue
		}
		content := h.Content
		if file.Classification == storage.ClassificationBinary {
			content = binaryContentPlaceholder
		}
		results = append(results, Result{
			RepositoryName: h.RepositoryName,
			RelativePath:   h.FilePath,
			Classification: file.Classification,
			Language:       file.Language,
			Content:        content,
			Similarity:     h.Similarity,
		})
	}
	return results, nil
}

// FindSimilar is Query's contract with a code snippet as the query text,
// used to find chunks similar to a piece of code rather than a prose
// question.
func (s *Service) FindSimilar(ctx context.Context, code string, opts Options) ([]Result, error) {
	return s.Query(ctx, code, opts)
}
