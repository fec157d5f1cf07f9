// Package delta compares a freshly discovered file set against what is
// already stored for a repository and classifies each path into one of
// add/update/unchanged/delete, without ever loading file content for
// comparison unless a fast size check is inconclusive.
package delta

import (
	"os"

	"github.com/repoindex/semindex/internal/hashutil"
	"github.com/repoindex/semindex/internal/storage"
)

// Plan is the outcome of analyze: a partition of the union of stored and
// discovered paths into four disjoint sets.
type Plan struct {
	ToAdd     []string
	ToUpdate  []string
	ToDelete  []string
	Unchanged []string
}

// StatFunc abstracts os.Stat so tests can simulate filesystem state
// without touching disk.
type StatFunc func(path string) (os.FileInfo, error)

// ReadFunc abstracts file content loading for the hash-comparison
// fallback step. It returns a file's raw bytes by path; hashOf then uses
// the stored classification to decide whether the bytes are normalized
// as text before hashing (binary is hashed raw).
type ReadFunc func(path string) ([]byte, error)

// Analyze implements the delta contract: analyze(repo, discovered) ->
// {toAdd, toUpdate, toDelete, unchanged}. discovered is a map from
// absolute filesystem path to the repository-relative path storage keys
// files by; stat and read operate on the absolute path.
func Analyze(db *storage.DB, repositoryID string, discovered map[string]string, stat StatFunc, read ReadFunc) (Plan, error) {
	if stat == nil {
		stat = os.Stat
	}
	if read == nil {
		read = os.ReadFile
	}

	stored, err := storage.ListFileMetadata(db, repositoryID)
	if err != nil {
		return Plan{}, err
	}
	storedByPath := make(map[string]storage.FileMetadata, len(stored))
	for _, m := range stored {
		storedByPath[m.RelativePath] = m
	}

	var plan Plan
	seen := make(map[string]struct{}, len(discovered))

	for absPath, relPath := range discovered {
		seen[relPath] = struct{}{}
		existing, ok := storedByPath[relPath]
		if !ok {
			plan.ToAdd = append(plan.ToAdd, relPath)
			continue
		}

		info, statErr := stat(absPath)
		if statErr != nil {
			plan.ToUpdate = append(plan.ToUpdate, relPath)
			continue
		}

		if info.Size() != existing.SizeBytes {
			plan.ToUpdate = append(plan.ToUpdate, relPath)
			continue
		}

		contentHash, hashErr := hashOf(absPath, existing.Classification, read)
		if hashErr != nil {
			plan.ToUpdate = append(plan.ToUpdate, relPath)
			continue
		}
		if contentHash == existing.ContentHash {
			plan.Unchanged = append(plan.Unchanged, relPath)
		} else {
			plan.ToUpdate = append(plan.ToUpdate, relPath)
		}
	}

	for relPath := range storedByPath {
		if _, ok := seen[relPath]; !ok {
			plan.ToDelete = append(plan.ToDelete, relPath)
		}
	}

	return plan, nil
}

func hashOf(absPath string, classification storage.Classification, read ReadFunc) (string, error) {
	data, err := read(absPath)
	if err != nil {
		return "", err
	}
	if classification == storage.ClassificationBinary {
		return hashutil.HashBinary(data), nil
	}
	return hashutil.HashText(string(data)), nil
}

// ResumePlan is the outcome of AnalyzeResume: files split into those that
// still need processing and those already durably finished.
type ResumePlan struct {
	ToProcess        []string
	AlreadyProcessed []string
}

// AnalyzeResume implements the resume-mode contract: a file counts as
// already processed if it is binary and has a file record, or if it is
// text/code and has at least one chunk with an embedding. Everything
// else (including files with chunks but no embeddings, the crash-mid-run
// case) is toProcess.
func AnalyzeResume(db *storage.DB, repositoryID string, discovered map[string]string) (ResumePlan, error) {
	stored, err := storage.ListFileMetadata(db, repositoryID)
	if err != nil {
		return ResumePlan{}, err
	}
	storedByPath := make(map[string]storage.FileMetadata, len(stored))
	for _, m := range stored {
		storedByPath[m.RelativePath] = m
	}

	var plan ResumePlan
	for _, relPath := range discovered {
		meta, ok := storedByPath[relPath]
		if !ok {
			plan.ToProcess = append(plan.ToProcess, relPath)
			continue
		}

		if meta.Classification == storage.ClassificationBinary {
			plan.AlreadyProcessed = append(plan.AlreadyProcessed, relPath)
			continue
		}

		chunks, err := storage.ListChunksByFile(db, meta.ID)
		if err != nil {
			return ResumePlan{}, err
		}
		if len(chunks) == 0 {
			plan.ToProcess = append(plan.ToProcess, relPath)
			continue
		}

		finished := false
		for _, c := range chunks {
			has, err := storage.HasEmbedding(db, c.ID)
			if err != nil {
				return ResumePlan{}, err
			}
			if has {
				finished = true
				break
			}
		}
		if finished {
			plan.AlreadyProcessed = append(plan.AlreadyProcessed, relPath)
		} else {
			plan.ToProcess = append(plan.ToProcess, relPath)
		}
	}

	return plan, nil
}
