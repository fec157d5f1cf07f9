package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/repoindex/semindex/internal/chunk"
	"github.com/repoindex/semindex/internal/classify"
	"github.com/repoindex/semindex/internal/delta"
	"github.com/repoindex/semindex/internal/discovery"
	"github.com/repoindex/semindex/internal/embedding"
	"github.com/repoindex/semindex/internal/hashutil"
	"github.com/repoindex/semindex/internal/storage"
)

// Options configures a single ingestion run.
type Options struct {
	MaxFileSizeBytes int64
	TargetTokens     int
	OverlapTokens    int
	MaxChunksPerFile int
	SkipLargeFiles   bool
	IgnoreGlobs      []string

	// ForceFiles names repository-relative paths that bypass the size and
	// chunk-count skip gates.
	ForceFiles map[string]struct{}

	// LogDir is where the per-repository, per-day structured error log is
	// written. Defaults to ".semindex/logs" under RepoPath when empty.
	LogDir string

	// Resume restricts the run to analyzeResume's toProcess set instead of
	// the full add/update/delete delta.
	Resume bool

	Progress ProgressReporter
}

func (o Options) withDefaults() Options {
	if o.MaxFileSizeBytes == 0 {
		o.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	if o.TargetTokens == 0 {
		o.TargetTokens = 500
	}
	if o.OverlapTokens == 0 {
		o.OverlapTokens = 64
	}
	if o.MaxChunksPerFile == 0 {
		o.MaxChunksPerFile = 200
	}
	if o.ForceFiles == nil {
		o.ForceFiles = map[string]struct{}{}
	}
	if o.Progress == nil {
		o.Progress = NoOpProgressReporter{}
	}
	return o
}

// Orchestrator drives Discover -> DeltaAnalyze/ResumeAnalyze -> PerFileLoop
// -> Finalize for one repository.
type Orchestrator struct {
	db      *storage.DB
	oracle  embedding.Oracle
	options Options
}

// New constructs an Orchestrator bound to a storage handle and embedding
// oracle, both owned by the caller.
func New(db *storage.DB, oracle embedding.Oracle, options Options) *Orchestrator {
	return &Orchestrator{db: db, oracle: oracle, options: options.withDefaults()}
}

// Run ingests repoPath, registering it in storage on first use, and
// returns the run's summary.
func (o *Orchestrator) Run(ctx context.Context, repoName, repoPath string) (*Summary, error) {
	started := time.Now()
	progress := o.options.Progress
	summary := newSummary()

	repoID, err := o.resolveRepository(repoName, repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repository: %w", err)
	}

	logDir := o.options.LogDir
	if logDir == "" {
		logDir = filepath.Join(repoPath, ".semindex", "logs")
	}
	logger, err := NewErrorLogger(logDir, repoName)
	if err != nil {
		return nil, fmt.Errorf("opening ingest error log: %w", err)
	}
	defer logger.Close()

	progress.OnDiscoveryStart()
	walker, err := discovery.New(repoPath, o.options.IgnoreGlobs)
	if err != nil {
		return nil, fmt.Errorf("configuring discovery: %w", err)
	}
	absPaths, err := walker.Walk()
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	discovered := make(map[string]string, len(absPaths))
	for _, abs := range absPaths {
		// The error log this run writes is not itself ingested when
		// LogDir lies inside the repository.
		if abs == logger.Path() {
			continue
		}
		rel, err := filepath.Rel(repoPath, abs)
		if err != nil {
			return nil, fmt.Errorf("computing relative path for %s: %w", abs, err)
		}
		discovered[abs] = filepath.ToSlash(rel)
	}
	progress.OnDiscoveryComplete(len(discovered))

	toProcess, toDelete, err := o.plan(repoID, discovered)
	if err != nil {
		return nil, fmt.Errorf("planning delta: %w", err)
	}

	for _, relPath := range toDelete {
		existing, err := storage.GetFileByPath(o.db, repoID, relPath)
		if err == nil {
			if delErr := storage.DeleteFile(o.db, existing.ID); delErr != nil {
				return nil, fmt.Errorf("deleting removed file %s: %w", relPath, delErr)
			}
		}
	}

	relToAbs := make(map[string]string, len(discovered))
	for abs, rel := range discovered {
		relToAbs[rel] = abs
	}

	progress.OnFileProcessingStart(len(toProcess))
	for _, relPath := range toProcess {
		absPath, ok := relToAbs[relPath]
		if !ok {
			continue
		}

		outcome := o.processFile(ctx, repoID, absPath, relPath)
		summary.record(outcome)
		progress.OnFileProcessed(outcome)

		switch outcome.Kind {
		case Skipped:
			_ = logger.LogSkip(relPath, outcome.Reason)
		case Failed:
			_ = logger.LogFailure(relPath, outcome.Err)
		}

		// Cooperative yield between files so a single-threaded progress
		// renderer stays responsive.
		runtime.Gosched()

		if err := ctx.Err(); err != nil {
			return summary, err
		}
	}

	if err := storage.UpdateRepositoryMetadata(o.db, repoID, map[string]string{
		"last_ingested": time.Now().UTC().Format(time.RFC3339),
		"file_count":    strconv.Itoa(len(discovered)),
	}); err != nil {
		return summary, fmt.Errorf("updating repository metadata: %w", err)
	}

	if err := logger.Flush(); err != nil {
		return summary, fmt.Errorf("flushing ingest log: %w", err)
	}

	summary.Duration = time.Since(started)
	progress.OnComplete(summary)
	return summary, nil
}

func (o *Orchestrator) resolveRepository(name, path string) (string, error) {
	existing, err := storage.GetRepositoryByPath(o.db, path)
	if err == nil {
		return existing.ID, nil
	}
	return storage.InsertRepository(o.db, storage.Repository{
		Name:       name,
		Path:       path,
		IngestedAt: time.Now(),
		Metadata:   map[string]string{},
	})
}

// plan resolves the delta or resume analysis into the ordered set of
// relative paths to process and the set to delete.
func (o *Orchestrator) plan(repoID string, discovered map[string]string) (toProcess, toDelete []string, err error) {
	if o.options.Resume {
		resumePlan, err := delta.AnalyzeResume(o.db, repoID, discovered)
		if err != nil {
			return nil, nil, err
		}
		return resumePlan.ToProcess, nil, nil
	}

	deltaPlan, err := delta.Analyze(o.db, repoID, discovered, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	toProcess = append(append([]string{}, deltaPlan.ToAdd...), deltaPlan.ToUpdate...)
	return toProcess, deltaPlan.ToDelete, nil
}

// processFile implements the per-file processing contract: classify,
// crash-recovery check, size gate, pre-flight chunk-count gate, read,
// chunk, embed, persist.
func (o *Orchestrator) processFile(ctx context.Context, repoID, absPath, relPath string) Outcome {
	// Classify never fails outright: an I/O error during the byte-sniff
	// fallback degrades to a Binary classification rather than aborting.
	result, _ := classify.Classify(absPath, nil)

	info, err := os.Stat(absPath)
	if err != nil {
		return failed(relPath, err)
	}

	if err := o.recoverIncompleteArtifacts(repoID, relPath); err != nil {
		return failed(relPath, err)
	}

	forced := o.isForced(relPath)

	if o.options.SkipLargeFiles && info.Size() > o.options.MaxFileSizeBytes && !forced {
		if err := o.upsertSkippedFile(repoID, relPath, info, SkipFileTooLarge); err != nil {
			return failed(relPath, err)
		}
		return skipped(relPath, SkipFileTooLarge)
	}

	if result.Classification == classify.Binary {
		return o.ingestBinary(repoID, relPath, absPath, info)
	}

	if o.options.SkipLargeFiles && !forced {
		estimated := ceilDiv(info.Size(), int64(o.options.TargetTokens)*4)
		if estimated > int64(float64(o.options.MaxChunksPerFile)*1.5) {
			if err := o.upsertSkippedFile(repoID, relPath, info, SkipEstimatedTooManyChunks); err != nil {
				return failed(relPath, err)
			}
			return skipped(relPath, SkipEstimatedTooManyChunks)
		}
	}

	return o.ingestText(ctx, repoID, relPath, absPath, result)
}

func (o *Orchestrator) isForced(relPath string) bool {
	_, ok := o.options.ForceFiles[relPath]
	return ok
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// recoverIncompleteArtifacts deletes chunks/embeddings left behind by a
// crashed prior run so the file is treated as new. A file has incomplete
// artifacts when it has chunks but at least one of them lacks an
// embedding.
func (o *Orchestrator) recoverIncompleteArtifacts(repoID, relPath string) error {
	existing, err := storage.GetFileByPath(o.db, repoID, relPath)
	if err != nil {
		return nil // no prior record; nothing to recover
	}
	if existing.Classification == storage.ClassificationBinary {
		return nil
	}

	chunks, err := storage.ListChunksByFile(o.db, existing.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		has, err := storage.HasEmbedding(o.db, c.ID)
		if err != nil {
			return err
		}
		if !has {
			return storage.DeleteChunksByFile(o.db, existing.ID)
		}
	}
	return nil
}

func (o *Orchestrator) upsertSkippedFile(repoID, relPath string, info os.FileInfo, reason SkipReason) error {
	status, err := json.Marshal(map[string]any{"skipped": true, "reason": string(reason)})
	if err != nil {
		return err
	}
	existing, getErr := storage.GetFileByPath(o.db, repoID, relPath)
	id := ""
	if getErr == nil {
		id = existing.ID
	}
	_, err = storage.InsertFile(o.db, storage.File{
		ID:             id,
		RepositoryID:   repoID,
		RelativePath:   relPath,
		Classification: storage.ClassificationText,
		Content:        nil,
		ContentHash:    "",
		SizeBytes:      info.Size(),
		LastModified:   info.ModTime(),
		StatusMetadata: string(status),
	})
	return err
}

func (o *Orchestrator) ingestBinary(repoID, relPath, absPath string, info os.FileInfo) Outcome {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return failed(relPath, err)
	}
	hash := hashutil.HashBinary(data)

	metaJSON, err := json.Marshal(map[string]any{"size": info.Size(), "hash": hash})
	if err != nil {
		return failed(relPath, err)
	}

	existing, getErr := storage.GetFileByPath(o.db, repoID, relPath)
	id := ""
	if getErr == nil {
		id = existing.ID
	}

	if _, err := storage.InsertFile(o.db, storage.File{
		ID:             id,
		RepositoryID:   repoID,
		RelativePath:   relPath,
		Classification: storage.ClassificationBinary,
		Content:        nil,
		BinaryMetadata: strPtr(string(metaJSON)),
		ContentHash:    hash,
		SizeBytes:      info.Size(),
		LastModified:   info.ModTime(),
	}); err != nil {
		return failed(relPath, err)
	}
	return ingested(relPath)
}

func (o *Orchestrator) ingestText(ctx context.Context, repoID, relPath, absPath string, cls classify.Result) Outcome {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return failed(relPath, err)
	}
	normalized := hashutil.NormalizeText(string(raw))

	info, err := os.Stat(absPath)
	if err != nil {
		return failed(relPath, err)
	}

	chunks, err := chunk.ChunkText(relPath, normalized, chunk.Options{
		TargetTokens:  o.options.TargetTokens,
		OverlapTokens: o.options.OverlapTokens,
		Language:      cls.Language,
	})
	if err != nil {
		return failed(relPath, err)
	}

	if o.options.SkipLargeFiles && len(chunks) > o.options.MaxChunksPerFile && !o.isForced(relPath) {
		if err := o.upsertSkippedFile(repoID, relPath, info, SkipTooManyChunks); err != nil {
			return failed(relPath, err)
		}
		return skipped(relPath, SkipTooManyChunks)
	}

	classification := storage.ClassificationText
	if cls.Classification == classify.Code {
		classification = storage.ClassificationCode
	}

	existing, getErr := storage.GetFileByPath(o.db, repoID, relPath)
	id := ""
	if getErr == nil {
		id = existing.ID
	}

	fileID, err := storage.InsertFile(o.db, storage.File{
		ID:             id,
		RepositoryID:   repoID,
		RelativePath:   relPath,
		Classification: classification,
		Content:        strPtr(normalized),
		ContentHash:    hashutil.HashText(normalized),
		SizeBytes:      info.Size(),
		LastModified:   info.ModTime(),
		Language:       cls.Language,
	})
	if err != nil {
		return failed(relPath, err)
	}

	storageChunks := make([]storage.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		storageChunks[i] = storage.Chunk{
			Content:         c.Content,
			StartChar:       c.StartChar,
			EndChar:         c.EndChar,
			StartTokenEst:   c.StartTokenEst,
			EndTokenEst:     c.EndTokenEst,
			OverlapFromPrev: c.OverlapFromPrev,
		}
		texts[i] = c.Content
	}

	chunkIDs, err := storage.InsertChunks(o.db, fileID, storageChunks)
	if err != nil {
		return failed(relPath, err)
	}
	if len(chunkIDs) == 0 {
		return ingested(relPath)
	}

	vectors, err := o.oracle.EmbedMany(ctx, texts, nil)
	if err != nil {
		return failed(relPath, err)
	}
	if _, err := storage.InsertEmbeddings(o.db, chunkIDs, vectors); err != nil {
		return failed(relPath, err)
	}

	runtime.Gosched()
	return ingested(relPath)
}

func strPtr(s string) *string { return &s }
