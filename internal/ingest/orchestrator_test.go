package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/repoindex/semindex/internal/embedding"
	"github.com/repoindex/semindex/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_S2BinaryScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "logo.png", string(make([]byte, 1024)))

	db := newTestDB(t)
	oracle := embedding.NewMockOracle(8)
	orch := New(db, oracle, Options{LogDir: filepath.Join(dir, "logs")})

	summary, err := orch.Run(context.Background(), "r", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Ingested != 1 {
		t.Fatalf("expected 1 file ingested, got %+v", summary)
	}

	repo, err := storage.GetRepositoryByPath(db, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := storage.GetFileByPath(db, repo.ID, "logo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Classification != storage.ClassificationBinary {
		t.Fatalf("expected binary classification, got %s", f.Classification)
	}
	if f.Content != nil {
		t.Fatal("expected nil content for binary file")
	}
	if f.BinaryMetadata == nil {
		t.Fatal("expected binary metadata to be set")
	}

	chunks, err := storage.ListChunksByFile(db, f.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for binary file, got %d", len(chunks))
	}
}

func TestRun_S3SkipLargeFileScenario(t *testing.T) {
	dir := t.TempDir()
	huge := make([]byte, 4096)
	for i := range huge {
		huge[i] = 'a'
	}
	writeFile(t, dir, "huge.txt", string(huge))

	db := newTestDB(t)
	oracle := embedding.NewMockOracle(8)
	orch := New(db, oracle, Options{
		MaxFileSizeBytes: 1024,
		SkipLargeFiles:   true,
		LogDir:           filepath.Join(dir, "logs"),
	})

	summary, err := orch.Run(context.Background(), "r", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped[SkipFileTooLarge] != 1 {
		t.Fatalf("expected 1 file_too_large skip, got %+v", summary.Skipped)
	}

	repo, err := storage.GetRepositoryByPath(db, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := storage.GetFileByPath(db, repo.ID, "huge.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Content != nil {
		t.Fatal("expected null content for skipped large file")
	}
	if f.StatusMetadata == "" {
		t.Fatal("expected status_metadata to describe the skip")
	}

	logEntries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil || len(logEntries) != 1 {
		t.Fatalf("expected exactly one ingest log file, got %v (err=%v)", logEntries, err)
	}
}

func TestRun_S1DeltaAddAndUpdateScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ts", "x\n")
	writeFile(t, dir, "b.md", "# H\n")

	db := newTestDB(t)
	oracle := embedding.NewMockOracle(8)
	orch := New(db, oracle, Options{LogDir: filepath.Join(dir, "logs")})

	if _, err := orch.Run(context.Background(), "r", dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writeFile(t, dir, "a.ts", "x\ny\n")
	writeFile(t, dir, "c.py", "def f():\n  pass\n")

	summary, err := orch.Run(context.Background(), "r", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Ingested != 2 {
		t.Fatalf("expected 2 files ingested on second run (a.ts update, c.py add), got %+v", summary)
	}

	repo, err := storage.GetRepositoryByPath(db, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := storage.GetFileByPath(db, repo.ID, "a.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Content == nil || *f.Content != "x\ny\n" {
		t.Fatalf("expected a.ts content to be updated, got %v", f.Content)
	}
}

func TestRun_ResumeModeSkipsAlreadyEmbeddedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")

	db := newTestDB(t)
	oracle := embedding.NewMockOracle(8)
	orch := New(db, oracle, Options{LogDir: filepath.Join(dir, "logs")})

	if _, err := orch.Run(context.Background(), "r", dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resumeOrch := New(db, oracle, Options{Resume: true, LogDir: filepath.Join(dir, "logs")})
	summary, err := resumeOrch.Run(context.Background(), "r", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("expected resume run to find nothing left to process, got %+v", summary)
	}
}
