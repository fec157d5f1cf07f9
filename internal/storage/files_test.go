package storage

import (
	"testing"
	"time"
)

func newRepo(t *testing.T, db *DB) string {
	t.Helper()
	id, err := InsertRepository(db, Repository{Name: t.Name(), Path: "/repos/" + t.Name(), IngestedAt: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return id
}

func TestInsertFiles_BatchSplitsAtCeiling(t *testing.T) {
	db := newTestDB(t, 4)
	repoID := newRepo(t, db)

	files := make([]File, 0, 250)
	for i := 0; i < 250; i++ {
		files = append(files, File{
			RepositoryID:   repoID,
			RelativePath:   "file" + itoa(i) + ".txt",
			Classification: ClassificationText,
			Content:        strPtr("x"),
			ContentHash:    "h",
			SizeBytes:      1,
			LastModified:   time.Now(),
		})
	}

	ids, err := InsertFiles(db, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != len(files) {
		t.Fatalf("expected %d ids, got %d", len(files), len(ids))
	}

	meta, err := ListFileMetadata(db, repoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meta) != len(files) {
		t.Fatalf("expected %d stored files, got %d", len(files), len(meta))
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestInsertFile_BinaryInvariant(t *testing.T) {
	db := newTestDB(t, 4)
	repoID := newRepo(t, db)

	id, err := InsertFile(db, File{
		RepositoryID:   repoID,
		RelativePath:   "logo.png",
		Classification: ClassificationBinary,
		Content:        nil,
		BinaryMetadata: strPtr(`{"size":1024}`),
		ContentHash:    "binhash",
		SizeBytes:      1024,
		LastModified:   time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := GetFile(db, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Classification != ClassificationBinary {
		t.Fatalf("expected binary classification, got %s", f.Classification)
	}
	if f.Content != nil {
		t.Fatalf("expected nil content for binary file, got %v", *f.Content)
	}
	if f.BinaryMetadata == nil {
		t.Fatal("expected binary metadata to be set")
	}

	chunks, err := ListChunksByFile(db, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for binary file, got %d", len(chunks))
	}
}

func TestGetFileByPath_UniquePerRepository(t *testing.T) {
	db := newTestDB(t, 4)
	repoID := newRepo(t, db)

	_, err := InsertFile(db, File{
		RepositoryID:   repoID,
		RelativePath:   "a.go",
		Classification: ClassificationCode,
		Content:        strPtr("package a"),
		ContentHash:    "h",
		SizeBytes:      9,
		LastModified:   time.Now(),
		Language:       "go",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := GetFileByPath(db, repoID, "a.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RelativePath != "a.go" {
		t.Fatalf("unexpected file: %+v", got)
	}
}

func TestInsertFile_UpsertsOnReplace(t *testing.T) {
	db := newTestDB(t, 4)
	repoID := newRepo(t, db)

	id, err := InsertFile(db, File{
		ID:             "fixed-id",
		RepositoryID:   repoID,
		RelativePath:   "a.go",
		Classification: ClassificationCode,
		Content:        strPtr("v1"),
		ContentHash:    "h1",
		SizeBytes:      2,
		LastModified:   time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := InsertFile(db, File{
		ID:             id,
		RepositoryID:   repoID,
		RelativePath:   "a.go",
		Classification: ClassificationCode,
		Content:        strPtr("v2"),
		ContentHash:    "h2",
		SizeBytes:      2,
		LastModified:   time.Now(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := GetFile(db, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content == nil || *got.Content != "v2" {
		t.Fatalf("expected replace to update content, got %+v", got.Content)
	}
}
