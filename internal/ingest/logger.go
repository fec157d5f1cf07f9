package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ErrorLogger appends structured JSON error records to a per-repository,
// per-day log file, replacing any global mutable logger state with an
// explicit handle passed by reference through a run.
type ErrorLogger struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// errorRecord is one JSON line in the error log, matching the documented
// schema: {timestamp, filePath, errorType, message, details?}.
type errorRecord struct {
	Timestamp string         `json:"timestamp"`
	FilePath  string         `json:"filePath"`
	ErrorType string         `json:"errorType"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

var slugReplacer = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases name and collapses every run of non-alphanumeric
// characters into a single hyphen, trimming leading/trailing hyphens.
func slugify(name string) string {
	slug := slugReplacer.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "repo"
	}
	return slug
}

// NewErrorLogger opens (creating if necessary) today's log file for
// repoName under dir, named "<repo-slug>-errors-<YYYY-MM-DD>.log".
func NewErrorLogger(dir, repoName string) (*ErrorLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ingest log directory: %w", err)
	}
	name := fmt.Sprintf("%s-errors-%s.log", slugify(repoName), time.Now().UTC().Format("2006-01-02"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ingest log %s: %w", path, err)
	}
	return &ErrorLogger{path: path, file: f}, nil
}

// LogSkip records a skip outcome. The skip reason doubles as the record's
// errorType, per the documented enum.
func (l *ErrorLogger) LogSkip(filePath string, reason SkipReason) error {
	return l.write(errorRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		FilePath:  filePath,
		ErrorType: string(reason),
		Message:   fmt.Sprintf("skipped: %s", reason),
	})
}

// LogFailure records a per-file processing failure, classifying err into
// one of the documented errorType values.
func (l *ErrorLogger) LogFailure(filePath string, err error) error {
	return l.write(errorRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		FilePath:  filePath,
		ErrorType: string(classifyErrorType(err)),
		Message:   err.Error(),
	})
}

func (l *ErrorLogger) write(rec errorRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling ingest log record: %w", err)
	}
	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

// Flush syncs buffered writes to disk.
func (l *ErrorLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Sync()
}

// Close flushes and closes the underlying file.
func (l *ErrorLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.file.Sync()
	return l.file.Close()
}

// Path returns the log file's path, primarily for tests and diagnostics.
func (l *ErrorLogger) Path() string { return l.path }
