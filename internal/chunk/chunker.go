// Package chunk splits normalized file text into bounded, overlapping
// semantic chunks. Boundaries are language-aware for recognized code
// extensions, heading/paragraph-aware for markdown, whole-file-or-line-
// packed for JSON, and line-packed for everything else.
//
// Tokens are estimated as ceil(chars/4); this crude estimate is the sole
// token measure used here and by the orchestrator's pre-flight gates, so
// both sides agree on what "too big" means.
package chunk

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Options configures a single chunking pass.
type Options struct {
	TargetTokens  int
	OverlapTokens int
	// Language is the extension-derived language tag (see internal/classify).
	// Empty for non-code files.
	Language string
}

// Chunk is one emitted chunk, positioned in the original normalized text.
type Chunk struct {
	Index           int
	Content         string
	StartChar       int
	EndChar         int
	StartTokenEst   int
	EndTokenEst     int
	OverlapFromPrev int
}

// EstimateTokens applies the ceil(chars/4) estimator used throughout the
// pipeline for both chunk sizing and pre-flight chunk-count gates.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + 3) / 4
}

// ErrInvalidTargetTokens is wrapped by ChunkingError when Options.TargetTokens
// is not positive.
var ErrInvalidTargetTokens = errors.New("target tokens must be positive")

// ErrInvalidOverlapTokens is wrapped by ChunkingError when
// Options.OverlapTokens is negative or not smaller than TargetTokens.
var ErrInvalidOverlapTokens = errors.New("overlap tokens must be non-negative and less than target tokens")

// ChunkText splits text (already normalized by the caller) into an ordered
// list of chunks according to opts. The strategy is selected by path's
// extension, falling back to Options.Language for code.
func ChunkText(path, text string, opts Options) ([]Chunk, error) {
	if opts.TargetTokens <= 0 {
		return nil, &ChunkingError{Op: fmt.Sprintf("chunk %s", path), Err: ErrInvalidTargetTokens}
	}
	if opts.OverlapTokens < 0 || opts.OverlapTokens >= opts.TargetTokens {
		return nil, &ChunkingError{Op: fmt.Sprintf("chunk %s", path), Err: ErrInvalidOverlapTokens}
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	doc := newDocument(text)

	var raw []Chunk
	switch {
	case ext == ".md" || ext == ".markdown":
		raw = chunkMarkdown(doc, opts)
	case ext == ".json":
		raw = chunkJSON(doc, opts)
	case opts.Language != "" && boundaryPatterns[opts.Language] != nil:
		raw = chunkCode(doc, opts)
	default:
		raw = packLines(doc, 0, len(doc.lines)-1, opts.TargetTokens, opts.OverlapTokens, true)
	}

	cumulative := 0
	for i := range raw {
		raw[i].Index = i
		tokens := EstimateTokens(raw[i].Content)
		raw[i].StartTokenEst = cumulative
		cumulative += tokens
		raw[i].EndTokenEst = cumulative
	}
	return raw, nil
}

// document precomputes per-line start offsets into the original text so
// every strategy can recover exact, trimmed character spans without
// re-scanning the whole file per chunk.
type document struct {
	text       string
	lines      []string
	lineStarts []int // lineStarts[i] = byte offset where lines[i] begins
}

func newDocument(text string) *document {
	lines := strings.Split(text, "\n")
	starts := make([]int, len(lines))
	offset := 0
	for i, l := range lines {
		starts[i] = offset
		offset += len(l) + 1 // +1 for the newline consumed by Split
	}
	return &document{text: text, lines: lines, lineStarts: starts}
}

// span returns the trimmed content and exact [start,end) offsets for the
// inclusive line range [startLine, endLine].
func (d *document) span(startLine, endLine int) (content string, start, end int) {
	if startLine > endLine || startLine < 0 || endLine >= len(d.lines) {
		return "", 0, 0
	}
	rawStart := d.lineStarts[startLine]
	lastLine := d.lines[endLine]
	rawEnd := d.lineStarts[endLine] + len(lastLine)
	raw := d.text[rawStart:rawEnd]

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", rawStart, rawStart
	}
	leadTrim := strings.Index(raw, trimmed)
	start = rawStart + leadTrim
	end = start + len(trimmed)
	return trimmed, start, end
}
