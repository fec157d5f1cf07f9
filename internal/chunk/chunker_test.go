package chunk

import (
	"errors"
	"strings"
	"testing"
)

func TestChunkText_MarkdownHeadingSplit(t *testing.T) {
	input := "# A\n\npara1\n\n# B\n\npara2\n"
	chunks, err := ChunkText("doc.md", input, Options{TargetTokens: 100, OverlapTokens: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content != "# A\n\npara1" {
		t.Errorf("chunk 0 = %q", chunks[0].Content)
	}
	if chunks[1].Content != "# B\n\npara2" {
		t.Errorf("chunk 1 = %q", chunks[1].Content)
	}
	if chunks[0].Index != 0 || chunks[1].Index != 1 {
		t.Errorf("expected contiguous indices, got %d, %d", chunks[0].Index, chunks[1].Index)
	}
}

func TestChunkText_JSONSingleChunkUnderBudget(t *testing.T) {
	input := `{"a": 1, "b": 2}`
	chunks, err := ChunkText("data.json", input, Options{TargetTokens: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != input {
		t.Errorf("expected exact content match, got %q", chunks[0].Content)
	}
}

func TestChunkText_JSONFallsBackToLinePackingWhenOverBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(`{"key": "value", "index": `)
		b.WriteString("0000000000")
		b.WriteString("},\n")
	}
	chunks, err := ChunkText("data.json", b.String(), Options{TargetTokens: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for oversized json, got %d", len(chunks))
	}
}

func TestChunkText_CodeSplitsOnFunctionBoundaries(t *testing.T) {
	input := "package main\n\nfunc A() {\n\treturn\n}\n\nfunc B() {\n\treturn\n}\n"
	chunks, err := ChunkText("main.go", input, Options{TargetTokens: 500, Language: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected preamble + 2 functions = 3 chunks, got %d: %+v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[1].Content, "func A()") {
		t.Errorf("expected chunk 1 to start with func A(), got %q", chunks[1].Content)
	}
	if !strings.HasPrefix(chunks[2].Content, "func B()") {
		t.Errorf("expected chunk 2 to start with func B(), got %q", chunks[2].Content)
	}
	for _, c := range chunks {
		if c.OverlapFromPrev != 0 {
			t.Errorf("expected code chunks to carry no overlap, got %d", c.OverlapFromPrev)
		}
	}
}

func TestChunkText_GenericLinePacking(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("this is a line of plain text that takes up some tokens\n")
	}
	chunks, err := ChunkText("notes.txt", b.String(), Options{TargetTokens: 30, OverlapTokens: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		est := EstimateTokens(c.Content)
		if est > 30+15 { // allow slack for a single oversized line
			t.Errorf("chunk exceeds budget materially: %d tokens", est)
		}
	}
}

func TestChunkText_OffsetsAreMonotonicAndExact(t *testing.T) {
	input := "# Title\n\nfirst paragraph text here\n\nsecond paragraph text here\n"
	chunks, err := ChunkText("doc.md", input, Options{TargetTokens: 6, OverlapTokens: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEnd := -1
	for _, c := range chunks {
		if c.StartChar < lastEnd {
			t.Fatalf("offsets not monotonic: start %d < previous end %d", c.StartChar, lastEnd)
		}
		if input[c.StartChar:c.EndChar] != c.Content {
			t.Fatalf("offset span %d:%d does not match content %q", c.StartChar, c.EndChar, c.Content)
		}
		lastEnd = c.EndChar
	}
}

func TestChunkText_SingleOversizedLineEmittedAlone(t *testing.T) {
	hugeLine := strings.Repeat("x", 1000)
	input := "short\n" + hugeLine + "\nshort again\n"
	chunks, err := ChunkText("notes.txt", input, Options{TargetTokens: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, c := range chunks {
		if c.Content == hugeLine {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the oversized line to appear as its own chunk, got %+v", chunks)
	}
}

func TestChunkText_EmptyInputProducesNoChunks(t *testing.T) {
	chunks, err := ChunkText("empty.txt", "   \n\n  \n", Options{TargetTokens: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank input, got %d", len(chunks))
	}
}

func TestChunkText_RejectsNonPositiveTargetTokens(t *testing.T) {
	var chunkingErr *ChunkingError
	_, err := ChunkText("notes.txt", "hello\n", Options{TargetTokens: 0})
	if err == nil || !errors.As(err, &chunkingErr) {
		t.Fatalf("expected a *ChunkingError, got %v", err)
	}
}

func TestChunkText_RejectsOverlapNotSmallerThanTarget(t *testing.T) {
	var chunkingErr *ChunkingError
	_, err := ChunkText("notes.txt", "hello\n", Options{TargetTokens: 10, OverlapTokens: 10})
	if err == nil || !errors.As(err, &chunkingErr) {
		t.Fatalf("expected a *ChunkingError, got %v", err)
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	input := "# A\n\nfoo bar baz\n\n# B\n\nqux quux corge\n"
	a, err := ChunkText("doc.md", input, Options{TargetTokens: 4, OverlapTokens: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ChunkText("doc.md", input, Options{TargetTokens: 4, OverlapTokens: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Content != b[i].Content {
			t.Fatalf("non-deterministic content at index %d", i)
		}
	}
}
