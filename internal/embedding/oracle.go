package embedding

import (
	"context"
	"fmt"
	"math"
)

// Oracle maps text to fixed-dimension vectors. Implementations are local
// co-process or HTTP-backed; callers treat both as a black box.
type Oracle interface {
	// EmbedOne embeds a single piece of text, typically a search query.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds a batch of texts, preserving input order. progress,
	// if non-nil, is invoked at most once per completed batch.
	EmbedMany(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error)

	// Dimensions returns D, the fixed vector length this oracle produces.
	Dimensions() int

	// Close releases any resources (subprocess, idle connections) held by
	// the oracle.
	Close() error
}

// ProgressFunc reports batch-level embedding progress. Invocations are
// advisory and not ordered with respect to final output assembly.
type ProgressFunc func(completed, total int)

// EmbeddingOracleError wraps a failure from an embedding backend: a
// dimension mismatch, an exhausted retry budget, or a transport failure.
type EmbeddingOracleError struct {
	Backend string
	Op      string
	Err     error
}

func (e *EmbeddingOracleError) Error() string {
	return fmt.Sprintf("embedding oracle (%s): %s: %v", e.Backend, e.Op, e.Err)
}

func (e *EmbeddingOracleError) Unwrap() error { return e.Err }

func normalizeL2(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
