package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestMockOracle_DeterministicAndDimensioned(t *testing.T) {
	oracle := NewMockOracle(16)
	v1, err := oracle.EmbedOne(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := oracle.EmbedOne(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v1) != 16 {
		t.Fatalf("expected dimension 16, got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected deterministic output, mismatch at index %d", i)
		}
	}
}

func TestMockOracle_EmbedManyPreservesOrder(t *testing.T) {
	oracle := NewMockOracle(8)
	texts := []string{"a", "b", "c"}
	vecs, err := oracle.EmbedMany(context.Background(), texts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	single, _ := oracle.EmbedOne(context.Background(), "b")
	for i := range single {
		if vecs[1][i] != single[i] {
			t.Fatalf("batch and single embedding diverge at index %d", i)
		}
	}
}

func TestMockOracle_SurfacesConfiguredError(t *testing.T) {
	oracle := NewMockOracle(8)
	boom := errors.New("boom")
	oracle.SetEmbedError(boom)

	if _, err := oracle.EmbedOne(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected configured error, got %v", err)
	}
}

func TestMockOracle_CloseIsTracked(t *testing.T) {
	oracle := NewMockOracle(8)
	if oracle.IsClosed() {
		t.Fatal("expected not closed initially")
	}
	if err := oracle.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !oracle.IsClosed() {
		t.Fatal("expected closed after Close()")
	}
}

func TestWithQueryCache_CachesRepeatedQueries(t *testing.T) {
	base := NewMockOracle(8)
	cached, err := WithQueryCache(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v1, err := cached.EmbedOne(context.Background(), "find me a parser")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base.SetEmbedError(errors.New("should not be called again"))
	v2, err := cached.EmbedOne(context.Background(), "find me a parser")
	if err != nil {
		t.Fatalf("expected cached hit to avoid underlying error, got %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("cached vector mismatch at index %d", i)
		}
	}
}
