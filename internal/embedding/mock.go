package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// MockOracle is a deterministic, in-memory Oracle used in tests. It
// derives an embedding from the SHA-256 of the input text, so the same
// text always yields the same vector.
type MockOracle struct {
	mu          sync.Mutex
	dimensions  int
	closeCalled bool
	embedErr    error
}

func NewMockOracle(dimensions int) *MockOracle {
	return &MockOracle{dimensions: dimensions}
}

func (m *MockOracle) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedErr = err
}

func (m *MockOracle) Dimensions() int { return m.dimensions }

func (m *MockOracle) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

func (m *MockOracle) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalled
}

func (m *MockOracle) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedMany(ctx, []string{text}, nil)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *MockOracle) EmbedMany(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	m.mu.Lock()
	err := m.embedErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = deterministicVector(text, m.dimensions)
		if progress != nil {
			progress(i+1, len(texts))
		}
	}
	return out, nil
}

func deterministicVector(text string, dimensions int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, dimensions)
	for i := 0; i < dimensions; i++ {
		offset := (i * 4) % len(hash)
		val := binary.BigEndian.Uint32(hash[offset : offset+4])
		vec[i] = (float32(val)/float32(1<<32))*2.0 - 1.0
	}
	return vec
}
