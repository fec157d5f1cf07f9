package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// OllamaConfig configures the HTTP/Ollama embedding backend.
type OllamaConfig struct {
	BaseURL       string
	Model         string
	Dimensions    int
	MaxConcurrent int // default 50
	BatchSize     int // default 20
	RequestTimeout time.Duration // default 30s
	MaxRetries    int           // default 3
	Normalize     bool
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// OllamaOracle embeds text via an Ollama-compatible HTTP server's
// /api/embed endpoint.
type OllamaOracle struct {
	cfg    OllamaConfig
	client *http.Client
}

func NewOllamaOracle(cfg OllamaConfig) *OllamaOracle {
	cfg = cfg.withDefaults()
	return &OllamaOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type ollamaEmbedRequest struct {
	Model  string   `json:"model"`
	Input  []string `json:"input,omitempty"`
	Prompt string   `json:"prompt,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Embedding  []float32   `json:"embedding"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Probe lists installed models and fails with a descriptive error if the
// configured model is not among them.
func (o *OllamaOracle) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return &EmbeddingOracleError{Backend: "ollama", Op: "probe", Err: err}
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return &EmbeddingOracleError{Backend: "ollama", Op: "probe", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &EmbeddingOracleError{Backend: "ollama", Op: "probe", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return &EmbeddingOracleError{Backend: "ollama", Op: "probe", Err: err}
	}
	for _, m := range tags.Models {
		if m.Name == o.cfg.Model {
			return nil
		}
	}
	return &EmbeddingOracleError{
		Backend: "ollama",
		Op:      "probe",
		Err:     fmt.Errorf("model %q is not installed on %s; run `ollama pull %s`", o.cfg.Model, o.cfg.BaseURL, o.cfg.Model),
	}
}

func (o *OllamaOracle) Dimensions() int { return o.cfg.Dimensions }

func (o *OllamaOracle) Close() error { return nil }

func (o *OllamaOracle) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := withRetry(ctx, o.cfg.MaxRetries+1, time.Second, func(ctx context.Context) error {
		reqCtx, cancel := withTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()

		body, err := json.Marshal(ollamaEmbedRequest{Model: o.cfg.Model, Prompt: text})
		if err != nil {
			return err
		}
		v, err := o.post(reqCtx, body)
		if err != nil {
			return err
		}
		if len(v) != 1 {
			return fmt.Errorf("expected 1 embedding, got %d", len(v))
		}
		vec = v[0]
		return nil
	})
	if err != nil {
		return nil, &EmbeddingOracleError{Backend: "ollama", Op: "embedOne", Err: err}
	}
	if len(vec) != o.cfg.Dimensions {
		return nil, &EmbeddingOracleError{Backend: "ollama", Op: "embedOne", Err: fmt.Errorf("expected dimension %d, got %d", o.cfg.Dimensions, len(vec))}
	}
	if o.cfg.Normalize {
		vec = normalizeL2(vec)
	}
	return vec, nil
}

func (o *OllamaOracle) EmbedMany(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := packBatches(texts, o.cfg.BatchSize)
	var completed int64

	results, err := runBatchPool(ctx, batches, o.cfg.MaxConcurrent, func(ctx context.Context, batch []string) ([][]float32, error) {
		var vecs [][]float32
		err := withRetry(ctx, o.cfg.MaxRetries+1, time.Second, func(ctx context.Context) error {
			reqCtx, cancel := withTimeout(ctx, o.cfg.RequestTimeout)
			defer cancel()

			body, err := json.Marshal(ollamaEmbedRequest{Model: o.cfg.Model, Input: batch})
			if err != nil {
				return err
			}
			v, err := o.post(reqCtx, body)
			if err != nil {
				return err
			}
			if len(v) != len(batch) {
				return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(v))
			}
			for _, vec := range v {
				if len(vec) != o.cfg.Dimensions {
					return fmt.Errorf("expected dimension %d, got %d", o.cfg.Dimensions, len(vec))
				}
			}
			vecs = v
			return nil
		})
		return vecs, err
	}, func() {
		n := atomic.AddInt64(&completed, 1)
		if progress != nil {
			progress(int(n), len(batches))
		}
	})
	if err != nil {
		return nil, &EmbeddingOracleError{Backend: "ollama", Op: "embedMany", Err: err}
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range results {
		for _, vec := range batch {
			if o.cfg.Normalize {
				vec = normalizeL2(vec)
			}
			out = append(out, vec)
		}
	}
	return out, nil
}

func (o *OllamaOracle) post(ctx context.Context, body []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Embeddings != nil {
		return parsed.Embeddings, nil
	}
	if parsed.Embedding != nil {
		return [][]float32{parsed.Embedding}, nil
	}
	return nil, fmt.Errorf("response had neither embeddings nor embedding field")
}
