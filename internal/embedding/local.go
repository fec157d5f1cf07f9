package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// LocalConfig configures the co-process embedding backend.
type LocalConfig struct {
	BinaryPath     string
	ModelID        string
	ModelCacheDir  string
	Dimensions     int
	Port           int
	MaxConcurrent  int
	BatchSize      int
	RequestTimeout time.Duration
	MaxRetries     int
	Normalize      bool
}

func (c LocalConfig) withDefaults() LocalConfig {
	if c.Port == 0 {
		c.Port = 8121
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
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

// LocalOracle manages a local embedding co-process and talks to it over
// loopback HTTP once it reports healthy.
type LocalOracle struct {
	cfg         LocalConfig
	client      *http.Client
	cmd         *exec.Cmd
	initialized bool
}

func NewLocalOracle(cfg LocalConfig) *LocalOracle {
	cfg = cfg.withDefaults()
	return &LocalOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// modelCacheSubdir mirrors a model id into a filesystem-safe directory
// name by replacing "/" with "_".
func modelCacheSubdir(modelID string) string {
	return strings.ReplaceAll(modelID, "/", "_")
}

func (o *LocalOracle) ensureRunning(ctx context.Context) error {
	if o.initialized {
		return nil
	}
	if o.isHealthy() {
		o.initialized = true
		return nil
	}

	binaryPath := o.cfg.BinaryPath
	if binaryPath == "" {
		cacheDir := o.cfg.ModelCacheDir
		if cacheDir == "" {
			return &EmbeddingOracleError{Backend: "local", Op: "ensureRunning", Err: fmt.Errorf("no binary path or model cache directory configured for model %q", o.cfg.ModelID)}
		}
		modelDir := filepath.Join(cacheDir, modelCacheSubdir(o.cfg.ModelID))
		if _, err := os.Stat(modelDir); err != nil {
			return &EmbeddingOracleError{
				Backend: "local",
				Op:      "ensureRunning",
				Err:     fmt.Errorf("model %q not found in cache at %s; download it before starting ingestion: %w", o.cfg.ModelID, modelDir, err),
			}
		}
		return &EmbeddingOracleError{Backend: "local", Op: "ensureRunning", Err: fmt.Errorf("no co-process binary configured to serve cached model at %s", modelDir)}
	}

	o.cmd = exec.CommandContext(ctx, binaryPath)
	o.cmd.Stdout = os.Stdout
	o.cmd.Stderr = os.Stderr
	if err := o.cmd.Start(); err != nil {
		return &EmbeddingOracleError{Backend: "local", Op: "ensureRunning", Err: fmt.Errorf("starting embedding server: %w", err)}
	}

	if err := o.waitForHealthy(ctx, 60*time.Second); err != nil {
		return &EmbeddingOracleError{Backend: "local", Op: "ensureRunning", Err: err}
	}
	o.initialized = true
	return nil
}

func (o *LocalOracle) isHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL()+"/", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *LocalOracle) waitForHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for embedding server to become healthy")
		case <-ticker.C:
			if o.isHealthy() {
				return nil
			}
		}
	}
}

func (o *LocalOracle) baseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", o.cfg.Port)
}

// localEmbedRequest/Response are the co-process's /embed envelope: the
// request carries {texts}, and the response's {embeddings} field has the
// same shape as the Ollama batch response. LocalOracle has its own HTTP
// call code; it does not go through the Ollama backend.
type localEmbedRequest struct {
	Texts []string `json:"texts"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *LocalOracle) Dimensions() int { return o.cfg.Dimensions }

func (o *LocalOracle) Close() error {
	if o.cmd == nil || o.cmd.Process == nil {
		return nil
	}
	return o.cmd.Process.Kill()
}

func (o *LocalOracle) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedMany(ctx, []string{text}, nil)
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, &EmbeddingOracleError{Backend: "local", Op: "embedOne", Err: fmt.Errorf("expected 1 embedding, got %d", len(vecs))}
	}
	return vecs[0], nil
}

func (o *LocalOracle) EmbedMany(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := o.ensureRunning(ctx); err != nil {
		return nil, err
	}

	batches := packBatches(texts, o.cfg.BatchSize)
	var completed int64

	results, err := runBatchPool(ctx, batches, o.cfg.MaxConcurrent, func(ctx context.Context, batch []string) ([][]float32, error) {
		var vecs [][]float32
		err := withRetry(ctx, o.cfg.MaxRetries+1, time.Second, func(ctx context.Context) error {
			reqCtx, cancel := withTimeout(ctx, o.cfg.RequestTimeout)
			defer cancel()

			body, err := json.Marshal(localEmbedRequest{Texts: batch})
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, o.baseURL()+"/embed", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := o.client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}
			var parsed localEmbedResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			if len(parsed.Embeddings) != len(batch) {
				return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(parsed.Embeddings))
			}
			for _, vec := range parsed.Embeddings {
				if len(vec) != o.cfg.Dimensions {
					return fmt.Errorf("expected dimension %d, got %d", o.cfg.Dimensions, len(vec))
				}
			}
			vecs = parsed.Embeddings
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
		return nil, &EmbeddingOracleError{Backend: "local", Op: "embedMany", Err: err}
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
