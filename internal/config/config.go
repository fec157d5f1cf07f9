// Package config defines the recognized configuration shape for a
// semindex run: embedding backend selection, processing gates, and path
// rules. It exposes the typed Config, its defaults, and Validate, and
// (in loader.go) loads the config file from a directory via viper. CLI
// flag parsing lives outside this package.
package config

// Config is the complete semindex configuration, loaded from
// .semindex/config.yml with SEMINDEX_-prefixed environment overrides.
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
}

// EmbeddingConfig selects and parameterizes the embedding backend.
type EmbeddingConfig struct {
	Provider string       `yaml:"provider" mapstructure:"provider"` // "transformers" | "ollama"
	Local    LocalConfig  `yaml:"local" mapstructure:"local"`
	Ollama   OllamaConfig `yaml:"ollama" mapstructure:"ollama"`
}

// LocalConfig configures the local co-process embedding backend.
type LocalConfig struct {
	Model         string `yaml:"model" mapstructure:"model"`
	Dimensions    int    `yaml:"dimensions" mapstructure:"dimensions"`
	ModelCacheDir string `yaml:"modelCacheDir" mapstructure:"modelCacheDir"`
	MaxConcurrent int    `yaml:"maxConcurrent" mapstructure:"maxConcurrent"`
}

// OllamaConfig configures the Ollama/HTTP embedding backend.
type OllamaConfig struct {
	Model         string `yaml:"model" mapstructure:"model"`
	Dimensions    int    `yaml:"dimensions" mapstructure:"dimensions"`
	BaseURL       string `yaml:"baseUrl" mapstructure:"baseUrl"`
	MaxConcurrent int    `yaml:"maxConcurrent" mapstructure:"maxConcurrent"`
}

// ProcessingConfig governs the ingest orchestrator's per-file gates.
type ProcessingConfig struct {
	MaxFileSizeBytes int64 `yaml:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	TokenTarget      int   `yaml:"tokenTarget" mapstructure:"tokenTarget"`
	OverlapTokens    int   `yaml:"overlapTokens" mapstructure:"overlapTokens"`
	MaxChunksPerFile int   `yaml:"maxChunksPerFile" mapstructure:"maxChunksPerFile"`
	SkipLargeFiles   bool  `yaml:"skipLargeFiles" mapstructure:"skipLargeFiles"`
}

// PathsConfig controls discovery's ignore set.
type PathsConfig struct {
	Ignore []string `yaml:"ignore" mapstructure:"ignore"`
}

// StorageConfig points at the SQLite database file.
type StorageConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Default returns a configuration with the documented default values.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: "transformers",
			Local: LocalConfig{
				Model:         "BAAI/bge-small-en-v1.5",
				Dimensions:    384,
				ModelCacheDir: ".semindex/models",
				MaxConcurrent: 4,
			},
			Ollama: OllamaConfig{
				Model:         "nomic-embed-text",
				Dimensions:    768,
				BaseURL:       "http://localhost:11434",
				MaxConcurrent: 50,
			},
		},
		Processing: ProcessingConfig{
			MaxFileSizeBytes: 10 * 1024 * 1024,
			TokenTarget:      500,
			OverlapTokens:    64,
			MaxChunksPerFile: 200,
			SkipLargeFiles:   true,
		},
		Paths: PathsConfig{
			Ignore: []string{
				"node_modules/**",
				"vendor/**",
				".git/**",
				"dist/**",
				"build/**",
				"target/**",
				"bin/**",
				"out/**",
				".next/**",
				"coverage/**",
			},
		},
		Storage: StorageConfig{
			Path: ".semindex/index.db",
		},
	}
}
