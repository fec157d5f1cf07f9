package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Loader reads and validates a Config from disk and the environment.
type Loader interface {
	Load() (*Config, error)
}

type loader struct {
	dir string
}

// NewLoader returns a Loader that searches dir for .semindex/config.yml
// (or .yaml).
func NewLoader(dir string) Loader {
	return &loader{dir: dir}
}

// Load reads .semindex/config.{yml,yaml} under the loader's directory,
// applies SEMINDEX_-prefixed environment overrides, merges over the
// documented defaults, and validates the result.
func (l *loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(l.dir + "/.semindex")

	v.SetEnvPrefix("SEMINDEX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigurationError{Op: "read config", Err: err}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &ConfigurationError{Op: "unmarshal", Err: err}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration rooted at the current directory.
func LoadConfig() (*Config, error) {
	return LoadConfigFromDir(".")
}

// LoadConfigFromDir loads configuration rooted at dir.
func LoadConfigFromDir(dir string) (*Config, error) {
	return NewLoader(dir).Load()
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.local.model", d.Embedding.Local.Model)
	v.SetDefault("embedding.local.dimensions", d.Embedding.Local.Dimensions)
	v.SetDefault("embedding.local.modelCacheDir", d.Embedding.Local.ModelCacheDir)
	v.SetDefault("embedding.local.maxConcurrent", d.Embedding.Local.MaxConcurrent)
	v.SetDefault("embedding.ollama.model", d.Embedding.Ollama.Model)
	v.SetDefault("embedding.ollama.dimensions", d.Embedding.Ollama.Dimensions)
	v.SetDefault("embedding.ollama.baseUrl", d.Embedding.Ollama.BaseURL)
	v.SetDefault("embedding.ollama.maxConcurrent", d.Embedding.Ollama.MaxConcurrent)

	v.SetDefault("processing.maxFileSizeBytes", d.Processing.MaxFileSizeBytes)
	v.SetDefault("processing.tokenTarget", d.Processing.TokenTarget)
	v.SetDefault("processing.overlapTokens", d.Processing.OverlapTokens)
	v.SetDefault("processing.maxChunksPerFile", d.Processing.MaxChunksPerFile)
	v.SetDefault("processing.skipLargeFiles", d.Processing.SkipLargeFiles)

	v.SetDefault("paths.ignore", d.Paths.Ignore)

	v.SetDefault("storage.path", d.Storage.Path)

	_ = v.BindEnv("embedding.provider")
	_ = v.BindEnv("embedding.local.model")
	_ = v.BindEnv("embedding.ollama.baseUrl")
	_ = v.BindEnv("storage.path")
}
