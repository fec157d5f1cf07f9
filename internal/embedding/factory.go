package embedding

import "fmt"

// FactoryConfig selects and parameterizes an Oracle backend. It mirrors
// the recognized "embedding.*" configuration options.
type FactoryConfig struct {
	Provider string // "transformers" (local) | "ollama"

	Local LocalConfig
	Ollama OllamaConfig

	EnableQueryCache bool
}

// New constructs an Oracle for the configured provider.
func New(cfg FactoryConfig) (Oracle, error) {
	var oracle Oracle
	switch cfg.Provider {
	case "transformers", "local", "":
		oracle = NewLocalOracle(cfg.Local)
	case "ollama":
		oracle = NewOllamaOracle(cfg.Ollama)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: transformers, ollama)", cfg.Provider)
	}

	if cfg.EnableQueryCache {
		return WithQueryCache(oracle)
	}
	return oracle, nil
}
