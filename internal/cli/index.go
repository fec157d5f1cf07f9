package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/repoindex/semindex/internal/config"
	"github.com/repoindex/semindex/internal/embedding"
	"github.com/repoindex/semindex/internal/ingest"
	"github.com/repoindex/semindex/internal/storage"
	"github.com/repoindex/semindex/internal/watch"
)

var (
	quietFlag  bool
	watchFlag  bool
	resumeFlag bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the repository for semantic search",
	Long: `Index walks the current repository, classifies each file,
chunks text/code content, generates embeddings, and persists the result
so it can be searched.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "disable progress output")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "watch for changes and reindex incrementally")
	indexCmd.Flags().BoolVar(&resumeFlag, "resume", false, "resume an interrupted run instead of running full delta analysis")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, oracle, err := openStore(rootDir, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer oracle.Close()

	opts := ingestOptionsFromConfig(rootDir, cfg)
	opts.Resume = resumeFlag
	opts.Progress = newTextProgressReporter(quietFlag)

	orch := ingest.New(db, oracle, opts)
	repoName := filepath.Base(rootDir)

	if _, err := orch.Run(ctx, repoName, rootDir); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if !watchFlag {
		return nil
	}

	if !quietFlag {
		fmt.Println("Watching for changes (Ctrl+C to stop)...")
	}
	trig, err := watch.New(rootDir, 0)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer trig.Stop()

	deltaOpts := opts
	deltaOpts.Resume = false
	deltaOrch := ingest.New(db, oracle, deltaOpts)

	trig.Start(ctx, func(paths []string) {
		if !quietFlag {
			fmt.Printf("Change detected in %d file(s), reindexing...\n", len(paths))
		}
		if _, err := deltaOrch.Run(ctx, repoName, rootDir); err != nil {
			fmt.Fprintf(os.Stderr, "reindex failed: %v\n", err)
		}
	})

	<-ctx.Done()
	return nil
}

func openStore(rootDir string, cfg *config.Config) (*storage.DB, embedding.Oracle, error) {
	dbPath := cfg.Storage.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(rootDir, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	dims := cfg.Embedding.Local.Dimensions
	if cfg.Embedding.Provider == "ollama" {
		dims = cfg.Embedding.Ollama.Dimensions
	}

	db, err := storage.Open(dbPath, dims)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	oracle, err := embedding.New(embedding.FactoryConfig{
		Provider: cfg.Embedding.Provider,
		Local: embedding.LocalConfig{
			ModelID:       cfg.Embedding.Local.Model,
			ModelCacheDir: cfg.Embedding.Local.ModelCacheDir,
			Dimensions:    cfg.Embedding.Local.Dimensions,
			MaxConcurrent: cfg.Embedding.Local.MaxConcurrent,
		},
		Ollama: embedding.OllamaConfig{
			BaseURL:       cfg.Embedding.Ollama.BaseURL,
			Model:         cfg.Embedding.Ollama.Model,
			Dimensions:    cfg.Embedding.Ollama.Dimensions,
			MaxConcurrent: cfg.Embedding.Ollama.MaxConcurrent,
		},
		EnableQueryCache: true,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create embedding oracle: %w", err)
	}
	return db, oracle, nil
}

func ingestOptionsFromConfig(rootDir string, cfg *config.Config) ingest.Options {
	return ingest.Options{
		MaxFileSizeBytes: cfg.Processing.MaxFileSizeBytes,
		TargetTokens:     cfg.Processing.TokenTarget,
		OverlapTokens:    cfg.Processing.OverlapTokens,
		MaxChunksPerFile: cfg.Processing.MaxChunksPerFile,
		SkipLargeFiles:   cfg.Processing.SkipLargeFiles,
		IgnoreGlobs:      cfg.Paths.Ignore,
		LogDir:           filepath.Join(rootDir, ".semindex", "logs"),
	}
}
