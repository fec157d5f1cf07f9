package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repoindex/semindex/internal/config"
	"github.com/repoindex/semindex/internal/search"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the repository index with a natural-language query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
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

	svc := search.New(db, oracle)
	results, err := svc.Query(ctx, args[0], search.Options{Limit: searchLimit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. %s (%.3f)\n   %s\n", i+1, r.RelativePath, r.Similarity, truncate(r.Content, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
