// Package cli wires the semindex commands (index, search) on top of
// cobra, following the reference CLI's root-command-plus-subcommand
// layout. Watching for changes is the index command's --watch flag.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "semindex",
	Short: "semindex - semantic search over a code repository",
	Long: `semindex indexes a code repository into chunks with vector
embeddings and answers natural-language nearest-neighbor queries over
them.`,
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
