package cli

import (
	"fmt"

	"github.com/repoindex/semindex/internal/ingest"
)

// textProgressReporter prints single-line progress to stdout. It is
// silenced entirely by the --quiet flag.
type textProgressReporter struct {
	quiet bool
}

func newTextProgressReporter(quiet bool) *textProgressReporter {
	return &textProgressReporter{quiet: quiet}
}

func (r *textProgressReporter) OnDiscoveryStart() {
	if !r.quiet {
		fmt.Println("Discovering files...")
	}
}

func (r *textProgressReporter) OnDiscoveryComplete(discovered int) {
	if !r.quiet {
		fmt.Printf("Discovered %d files\n", discovered)
	}
}

func (r *textProgressReporter) OnFileProcessingStart(total int) {
	if !r.quiet {
		fmt.Printf("Processing %d files...\n", total)
	}
}

func (r *textProgressReporter) OnFileProcessed(outcome ingest.Outcome) {
	if r.quiet {
		return
	}
	switch outcome.Kind {
	case ingest.Failed:
		fmt.Printf("  error: %s: %v\n", outcome.Path, outcome.Err)
	case ingest.Skipped:
		fmt.Printf("  skip:  %s (%s)\n", outcome.Path, outcome.Reason)
	default:
		fmt.Printf("  ok:    %s\n", outcome.Path)
	}
}

func (r *textProgressReporter) OnEmbeddingStart(totalChunks int) {
	if !r.quiet {
		fmt.Printf("Embedding %d chunks...\n", totalChunks)
	}
}

func (r *textProgressReporter) OnEmbeddingProgress(completed, total int) {
	if !r.quiet {
		fmt.Printf("  embedded %d/%d\n", completed, total)
	}
}

func (r *textProgressReporter) OnComplete(summary *ingest.Summary) {
	if r.quiet {
		return
	}
	skipped := 0
	for _, n := range summary.Skipped {
		skipped += n
	}
	fmt.Printf("Done: %d ingested, %d skipped, %d failed\n", summary.Ingested, skipped, summary.Failed)
	if summary.Failed > 0 {
		fmt.Println("Some files failed to process; re-run with --resume to continue.")
	}
}
