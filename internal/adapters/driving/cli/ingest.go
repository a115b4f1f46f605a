package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest files or directories into the index",
	Long: `Ingests the given files, or every supported file under the given
directories. Unchanged files are skipped, changed files are re-indexed
under the same document.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var (
	ingestQuiet     bool
	ingestRecursive bool
)

func init() {
	ingestCmd.Flags().BoolVarP(&ingestQuiet, "quiet", "q", false, "Suppress per-stage progress output")
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", true, "Descend into subdirectories")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	ctx := cmd.Context()

	var stopProgress func()
	if !ingestQuiet {
		stopProgress = reportProgress(cmd)
		defer stopProgress()
	}

	var failures int
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			cmd.PrintErrf("Skipping %s: %v\n", path, err)
			failures++
			continue
		}

		if info.IsDir() {
			docs, err := ingestionService.IngestDirectory(ctx, path, ingestRecursive)
			if err != nil {
				cmd.PrintErrf("Ingesting directory %s: %v\n", path, err)
				failures++
				continue
			}
			cmd.Printf("Ingested %d documents from %s\n", len(docs), path)
			continue
		}

		doc, err := ingestionService.IngestFile(ctx, path)
		if err != nil {
			if errors.Is(err, domain.ErrAdmissionDenied) {
				return fmt.Errorf("trial limit reached; set a licence key with 'recall config set license-key <key>': %w", err)
			}
			cmd.PrintErrf("Ingesting %s: %v\n", path, err)
			failures++
			continue
		}
		cmd.Printf("Ingested %s (%s)\n", doc.Title, doc.ID)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d paths failed", failures, len(args))
	}
	return nil
}

// reportProgress prints pipeline stage transitions until the returned
// stop function is called.
func reportProgress(cmd *cobra.Command) func() {
	events, cancel := ingestionService.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			switch event.Stage {
			case domain.StatusFailed:
				cmd.PrintErrf("  %s: failed (%s)\n", event.FilePath, event.Message)
			case domain.StatusCompleted:
				cmd.Printf("  %s: done\n", event.FilePath)
			default:
				cmd.Printf("  %s: %s (%.0f%%)\n", event.FilePath, event.Stage, event.Progress*100)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
