package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search your indexed files",
	Long: `Runs a hybrid search: keyword matching and semantic similarity are
fused into one ranking. Without an API key only keyword matching runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var (
	searchLimit     int
	searchDocuments []string
)

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")
	searchCmd.Flags().StringSliceVarP(&searchDocuments, "document", "d", nil, "Restrict to document IDs (repeatable)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	query := strings.Join(args, " ")

	results, err := searchService.HybridSearch(cmd.Context(), query, searchLimit, searchDocuments)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		cmd.Println("No results.")
		return nil
	}

	for i, result := range results {
		cmd.Printf("%d. %s (score %.4f)\n", i+1, result.DocumentTitle, result.Score)
		cmd.Printf("   %s%s\n", result.FilePath, anchorSuffix(result))
		cmd.Printf("   %s\n\n", excerpt(result.Chunk.Content, 160))
	}

	cmd.Printf("%d results\n", len(results))
	return nil
}

// excerpt collapses whitespace and truncates for single-line display.
func excerpt(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
