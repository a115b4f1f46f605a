package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your files",
	Long: `Retrieves the most relevant passages from your index and asks the
reasoning model for a grounded answer. Claims are cited back to the
file, page or timestamp they came from.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askConversation string
	askDocuments    []string
	askShowSources  bool
	askMaxChunks    int
)

func init() {
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "Continue an existing conversation")
	askCmd.Flags().StringSliceVarP(&askDocuments, "document", "d", nil, "Restrict to document IDs (repeatable)")
	askCmd.Flags().BoolVarP(&askShowSources, "sources", "s", false, "Also print every retrieved passage")
	askCmd.Flags().IntVarP(&askMaxChunks, "max-chunks", "m", 0, "Override the configured context chunk budget")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	question := strings.Join(args, " ")

	answer, err := answerService.QueryWithSources(cmd.Context(), question, askConversation, askDocuments, askMaxChunks)
	if err != nil {
		return fmt.Errorf("asking failed: %w", err)
	}

	cmd.Println(answer.Content)

	if len(answer.Citations) > 0 {
		cmd.Println("\nCitations:")
		for _, citation := range answer.Citations {
			cmd.Printf("  [%d] %s%s\n", citation.ChunkID, citation.DocumentTitle, citationAnchor(citation))
			cmd.Printf("      %s\n", excerpt(citation.ContentSnippet, 120))
		}
	}

	if askShowSources && len(answer.Sources) > 0 {
		cmd.Println("\nRetrieved passages:")
		for _, source := range answer.Sources {
			cmd.Printf("  [%d] %s (score %.4f)\n", source.Chunk.ID, source.DocumentTitle, source.Score)
		}
	}

	cmd.Printf("\nConversation: %s\n", answer.ConversationID)
	return nil
}

// citationAnchor renders a citation's page or timestamp, when present.
func citationAnchor(citation domain.Citation) string {
	if citation.PageNumber != nil {
		return fmt.Sprintf(", page %d", *citation.PageNumber)
	}
	if citation.Timestamp != nil {
		return ", at " + formatTimestamp(*citation.Timestamp)
	}
	return ""
}

// anchorSuffix renders a search result's anchor, when present.
func anchorSuffix(result domain.ChunkWithScore) string {
	if result.Chunk.PageNumber != nil {
		return fmt.Sprintf(", page %d", *result.Chunk.PageNumber)
	}
	if result.Chunk.TimestampStart != nil {
		return ", at " + formatTimestamp(*result.Chunk.TimestampStart)
	}
	return ""
}

// formatTimestamp renders seconds as m:ss or h:mm:ss.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
