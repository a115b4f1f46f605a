package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage indexed documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsReingestCmd = &cobra.Command{
	Use:   "reingest [doc-id]",
	Short: "Re-run the pipeline for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsReingest,
}

var documentsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the corpus",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsStats,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsReingestCmd)
	documentsCmd.AddCommand(documentsStatsCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	docs, err := ingestionService.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed yet.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title:  %s\n", docs[i].Title)
		cmd.Printf("    Path:   %s\n", docs[i].FilePath)
		cmd.Printf("    Type:   %s\n", docs[i].FileType)
		cmd.Printf("    Status: %s", docs[i].Status)
		if docs[i].ErrorMessage != "" {
			cmd.Printf(" (%s)", docs[i].ErrorMessage)
		}
		cmd.Println()
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestionService.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}

func runDocumentsReingest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	doc, err := ingestionService.ReingestDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to reingest document: %w", err)
	}

	cmd.Printf("Document %s reingested (%s).\n", doc.ID, doc.Status)
	return nil
}

func runDocumentsStats(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	stats, err := ingestionService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	cmd.Printf("Documents: %d total\n", stats.TotalDocuments)
	cmd.Printf("  Completed: %d\n", stats.CompletedDocuments)
	cmd.Printf("  Failed:    %d\n", stats.FailedDocuments)
	cmd.Printf("  Pending:   %d\n", stats.PendingDocuments)
	cmd.Printf("Chunks:    %d\n", stats.TotalChunks)
	return nil
}
