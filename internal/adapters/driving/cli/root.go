// Package cli implements the command line driving adapter. Commands
// talk to the core services through the driving ports; wiring happens
// once in the root command's PersistentPreRunE.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/recall-cli/internal/adapters/driven/config/file"
	embeddinggemini "github.com/custodia-labs/recall-cli/internal/adapters/driven/embedding/gemini"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/embedding/ratelimited"
	llmgemini "github.com/custodia-labs/recall-cli/internal/adapters/driven/llm/gemini"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall-cli/internal/chunker"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/core/services"
	"github.com/custodia-labs/recall-cli/internal/extractors"
	"github.com/custodia-labs/recall-cli/internal/extractors/image"
	"github.com/custodia-labs/recall-cli/internal/extractors/media"
	"github.com/custodia-labs/recall-cli/internal/extractors/pdf"
	"github.com/custodia-labs/recall-cli/internal/extractors/plaintext"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Persistent flags.
var (
	verbose   bool
	dataDir   string
	configDir string
)

// Services the commands run against. Wired by initServices; tests
// inject their own before calling Execute.
var (
	ingestionService driving.IngestionService
	searchService    driving.SearchService
	answerService    driving.AnswerService
	configStore      driven.ConfigStore
)

// store is kept for closing after the command finishes.
var store *sqlite.Store

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Search and question your personal files",
	Long: `Recall ingests your documents, audio, video and images into a local
index and answers searches and questions against them. All content stays
on your machine; only embedding and generation calls leave it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return initServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Database directory (default ~/.recall/data)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (default ~/.recall)")
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if store != nil {
			store.Close()
		}
	}()
	return rootCmd.Execute()
}

// initServices wires adapters into the core services. A test that has
// already injected services skips the wiring.
func initServices() error {
	if ingestionService != nil {
		return nil
	}

	cfgStore, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	configStore = cfgStore

	settings, err := cfgStore.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	store, err = sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// Provider-backed services need an API key; without one ingestion
	// of text still works and search degrades to lexical only.
	var embedder driven.EmbeddingService
	var generator driven.GenerationService
	if settings.APIKey != "" {
		raw, err := embeddinggemini.NewEmbeddingService(embeddinggemini.Config{
			APIKey: settings.APIKey,
			Model:  settings.EmbeddingModel,
		})
		if err != nil {
			return fmt.Errorf("creating embedding service: %w", err)
		}
		embedder = ratelimited.New(raw, settings.RequestsPerMinute)

		generator, err = llmgemini.NewGenerationService(llmgemini.Config{
			APIKey: settings.APIKey,
			Model:  settings.ReasoningModel,
		})
		if err != nil {
			return fmt.Errorf("creating generation service: %w", err)
		}
	} else {
		logger.Warn("No API key configured; embeddings, answers and media ingestion are disabled")
	}

	chk, err := chunker.New(
		chunker.WithChunkSize(settings.ChunkSize),
		chunker.WithOverlap(settings.ChunkOverlap),
	)
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	registry := extractors.NewRegistry(
		plaintext.New(),
		pdf.New(pdf.WithVision(generator)),
		media.New(generator, media.WithSegmentDuration(settings.VideoSegmentDuration)),
		image.New(generator),
	)

	admission := services.NewAdmissionService(store.DocumentStore(), cfgStore)

	ingestionService = services.NewIngestionService(
		store.DocumentStore(), store.IndexWriter(), registry, chk, embedder, cfgStore, admission)
	searchService = services.NewSearchService(
		store.DocumentStore(), store.SearchEngine(), store.VectorIndex(), embedder)
	answerService = services.NewAnswerService(
		searchService, generator, store.ConversationStore(), cfgStore)

	return nil
}
