package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Settable keys: chunk-size, chunk-overlap, max-context-chunks,
dedupe-context, video-segment-duration, requests-per-minute,
embedding-model, reasoning-model, api-key, license-key, auto-ingest,
max-workers.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configWatchCmd = &cobra.Command{
	Use:   "watch [add|remove] [folder]",
	Short: "Manage watched folders",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigWatch,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configWatchCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	settings, err := configStore.Load()
	if err != nil {
		return err
	}

	cmd.Printf("chunk-size:             %d\n", settings.ChunkSize)
	cmd.Printf("chunk-overlap:          %d\n", settings.ChunkOverlap)
	cmd.Printf("max-context-chunks:     %d\n", settings.MaxContextChunks)
	cmd.Printf("dedupe-context:         %t\n", settings.DedupeContextByDocument)
	cmd.Printf("video-segment-duration: %d\n", settings.VideoSegmentDuration)
	cmd.Printf("requests-per-minute:    %d\n", settings.RequestsPerMinute)
	cmd.Printf("embedding-model:        %s\n", settings.EmbeddingModel)
	cmd.Printf("reasoning-model:        %s\n", settings.ReasoningModel)
	cmd.Printf("api-key:                %s\n", maskSecret(settings.APIKey))
	cmd.Printf("license-key:            %s\n", domain.MaskLicenseKey(settings.LicenseKey))
	cmd.Printf("auto-ingest:            %t\n", settings.AutoIngest)
	cmd.Printf("max-workers:            %d\n", settings.MaxWorkers)
	cmd.Printf("watched-folders:        %s\n", strings.Join(settings.WatchedFolders, ", "))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	settings, err := configStore.Load()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	switch key {
	case "chunk-size":
		settings.ChunkSize, err = strconv.Atoi(value)
	case "chunk-overlap":
		settings.ChunkOverlap, err = strconv.Atoi(value)
	case "max-context-chunks":
		settings.MaxContextChunks, err = strconv.Atoi(value)
	case "dedupe-context":
		settings.DedupeContextByDocument, err = strconv.ParseBool(value)
	case "video-segment-duration":
		settings.VideoSegmentDuration, err = strconv.Atoi(value)
	case "requests-per-minute":
		settings.RequestsPerMinute, err = strconv.Atoi(value)
	case "max-workers":
		settings.MaxWorkers, err = strconv.Atoi(value)
	case "embedding-model":
		settings.EmbeddingModel = value
	case "reasoning-model":
		settings.ReasoningModel = value
	case "api-key":
		settings.APIKey = value
	case "license-key":
		if err := domain.ValidateLicenseKey(value); err != nil {
			return fmt.Errorf("rejected licence key: %w", err)
		}
		settings.LicenseKey = value
	case "auto-ingest":
		settings.AutoIngest, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := configStore.Save(settings.Normalise()); err != nil {
		return err
	}
	cmd.Printf("Set %s.\n", key)
	return nil
}

func runConfigWatch(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	settings, err := configStore.Load()
	if err != nil {
		return err
	}

	action, folder := args[0], args[1]
	switch action {
	case "add":
		for _, existing := range settings.WatchedFolders {
			if existing == folder {
				cmd.Printf("%s is already watched.\n", folder)
				return nil
			}
		}
		settings.WatchedFolders = append(settings.WatchedFolders, folder)
	case "remove":
		kept := settings.WatchedFolders[:0]
		for _, existing := range settings.WatchedFolders {
			if existing != folder {
				kept = append(kept, existing)
			}
		}
		settings.WatchedFolders = kept
	default:
		return fmt.Errorf("unknown action %q, use add or remove", action)
	}

	if err := configStore.Save(settings); err != nil {
		return err
	}
	cmd.Printf("Watched folders: %s\n", strings.Join(settings.WatchedFolders, ", "))
	return nil
}

// maskSecret hides all but the tail of a secret value.
func maskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
