package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [folder...]",
	Short: "Watch folders and ingest changed files",
	Long: `Watches the given folders (or the configured watched_folders when
none are given) and ingests new or changed files automatically. Runs
until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	folders := args
	if len(folders) == 0 && configStore != nil {
		settings, err := configStore.Load()
		if err != nil {
			return err
		}
		folders = settings.WatchedFolders
	}
	if len(folders) == 0 {
		return errors.New("no folders to watch; pass folders or set watched_folders in the config")
	}

	w, err := watcher.New(ingestionService, folders)
	if err != nil {
		return err
	}
	defer w.Stop()

	stopProgress := reportProgress(cmd)
	defer stopProgress()

	w.Start(cmd.Context())
	cmd.Printf("Watching %d folders. Press Ctrl+C to stop.\n", len(folders))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-cmd.Context().Done():
	}

	cmd.Println("Stopping.")
	return nil
}
