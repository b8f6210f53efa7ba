package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"jobwatch/internal/browse"
	"jobwatch/internal/model"
	"jobwatch/internal/snapshot"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored snapshots interactively",
	Long:  "Opens an interactive viewer over the stored snapshots: pick a source, then walk its postings and details.",
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	blobs, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	snaps := snapshot.New(blobs, logger)

	// Picker → posting list, looping back on esc until the user quits.
	for {
		idx, err := browse.RunSourcePicker(cfg.Sources)
		if err != nil {
			return err
		}
		if idx < 0 {
			return nil
		}

		src := cfg.Sources[idx]
		coll, err := snaps.Load(src.SnapshotKey)
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("no snapshot for source yet, run a cycle first", "source", src.Name)
			continue
		}
		if err != nil {
			logger.Error("failed to load snapshot", "source", src.Name, "error", err)
			continue
		}

		wantQuit, err := browse.RunBrowseTUI(coll)
		if err != nil {
			return err
		}
		if wantQuit {
			return nil
		}
	}
}
