package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobwatch/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one cycle over all sources, then exit",
	Long:  "One-shot run: fetches every enabled source, diffs against stored snapshots, persists, and notifies. Exits non-zero if any source fails.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
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

	n := setupNotifier(cfg, logger)
	r, err := buildRunner(cfg, blobs, n, logger)
	if err != nil {
		logger.Error("failed to build runner", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := r.RunAll(ctx)
	if runner.AnyFailed(results) {
		closeStore()
		os.Exit(1)
	}
	return nil
}
