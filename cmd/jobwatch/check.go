package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobwatch/internal/blob"
	"jobwatch/internal/notifier"
	"jobwatch/internal/runner"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run once against an in-memory store, exit",
	Long:  "Dry run: fetches every enabled source and logs what it found without touching stored snapshots or sending notifications.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: snapshots stay in memory, notifications go to the log")

	blobs := blob.NewMemStore()
	n := notifier.NewLogNotifier(logger)
	r, err := buildRunner(cfg, blobs, n, logger)
	if err != nil {
		logger.Error("failed to build runner", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := r.RunAll(ctx)
	for _, res := range results {
		logger.Info("check result",
			"source", res.Source,
			"outcome", res.Outcome,
			"added", res.Added,
			"removed", res.Removed,
			"unchanged", res.Unchanged,
		)
	}
	if runner.AnyFailed(results) {
		os.Exit(1)
	}

	logger.Info("check complete")
	return nil
}
