package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"jobwatch/internal/adapter"
	"jobwatch/internal/blob"
	"jobwatch/internal/config"
	"jobwatch/internal/fetch"
	"jobwatch/internal/model"
	"jobwatch/internal/notifier"
	"jobwatch/internal/retry"
	"jobwatch/internal/runner"
	"jobwatch/internal/snapshot"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobwatch",
	Short: "Watch career pages for posting changes",
	Long:  "jobwatch scrapes configured career pages, diffs them against stored snapshots, and alerts on new or removed postings.",
	// Default to `watch` so that `jobwatch` with no args runs the daemon.
	RunE: runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBWATCH_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBWATCH_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBWATCH_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// openStore builds the configured blob backend. The returned closer is a
// no-op for backends without a connection to release.
func openStore(cfg *config.Config) (model.BlobStore, func() error, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		s, err := blob.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, s.Close, nil
	case "memory":
		return blob.NewMemStore(), func() error { return nil }, nil
	default:
		s, err := blob.NewFSStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening fs store: %w", err)
		}
		return s, func() error { return nil }, nil
	}
}

func setupNotifier(cfg *config.Config, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, &http.Client{Timeout: cfg.Fetch.Timeout}, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// buildAdapter constructs the per-site strategy for one source. The listing
// getter goes through a headless browser when the source needs rendering;
// detail pages always use the plain client.
func buildAdapter(src config.SourceConfig, cfg *config.Config, hosts *fetch.HostLimiter, logger *slog.Logger) (model.SourceAdapter, error) {
	profile := fetch.Profile{
		UserAgent:      src.Profile.UserAgent,
		AcceptLanguage: src.Profile.AcceptLanguage,
		Referrer:       src.Profile.Referrer,
	}
	client, err := fetch.NewClient(profile, cfg.Fetch.MinDelay, cfg.Fetch.MaxDelay, cfg.Fetch.Timeout, hosts, logger)
	if err != nil {
		return nil, fmt.Errorf("building fetch client for %s: %w", src.Name, err)
	}

	var listing adapter.Getter = client
	if src.Render {
		listing = fetch.NewRenderer(cfg.Fetch.Timeout, logger)
	}

	switch src.Adapter {
	case "anthropic":
		return adapter.NewAnthropicAdapter(src.Name, src.URL, listing, client, logger)
	case "openai":
		return adapter.NewOpenAIAdapter(src.Name, src.URL, listing, client, logger)
	case "greenhouse":
		return adapter.NewGreenhouseAdapter(src.Name, src.BoardToken, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q for source %s", src.Adapter, src.Name)
	}
}

func buildRunner(cfg *config.Config, blobs model.BlobStore, n model.Notifier, logger *slog.Logger) (*runner.Runner, error) {
	snaps := snapshot.New(blobs, logger)
	// All sources share one per-host limiter so two sources on the same
	// host cannot double the request rate.
	hosts := fetch.NewHostLimiter(cfg.Fetch.HostRate, cfg.Fetch.HostBurst)
	policy := retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		Cooldown:   cfg.Retry.Cooldown,
	}

	var sources []*runner.SourceRunner
	for _, src := range cfg.EnabledSources() {
		a, err := buildAdapter(src, cfg, hosts, logger)
		if err != nil {
			return nil, err
		}
		opts := runner.Options{
			SnapshotKey: src.SnapshotKey,
			Policy:      policy,
			FetchDetail: src.FetchDetails,
			DetailLimit: src.DetailConcurrency,
			MaxDetails:  src.MaxDetails,
		}
		sources = append(sources, runner.NewSourceRunner(a, snaps, n, opts, logger))
		logger.Info("registered source", "name", src.Name, "adapter", src.Adapter, "render", src.Render)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources to watch")
	}

	return runner.New(sources, cfg.SourceConcurrency, cfg.RunTimeout, logger), nil
}
