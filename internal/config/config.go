package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobwatch pipeline.
type Config struct {
	WatchInterval     time.Duration // ticker period for watch mode
	RunTimeout        time.Duration // deadline for one full run, 0 = none
	SourceConcurrency int           // sources run in parallel
	Sources           []SourceConfig
	Storage           StorageConfig
	Notification      NotificationConfig
	Fetch             FetchConfig
	Retry             RetryConfig
}

// SourceConfig describes a single site to watch.
type SourceConfig struct {
	Name              string        // source key, also the default snapshot key
	Adapter           string        // "anthropic", "openai", or "greenhouse"
	URL               string        // listing URL (HTML adapters)
	BoardToken        string        // greenhouse board token
	SnapshotKey       string        // overrides Name as the blob key
	Render            bool          // fetch the listing through a headless browser
	Enabled           bool
	FetchDetails      bool
	DetailConcurrency int
	MaxDetails        int // cap on detail fetches per run, 0 = no cap
	Profile           ProfileConfig
}

// ProfileConfig overrides parts of the default browser identity per source.
type ProfileConfig struct {
	UserAgent      string `yaml:"user_agent"`
	AcceptLanguage string `yaml:"accept_language"`
	Referrer       string `yaml:"referrer"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "fs", "sqlite", or "memory"
	Dir     string `yaml:"dir"`     // required for fs
	Path    string `yaml:"path"`    // required for sqlite
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// FetchConfig tunes the shared HTTP client posture.
type FetchConfig struct {
	MinDelay  time.Duration // lower bound of the randomized gap between requests
	MaxDelay  time.Duration // upper bound
	Timeout   time.Duration // per-request timeout
	HostRate  float64       // sustained requests/sec per host
	HostBurst int
}

// RetryConfig tunes the retry policy applied to fetches.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	Cooldown   time.Duration
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations
// as strings).
type rawConfig struct {
	WatchInterval     string             `yaml:"watch_interval"`
	RunTimeout        string             `yaml:"run_timeout"`
	SourceConcurrency int                `yaml:"source_concurrency"`
	Sources           []rawSourceConfig  `yaml:"sources"`
	Storage           StorageConfig      `yaml:"storage"`
	Notification      NotificationConfig `yaml:"notification"`
	Fetch             rawFetchConfig     `yaml:"fetch"`
	Retry             rawRetryConfig     `yaml:"retry"`
}

type rawSourceConfig struct {
	Name              string        `yaml:"name"`
	Adapter           string        `yaml:"adapter"`
	URL               string        `yaml:"url"`
	BoardToken        string        `yaml:"board_token"`
	SnapshotKey       string        `yaml:"snapshot_key"`
	Render            bool          `yaml:"render"`
	Enabled           bool          `yaml:"enabled"`
	FetchDetails      bool          `yaml:"fetch_details"`
	DetailConcurrency int           `yaml:"detail_concurrency"`
	MaxDetails        int           `yaml:"max_details"`
	Profile           ProfileConfig `yaml:"profile"`
}

type rawFetchConfig struct {
	MinDelay  string  `yaml:"min_delay"`
	MaxDelay  string  `yaml:"max_delay"`
	Timeout   string  `yaml:"timeout"`
	HostRate  float64 `yaml:"host_rate"`
	HostBurst int     `yaml:"host_burst"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
	Cooldown   string `yaml:"cooldown"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. ${VAR} references in the file are expanded from the
// environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 30 * time.Minute
	if raw.WatchInterval != "" {
		interval, err = time.ParseDuration(raw.WatchInterval)
		if err != nil {
			return nil, fmt.Errorf("parse watch_interval %q: %w", raw.WatchInterval, err)
		}
	}

	var runTimeout time.Duration
	if raw.RunTimeout != "" {
		runTimeout, err = time.ParseDuration(raw.RunTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse run_timeout %q: %w", raw.RunTimeout, err)
		}
	}

	fetch, err := parseFetch(raw.Fetch)
	if err != nil {
		return nil, err
	}
	retry, err := parseRetry(raw.Retry)
	if err != nil {
		return nil, err
	}

	concurrency := raw.SourceConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	storage := raw.Storage
	if storage.Backend == "" {
		storage.Backend = "fs"
	}
	if storage.Backend == "fs" && storage.Dir == "" {
		storage.Dir = "snapshots"
	}

	sources := make([]SourceConfig, 0, len(raw.Sources))
	for _, rs := range raw.Sources {
		src := SourceConfig{
			Name:              rs.Name,
			Adapter:           rs.Adapter,
			URL:               rs.URL,
			BoardToken:        rs.BoardToken,
			SnapshotKey:       rs.SnapshotKey,
			Render:            rs.Render,
			Enabled:           rs.Enabled,
			FetchDetails:      rs.FetchDetails,
			DetailConcurrency: rs.DetailConcurrency,
			MaxDetails:        rs.MaxDetails,
			Profile:           rs.Profile,
		}
		if src.SnapshotKey == "" {
			src.SnapshotKey = src.Name
		}
		if src.DetailConcurrency <= 0 {
			src.DetailConcurrency = 2
		}
		sources = append(sources, src)
	}

	cfg := &Config{
		WatchInterval:     interval,
		RunTimeout:        runTimeout,
		SourceConcurrency: concurrency,
		Sources:           sources,
		Storage:           storage,
		Notification:      raw.Notification,
		Fetch:             fetch,
		Retry:             retry,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseFetch(raw rawFetchConfig) (FetchConfig, error) {
	fetch := FetchConfig{
		MinDelay:  3 * time.Second,
		MaxDelay:  8 * time.Second,
		Timeout:   30 * time.Second,
		HostRate:  raw.HostRate,
		HostBurst: raw.HostBurst,
	}
	if fetch.HostRate <= 0 {
		fetch.HostRate = 0.5
	}
	if fetch.HostBurst <= 0 {
		fetch.HostBurst = 1
	}

	var err error
	if raw.MinDelay != "" {
		if fetch.MinDelay, err = time.ParseDuration(raw.MinDelay); err != nil {
			return fetch, fmt.Errorf("parse fetch.min_delay %q: %w", raw.MinDelay, err)
		}
	}
	if raw.MaxDelay != "" {
		if fetch.MaxDelay, err = time.ParseDuration(raw.MaxDelay); err != nil {
			return fetch, fmt.Errorf("parse fetch.max_delay %q: %w", raw.MaxDelay, err)
		}
	}
	if raw.Timeout != "" {
		if fetch.Timeout, err = time.ParseDuration(raw.Timeout); err != nil {
			return fetch, fmt.Errorf("parse fetch.timeout %q: %w", raw.Timeout, err)
		}
	}
	return fetch, nil
}

func parseRetry(raw rawRetryConfig) (RetryConfig, error) {
	retry := RetryConfig{
		MaxRetries: 2,
		BaseDelay:  5 * time.Second,
		Cooldown:   60 * time.Second,
	}
	if raw.MaxRetries != nil {
		retry.MaxRetries = *raw.MaxRetries
	}

	var err error
	if raw.BaseDelay != "" {
		if retry.BaseDelay, err = time.ParseDuration(raw.BaseDelay); err != nil {
			return retry, fmt.Errorf("parse retry.base_delay %q: %w", raw.BaseDelay, err)
		}
	}
	if raw.Cooldown != "" {
		if retry.Cooldown, err = time.ParseDuration(raw.Cooldown); err != nil {
			return retry, fmt.Errorf("parse retry.cooldown %q: %w", raw.Cooldown, err)
		}
	}
	return retry, nil
}

func validate(cfg *Config) error {
	if cfg.WatchInterval <= 0 {
		return fmt.Errorf("watch_interval must be positive, got %v", cfg.WatchInterval)
	}
	if cfg.Fetch.MinDelay > cfg.Fetch.MaxDelay {
		return fmt.Errorf("fetch.min_delay %v exceeds fetch.max_delay %v", cfg.Fetch.MinDelay, cfg.Fetch.MaxDelay)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}

	switch cfg.Storage.Backend {
	case "fs":
		if cfg.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the fs backend")
		}
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.backend %q (want fs, sqlite, or memory)", cfg.Storage.Backend)
	}

	if cfg.Notification.Type == "slack" {
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	}

	enabled := 0
	seen := make(map[string]bool)
	seenKeys := make(map[string]string)
	for i, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		seen[src.Name] = true

		// Snapshot keys must be unique too: two sources sharing a key would
		// write the same blob from parallel runners.
		if other, ok := seenKeys[src.SnapshotKey]; ok {
			return fmt.Errorf("source %q: snapshot_key %q already used by source %q", src.Name, src.SnapshotKey, other)
		}
		seenKeys[src.SnapshotKey] = src.Name

		switch src.Adapter {
		case "anthropic", "openai":
			if src.URL == "" {
				return fmt.Errorf("source %q: url is required for the %s adapter", src.Name, src.Adapter)
			}
		case "greenhouse":
			if src.BoardToken == "" {
				return fmt.Errorf("source %q: board_token is required for the greenhouse adapter", src.Name)
			}
		default:
			return fmt.Errorf("source %q: unknown adapter %q", src.Name, src.Adapter)
		}

		if src.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	return nil
}

// EnabledSources returns only the sources marked enabled, in config order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, src := range c.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}
