// Package notifier delivers per-source diffs to the configured channel.
package notifier

import (
	"context"
	"log/slog"

	"jobwatch/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes the diff to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs every change via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs each added posting and each removed identity.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Send(_ context.Context, sourceKey string, diff model.DiffResult) error {
	for _, p := range diff.Added {
		args := []any{"source", sourceKey, "title", p.Title, "url", p.URL}
		if p.Team != "" {
			args = append(args, "team", p.Team)
		}
		if p.Location != "" {
			args = append(args, "location", p.Location)
		}
		if p.PostedDate != nil {
			args = append(args, "posted_date", *p.PostedDate)
		}
		n.logger.Info("new posting", args...)
	}
	for _, id := range diff.Removed {
		n.logger.Info("posting removed", "source", sourceKey, "identity", id)
	}
	return nil
}
