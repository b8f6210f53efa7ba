package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"jobwatch/internal/model"
)

func TestLogNotifier_LogsAddedAndRemoved(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := NewLogNotifier(logger)

	diff := model.DiffResult{
		Added:   []model.Posting{samplePosting("Backend Engineer")},
		Removed: []string{"https://example.com/jobs/old"},
	}
	if err := n.Send(context.Background(), "example", diff); err != nil {
		t.Fatalf("Send() = %v, want nil", err)
	}

	out := buf.String()
	if !strings.Contains(out, "new posting") || !strings.Contains(out, "Backend Engineer") {
		t.Errorf("output missing added posting: %q", out)
	}
	if !strings.Contains(out, "posting removed") || !strings.Contains(out, "jobs/old") {
		t.Errorf("output missing removal: %q", out)
	}
}

func TestLogNotifier_EmptyDiffLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.Send(context.Background(), "example", model.DiffResult{}); err != nil {
		t.Fatalf("Send() = %v, want nil", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
