package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jobwatch/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }

func samplePosting(title string) model.Posting {
	return model.Posting{
		Identity:   "https://example.com/jobs/123",
		Title:      title,
		Team:       "Platform",
		Location:   "Remote",
		URL:        "https://example.com/jobs/123",
		PostedDate: timePtr(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)),
		FetchedAt:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestSlackSend_EmptyDiff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Send(context.Background(), "example", model.DiffResult{}); err != nil {
		t.Errorf("Send(empty diff) = %v, want nil", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackSend_AddedPosting(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	diff := model.DiffResult{Added: []model.Posting{samplePosting("Backend Engineer")}}

	if err := n.Send(context.Background(), "example", diff); err != nil {
		t.Fatalf("Send() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	header := payload.Blocks[0]
	if header.Text.Text != "🆕 Example: Backend Engineer" {
		t.Errorf("header text = %q, want source: title", header.Text.Text)
	}
	teamField := payload.Blocks[1].Fields[0]
	if !strings.Contains(teamField.Text, "Platform") {
		t.Errorf("team field = %q, want it to carry the team", teamField.Text)
	}

	var button *slackElement
	for _, b := range payload.Blocks {
		if b.Type == "actions" && len(b.Elements) > 0 {
			button = &b.Elements[0]
		}
	}
	if button == nil || button.URL != "https://example.com/jobs/123" {
		t.Errorf("missing or wrong posting button: %+v", button)
	}
}

func TestSlackSend_RemovedSummary(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	diff := model.DiffResult{Removed: []string{
		"https://example.com/jobs/1",
		"https://example.com/jobs/2",
	}}

	if err := n.Send(context.Background(), "example", diff); err != nil {
		t.Fatalf("Send() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !strings.Contains(payload.Blocks[0].Text.Text, "postings removed") {
		t.Errorf("header = %q, want removal header", payload.Blocks[0].Text.Text)
	}
	section := payload.Blocks[1].Text.Text
	if !strings.Contains(section, "jobs/1") || !strings.Contains(section, "jobs/2") {
		t.Errorf("removal section = %q, want both identities listed", section)
	}
}

func TestSlackSend_AllFailuresReturnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	diff := model.DiffResult{Added: []model.Posting{samplePosting("Engineer")}}

	if err := n.Send(context.Background(), "example", diff); err == nil {
		t.Error("Send() = nil, want error when every message fails")
	}
}

func TestSlackSend_RateLimitedThenRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	diff := model.DiffResult{Added: []model.Posting{samplePosting("Engineer")}}

	if err := n.Send(context.Background(), "example", diff); err != nil {
		t.Fatalf("Send() = %v, want nil after retry", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls, got %d", c)
	}
}
