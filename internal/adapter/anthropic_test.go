package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"jobwatch/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGetter serves canned bodies keyed by URL.
type fakeGetter struct {
	pages map[string][]byte
	err   error
}

func (f *fakeGetter) Get(_ context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no canned page for %s", url)
	}
	return body, nil
}

const anthropicListingHTML = `<html><body>
<ul>
  <li>
    <a href="/jobs/research-engineer"><h3>Research Engineer</h3></a>
    <span class="team-name">Research</span>
    <span class="job-location">SF</span>
  </li>
  <li>
    <a href="/jobs/security-engineer"><h3>Security Engineer</h3></a>
    <span class="team-name">Security</span>
  </li>
  <li>
    <a href="/jobs/research-engineer"><h3>Research Engineer</h3></a>
  </li>
  <li>
    <a href="/jobs/x"><h3>x</h3></a>
  </li>
</ul>
<a href="/jobs/privacy-policy">Privacy Policy</a>
</body></html>`

func newAnthropicTest(t *testing.T, getter Getter) *AnthropicAdapter {
	t.Helper()
	a, err := NewAnthropicAdapter("anthropic", "https://www.anthropic.com/jobs", getter, getter, discardLogger())
	if err != nil {
		t.Fatalf("creating adapter: %v", err)
	}
	return a
}

func TestAnthropicFetchListing(t *testing.T) {
	getter := &fakeGetter{pages: map[string][]byte{
		"https://www.anthropic.com/jobs": []byte(anthropicListingHTML),
	}}
	a := newAnthropicTest(t, getter)

	postings, err := a.FetchListing(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate, junk anchor, and too-short title all skipped.
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d: %+v", len(postings), postings)
	}

	first := postings[0]
	if first.Identity != "https://www.anthropic.com/jobs/research-engineer" {
		t.Fatalf("identity not resolved to absolute url: %q", first.Identity)
	}
	if first.Title != "Research Engineer" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.Team != "Research" {
		t.Fatalf("team = %q", first.Team)
	}
	if first.Location != "San Francisco" {
		t.Fatalf("location not canonicalized: %q", first.Location)
	}
	if first.FetchedAt.IsZero() {
		t.Fatalf("fetchedAt not stamped")
	}
}

func TestAnthropicFetchListing_EmptyPageIsValid(t *testing.T) {
	getter := &fakeGetter{pages: map[string][]byte{
		"https://www.anthropic.com/jobs": []byte("<html><body><p>No open roles right now.</p></body></html>"),
	}}
	a := newAnthropicTest(t, getter)

	postings, err := a.FetchListing(context.Background())
	if err != nil {
		t.Fatalf("zero postings must not be an error: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("expected no postings, got %+v", postings)
	}
}

func TestAnthropicFetchDetail(t *testing.T) {
	jobURL := "https://www.anthropic.com/jobs/research-engineer"
	page := `<html><body><main>
		<div class="job-description"><p>` + strings.Repeat("Build safe AI systems. ", 20) + `</p></div>
		<h3>Requirements</h3>
		<div class="requirements">Strong Go and distributed systems background, with experience operating production services.</div>
		<div class="location">SF</div>
	</main></body></html>`
	getter := &fakeGetter{pages: map[string][]byte{jobURL: []byte(page)}}
	a := newAnthropicTest(t, getter)

	d, err := a.FetchDetail(context.Background(), model.Posting{Identity: jobURL, URL: jobURL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Unavailable {
		t.Fatalf("real page marked unavailable")
	}
	if !strings.Contains(d.Text, "Build safe AI systems") {
		t.Fatalf("description not extracted: %q", d.Text)
	}
	if !strings.Contains(d.Requirements, "distributed systems") {
		t.Fatalf("requirements not extracted: %q", d.Requirements)
	}
	if d.Location != "San Francisco" {
		t.Fatalf("location = %q", d.Location)
	}
}

func TestAnthropicFetchDetail_ChallengePageIsUnavailable(t *testing.T) {
	jobURL := "https://www.anthropic.com/jobs/protected"
	getter := &fakeGetter{pages: map[string][]byte{
		jobURL: []byte("<html><title>Just a moment...</title><body>Checking your browser</body></html>"),
	}}
	a := newAnthropicTest(t, getter)

	d, err := a.FetchDetail(context.Background(), model.Posting{Identity: jobURL, URL: jobURL})
	if err != nil {
		t.Fatalf("challenge page must not be an error: %v", err)
	}
	if !d.Unavailable {
		t.Fatalf("expected Unavailable detail, got %+v", d)
	}
}

func TestAnthropicFetchDetail_ShortBodyIsUnavailable(t *testing.T) {
	jobURL := "https://www.anthropic.com/jobs/stub"
	getter := &fakeGetter{pages: map[string][]byte{jobURL: []byte("<html></html>")}}
	a := newAnthropicTest(t, getter)

	d, err := a.FetchDetail(context.Background(), model.Posting{Identity: jobURL, URL: jobURL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Unavailable {
		t.Fatalf("stub body should be unavailable, got %+v", d)
	}
}

func TestAnthropicFetchDetail_FetchErrorPropagates(t *testing.T) {
	getter := &fakeGetter{err: &model.FetchError{Kind: model.FetchBlocked, URL: "x"}}
	a := newAnthropicTest(t, getter)

	_, err := a.FetchDetail(context.Background(), model.Posting{Identity: "x", URL: "x"})
	if model.FetchKindOf(err) != model.FetchBlocked {
		t.Fatalf("classification lost through adapter: %v", err)
	}
}
