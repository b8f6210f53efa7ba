package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jobwatch/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(DefaultProfile(), 0, 0, 5*time.Second, nil, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
			t.Errorf("expected browser-style user agent, got %q", ua)
		}
		w.Write([]byte("<html><body>jobs</body></html>"))
	}))
	defer srv.Close()

	body, err := newTestClient(t).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(body, []byte("jobs")) {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestGet_GzipDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte("compressed listing"))
		zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	body, err := newTestClient(t).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "compressed listing" {
		t.Fatalf("gzip body not decoded: %q", body)
	}
}

func TestGet_EncodingMismatchIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte("this is not gzip"))
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL)
	if model.FetchKindOf(err) != model.FetchDecodeError {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestGet_ForbiddenIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL)
	if model.FetchKindOf(err) != model.FetchBlocked {
		t.Fatalf("expected Blocked, got %v", err)
	}
}

func TestGet_TooManyRequestsCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL)
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.Kind != model.FetchBlocked {
		t.Fatalf("expected Blocked FetchError, got %v", err)
	}
	if fe.RetryAfter != 30*time.Second {
		t.Fatalf("RetryAfter = %v, want 30s", fe.RetryAfter)
	}
}

func TestGet_ChallengeBodyIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><title>Just a moment...</title></html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL)
	if model.FetchKindOf(err) != model.FetchBlocked {
		t.Fatalf("expected Blocked for challenge body, got %v", err)
	}
}

func TestGet_ServerErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL)
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.Kind != model.FetchNetworkError {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Fatalf("StatusCode = %d", fe.StatusCode)
	}
}

func TestGet_ConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	_, err := newTestClient(t).Get(context.Background(), srv.URL)
	if model.FetchKindOf(err) != model.FetchNetworkError {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestGet_CookiesPersistAcrossCalls(t *testing.T) {
	var sawCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil && c.Value == "abc123" {
			sawCookie = true
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(t)
	if _, err := client.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := client.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !sawCookie {
		t.Fatalf("session cookie was not replayed on the second request")
	}
}

func TestGet_PacingDelaysSecondRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := NewClient(DefaultProfile(), 50*time.Millisecond, 80*time.Millisecond, 5*time.Second, nil, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	start := time.Now()
	if _, err := client.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := client.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("second request not paced: both completed in %v", elapsed)
	}
}

func TestIsChallengePage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"cloudflare interstitial", "<title>Just a moment...</title>", true},
		{"access denied", "Access Denied: you don't have permission", true},
		{"real content", "<html><h1>Open Roles</h1></html>", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsChallengePage([]byte(tc.body)); got != tc.want {
				t.Fatalf("IsChallengePage(%q) = %v, want %v", tc.body, got, tc.want)
			}
		})
	}
}
