package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"jobwatch/internal/model"
)

// challengeSignatures are body fragments that mark a bot-protection page
// served with a 200 instead of real content.
var challengeSignatures = []string{
	"just a moment",
	"attention required",
	"access denied",
	"cf-challenge",
	"cf-browser-verification",
	"checking your browser",
	"verify you are a human",
}

// maxBodyBytes caps response reads; listing and detail pages are far smaller.
const maxBodyBytes = 8 << 20

// Client performs paced, cookie-persistent retrievals for one source.
//
// Each source gets its own Client so cookie jars and pacing state never leak
// between sources: the jar keeps session-establishing responses honored on
// subsequent calls within a run, and the pacing delay keeps each worker
// polite to its target independently of the others.
type Client struct {
	http     *http.Client
	profile  Profile
	minDelay time.Duration
	maxDelay time.Duration
	hosts    *HostLimiter // shared across clients, may be nil
	logger   *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewClient builds a client with a fresh cookie jar. minDelay/maxDelay bound
// the randomized inter-request pause; the pause is a required side effect of
// every request, not an optimization. hosts may be nil to skip host-level
// limiting. Compression is negotiated manually so that a declared encoding
// the body does not match surfaces as a DecodeError instead of garbled bytes.
func NewClient(profile Profile, minDelay, maxDelay time.Duration, timeout time.Duration, hosts *HostLimiter, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			Transport: &http.Transport{
				DisableCompression: true,
			},
		},
		profile:  profile.merged(),
		minDelay: minDelay,
		maxDelay: maxDelay,
		hosts:    hosts,
		logger:   logger,
	}, nil
}

// Get retrieves url and returns the decoded body, or a classified
// *model.FetchError. Non-2xx statuses are returned as typed failures, never
// as an error-free garbage body, so detail sub-fetches can substitute an
// unavailable sentinel instead of aborting the collection.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	if c.hosts != nil {
		if err := c.hosts.WaitURL(ctx, url); err != nil {
			return nil, classify(url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &model.FetchError{
			Kind:       model.FetchBlocked,
			URL:        url,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchDecodeError, URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.FetchError{
			Kind:       model.FetchNetworkError,
			URL:        url,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if IsChallengePage(body) {
		c.logger.Warn("challenge page served with OK status", "url", url)
		return nil, &model.FetchError{Kind: model.FetchBlocked, URL: url, StatusCode: resp.StatusCode}
	}

	return body, nil
}

// pace sleeps a randomized duration in [minDelay, maxDelay] measured from
// the previous request by this client.
func (c *Client) pace(ctx context.Context) error {
	if c.maxDelay <= 0 {
		return nil
	}
	delay := c.minDelay
	if spread := c.maxDelay - c.minDelay; spread > 0 {
		delay += time.Duration(rand.Int64N(int64(spread) + 1))
	}

	c.mu.Lock()
	elapsed := time.Since(c.last)
	remaining := delay - elapsed
	c.last = time.Now().Add(max(remaining, 0))
	c.mu.Unlock()

	if remaining <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return classify("", ctx.Err())
	case <-time.After(remaining):
		return nil
	}
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.profile.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", c.profile.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if c.profile.Referrer != "" {
		req.Header.Set("Referer", c.profile.Referrer)
	}
	for k, v := range c.profile.Headers {
		req.Header.Set(k, v)
	}
}

// decodeBody reads the response body, applying the declared
// content-encoding. A decode failure means the declaration and the payload
// disagree, which is a structural failure, not something to retry.
func decodeBody(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "", "identity":
		return raw, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip declared but not decodable: %w", err)
		}
		defer zr.Close()
		body, err := io.ReadAll(io.LimitReader(zr, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("decoding gzip body: %w", err)
		}
		return body, nil
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		body, err := io.ReadAll(io.LimitReader(fr, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("decoding deflate body: %w", err)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

// IsChallengePage reports whether body looks like a bot-protection
// interstitial rather than real content. Adapters use this on detail pages
// to record a posting as permanently unavailable instead of erroring.
func IsChallengePage(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	probe := strings.ToLower(string(body[:min(len(body), 4096)]))
	for _, sig := range challengeSignatures {
		if strings.Contains(probe, sig) {
			return true
		}
	}
	return false
}

// classify wraps a transport-level error into a *model.FetchError with the
// right kind: deadline and net timeouts are Timeout, the rest NetworkError.
func classify(url string, err error) error {
	kind := model.FetchNetworkError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = model.FetchTimeout
	}
	return &model.FetchError{Kind: kind, URL: url, Err: err}
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
