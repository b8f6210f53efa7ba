package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"jobwatch/internal/model"
)

// Renderer retrieves a page through a headless browser so JS-rendered
// listings produce real markup. Sources that serve an empty shell to plain
// HTTP clients opt in via config. Requires Chrome/Chromium on the host.
type Renderer struct {
	timeout time.Duration
	settle  time.Duration // extra wait after body-ready for scripts to paint
	logger  *slog.Logger
}

// NewRenderer creates a renderer with the given per-page timeout.
func NewRenderer(timeout time.Duration, logger *slog.Logger) *Renderer {
	return &Renderer{
		timeout: timeout,
		settle:  2 * time.Second,
		logger:  logger,
	}
}

// Get navigates to url, waits for the page to settle, and returns the
// rendered HTML. Failures are classified the same way as plain fetches so
// the retry policy treats both transports uniformly.
func (r *Renderer) Get(ctx context.Context, url string) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, r.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, classify(url, err)
	}

	body := []byte(html)
	if IsChallengePage(body) {
		r.logger.Warn("challenge page after rendering", "url", url)
		return nil, &model.FetchError{Kind: model.FetchBlocked, URL: url}
	}

	r.logger.Debug("rendered page", "url", url, "bytes", len(body))
	return body, nil
}
