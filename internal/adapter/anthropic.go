package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
)

// Ensure AnthropicAdapter implements model.SourceAdapter.
var _ model.SourceAdapter = (*AnthropicAdapter)(nil)

// anthropicSkipWords mark anchors that match the jobs-link shape but are
// site chrome, not postings.
var anthropicSkipWords = []string{"privacy", "terms", "about", "contact", "blog", "news", "view all", "apply now"}

// AnthropicAdapter scrapes the Anthropic careers page. The listing is
// JS-rendered, so this adapter is normally wired with the headless renderer
// as its transport; detail pages are served statically and come through the
// plain client.
type AnthropicAdapter struct {
	source     string
	listingURL string
	base       *url.URL
	listing    Getter // renderer when the source has render enabled
	detail     Getter
	logger     *slog.Logger
}

// NewAnthropicAdapter creates an adapter for the given listing URL. listing
// and detail may be the same transport.
func NewAnthropicAdapter(source, listingURL string, listing, detail Getter, logger *slog.Logger) (*AnthropicAdapter, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parsing listing url %q: %w", listingURL, err)
	}
	return &AnthropicAdapter{
		source:     source,
		listingURL: listingURL,
		base:       base,
		listing:    listing,
		detail:     detail,
		logger:     logger,
	}, nil
}

func (a *AnthropicAdapter) Source() string { return a.source }

// FetchListing retrieves the listing page and extracts one posting per job
// anchor. A single malformed item is skipped and logged; it never fails the
// whole listing. Zero postings is a valid result.
func (a *AnthropicAdapter) FetchListing(ctx context.Context) ([]model.Posting, error) {
	body, err := a.listing.Get(ctx, a.listingURL)
	if err != nil {
		return nil, fmt.Errorf("anthropic listing for %s: %w", a.source, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic listing for %s: parsing html: %w", a.source, err)
	}

	now := time.Now().UTC()
	seen := map[string]bool{}
	var postings []model.Posting

	doc.Find("a[href*='/jobs/'], a[href*='/roles/']").Each(func(i int, s *goquery.Selection) {
		p, ok := a.extractListingItem(s, now)
		if !ok {
			return
		}
		if seen[p.Identity] {
			return
		}
		seen[p.Identity] = true
		postings = append(postings, p)
	})

	a.logger.Debug("listing extracted", "source", a.source, "postings", len(postings))
	return postings, nil
}

// extractListingItem builds a posting from one anchor, or reports it
// unusable.
func (a *AnthropicAdapter) extractListingItem(s *goquery.Selection, now time.Time) (model.Posting, bool) {
	href, ok := s.Attr("href")
	if !ok || href == "" {
		return model.Posting{}, false
	}

	title := cleanText(s.Find("h3, h2").First().Text())
	if title == "" {
		title = cleanText(s.Text())
	}
	if len(title) < 5 || isSkippable(title, anthropicSkipWords) {
		a.logger.Debug("skipping listing item", "source", a.source, "title", title, "href", href)
		return model.Posting{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		a.logger.Warn("skipping listing item with bad href", "source", a.source, "href", href, "error", err)
		return model.Posting{}, false
	}
	link := a.base.ResolveReference(ref).String()

	container := s.Closest("li, article")
	team := cleanText(container.Find("[class*='team'], [class*='department']").First().Text())
	location := normalizeLocation(container.Find("[class*='location']").First().Text())

	return model.Posting{
		Identity:  link,
		Title:     title,
		Team:      team,
		Location:  location,
		URL:       link,
		FetchedAt: now,
	}, true
}

// FetchDetail retrieves the posting's detail page. Protection challenges
// come back as an Unavailable detail, not an error; transport failures keep
// their classification for the retry policy.
func (a *AnthropicAdapter) FetchDetail(ctx context.Context, p model.Posting) (*model.Detail, error) {
	body, err := a.detail.Get(ctx, p.URL)
	if err != nil {
		return nil, fmt.Errorf("anthropic detail for %s: %w", p.Identity, err)
	}
	d, err := parseDetailPage(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic detail for %s: %w", p.Identity, err)
	}
	return d, nil
}

func isSkippable(title string, words []string) bool {
	l := strings.ToLower(title)
	for _, w := range words {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}
