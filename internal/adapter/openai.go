package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
)

// Ensure OpenAIAdapter implements model.SourceAdapter.
var _ model.SourceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter scrapes the OpenAI careers search page. Listing cards carry
// a title anchor and a sibling team anchor; the detail page is fetched per
// posting.
type OpenAIAdapter struct {
	source     string
	listingURL string
	base       *url.URL
	listing    Getter // renderer when the source has render enabled
	detail     Getter // plain client, detail pages do not need rendering
	logger     *slog.Logger
}

// NewOpenAIAdapter creates an adapter for the given careers search URL.
// listing and detail may be the same Getter.
func NewOpenAIAdapter(source, listingURL string, listing, detail Getter, logger *slog.Logger) (*OpenAIAdapter, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parsing listing url %q: %w", listingURL, err)
	}
	return &OpenAIAdapter{
		source:     source,
		listingURL: listingURL,
		base:       base,
		listing:    listing,
		detail:     detail,
		logger:     logger,
	}, nil
}

func (a *OpenAIAdapter) Source() string { return a.source }

// FetchListing retrieves the search page and extracts one posting per
// result card. Malformed cards are skipped with a log line.
func (a *OpenAIAdapter) FetchListing(ctx context.Context) ([]model.Posting, error) {
	body, err := a.listing.Get(ctx, a.listingURL)
	if err != nil {
		return nil, fmt.Errorf("openai listing for %s: %w", a.source, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai listing for %s: parsing html: %w", a.source, err)
	}

	now := time.Now().UTC()
	seen := map[string]bool{}
	var postings []model.Posting

	doc.Find("a[href*='/careers/']").Each(func(i int, s *goquery.Selection) {
		title := cleanText(s.Find("h2").First().Text())
		if title == "" {
			return // team anchors and nav links have no h2
		}
		href, ok := s.Attr("href")
		if !ok || href == "" {
			a.logger.Warn("skipping listing item without href", "source", a.source, "title", title)
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			a.logger.Warn("skipping listing item with bad href", "source", a.source, "href", href, "error", err)
			return
		}
		link := a.base.ResolveReference(ref).String()
		if seen[link] {
			return
		}
		seen[link] = true

		// The team anchor sits next to the title anchor inside the card.
		team := cleanText(s.Parent().Find("a span").First().Text())

		postings = append(postings, model.Posting{
			Identity:  link,
			Title:     title,
			Team:      team,
			URL:       link,
			FetchedAt: now,
		})
	})

	a.logger.Debug("listing extracted", "source", a.source, "postings", len(postings))
	return postings, nil
}

// FetchDetail retrieves long-form fields for one posting.
func (a *OpenAIAdapter) FetchDetail(ctx context.Context, p model.Posting) (*model.Detail, error) {
	body, err := a.detail.Get(ctx, p.URL)
	if err != nil {
		return nil, fmt.Errorf("openai detail for %s: %w", p.Identity, err)
	}
	d, err := parseDetailPage(body)
	if err != nil {
		return nil, fmt.Errorf("openai detail for %s: %w", p.Identity, err)
	}
	return d, nil
}
