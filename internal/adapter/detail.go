package adapter

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/fetch"
	"jobwatch/internal/model"
)

// detailUnavailable is the terminal state recorded when a detail page is
// behind a protection challenge or serves no real content. Persisting it
// keeps later runs from re-fetching a page that will never yield anything.
var detailUnavailable = model.Detail{Unavailable: true}

// parseDetailPage extracts long-form fields from a detail page body shared
// by the HTML-scraping adapters. A challenge page or a stub body yields the
// unavailable sentinel, not an error.
func parseDetailPage(body []byte) (*model.Detail, error) {
	if fetch.IsChallengePage(body) || len(body) < minDetailBytes {
		d := detailUnavailable
		return &d, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	d := &model.Detail{
		Text:         findDescription(doc),
		Requirements: findRequirements(doc),
		Location:     findLocation(doc),
	}
	if d.Text == "" && d.Requirements == "" {
		// Markup parsed but nothing job-shaped in it; treat like protection.
		u := detailUnavailable
		return &u, nil
	}
	return d, nil
}

// findDescription tries progressively broader selectors until one yields a
// plausible body of text.
func findDescription(doc *goquery.Document) string {
	candidates := []string{
		".job-description",
		"[class*='description']",
		"section[class*='job'] p",
		"div[class*='content'] p",
		"article p",
		"main p",
	}
	for _, sel := range candidates {
		text := cleanText(doc.Find(sel).Text())
		if len(text) > 100 {
			return text
		}
	}
	return ""
}

// findRequirements looks for a requirements/qualifications section by class,
// then by heading text.
func findRequirements(doc *goquery.Document) string {
	candidates := []string{
		"[class*='requirements']",
		"section[class*='qualifications']",
	}
	for _, sel := range candidates {
		text := cleanText(doc.Find(sel).Text())
		if len(text) > 50 {
			return trimRequirements(text)
		}
	}

	var text string
	doc.Find("h2, h3, h4, strong").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		heading := strings.ToLower(cleanText(s.Text()))
		if strings.Contains(heading, "requirements") ||
			strings.Contains(heading, "qualifications") ||
			strings.Contains(heading, "you have") {
			text = cleanText(s.Parent().Text())
			return false
		}
		return true
	})
	if len(text) > 50 {
		return trimRequirements(text)
	}
	return ""
}

// trimRequirements cuts boilerplate that follows the requirements block and
// caps runaway extractions.
func trimRequirements(text string) string {
	if i := strings.Index(text, "About "); i > 100 {
		text = strings.TrimSpace(text[:i])
	}
	if len(text) > 800 {
		text = text[:800] + "..."
	}
	return text
}

// findLocation checks dedicated location nodes, then labeled plain text.
func findLocation(doc *goquery.Document) string {
	candidates := []string{
		".location",
		".job__location",
		"[class*='location']",
		"[data-testid='job-location']",
		"[data-testid='location']",
	}
	for _, sel := range candidates {
		if t := cleanText(doc.Find(sel).First().Text()); t != "" && len(t) <= 80 {
			return normalizeLocation(t)
		}
	}

	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if loc := locationFromLabeledText(v); loc != "" {
			return normalizeLocation(loc)
		}
	}
	if loc := locationFromLabeledText(doc.Find("body").Text()); loc != "" {
		return normalizeLocation(loc)
	}
	return ""
}

// locationFromLabeledText extracts the value after "Location:"-style labels
// in plain text.
func locationFromLabeledText(s string) string {
	low := strings.ToLower(s)
	labels := []string{"location:", "locations:", "job location:"}

	for _, lab := range labels {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(s[i+len(lab):])
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		rest = cleanText(rest)
		if rest != "" && len(rest) <= 80 {
			return rest
		}
	}
	return ""
}
