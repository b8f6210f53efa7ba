package adapter

import (
	"html"
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// locationSynonyms canonicalizes the short forms sources use for common
// cities. Matching is case-insensitive on the whole (comma-separated) part.
var locationSynonyms = map[string]string{
	"sf":            "San Francisco",
	"san fran":      "San Francisco",
	"nyc":           "New York",
	"new york city": "New York",
	"ldn":           "London",
	"remote":        "Remote",
	"wfh":           "Remote",
}

// extractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes entities (no-op on already-plain text), strips all
// tags, then collapses whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, "")
	return cleanText(plain)
}

// cleanText collapses whitespace, replaces NBSP, and drops control
// characters.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// normalizeLocation cleans a location string and canonicalizes each
// comma-separated part against the synonym table, deduplicating parts.
func normalizeLocation(loc string) string {
	loc = cleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimPrefix(loc, "LOCATIONS:")
	loc = strings.TrimSpace(loc)

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = cleanText(p)
		if p == "" {
			continue
		}
		if canonical, ok := locationSynonyms[strings.ToLower(p)]; ok {
			p = canonical
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}
