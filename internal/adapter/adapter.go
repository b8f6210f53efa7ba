// Package adapter holds the per-site extraction strategies. Each variant
// turns raw page content into canonical postings; everything source-agnostic
// (markup stripping, whitespace, location synonyms) lives in normalize.go.
package adapter

import "context"

// Getter is the transport an adapter fetches through. Both the plain HTTP
// client and the headless renderer satisfy it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// minDetailBytes is the shortest body accepted as a real detail page.
// Challenge shells and stub responses come in well under this.
const minDetailBytes = 500
