package model

import (
	"context"
	"time"
)

// SchemaVersion is the current snapshot envelope version. Version 1 was the
// flat JSON array keyed by link; version 2 keys postings by identity and
// carries the envelope metadata.
const SchemaVersion = 2

// Posting is one canonical job listing produced by a source adapter.
type Posting struct {
	Identity   string     `json:"identity"`              // stable diff key, derived from URL or source id
	Title      string     `json:"title"`                 // required
	Team       string     `json:"team,omitempty"`        // team/department
	Location   string     `json:"location,omitempty"`    // canonicalized location string
	URL        string     `json:"url,omitempty"`         // listing link
	PostedDate *time.Time `json:"posted_date,omitempty"` // best-effort parsed
	FetchedAt  time.Time  `json:"fetched_at"`            // our clock at scrape time
	Detail     *Detail    `json:"detail,omitempty"`      // populated by the secondary detail fetch
}

// Detail holds long-form fields from a posting's detail page.
// Unavailable marks a page that is permanently behind a protection challenge;
// it is a valid terminal state and is persisted so later runs do not keep
// re-fetching a page that will never yield content.
type Detail struct {
	Text         string `json:"text,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	Location     string `json:"location,omitempty"`
	Unavailable  bool   `json:"unavailable,omitempty"`
}

// Collection is the versioned set of postings for one source at one run.
// Identities are unique within a collection; map order carries no meaning.
type Collection struct {
	SchemaVersion int                `json:"schema_version"`
	Source        string             `json:"source"`
	FetchedAt     time.Time          `json:"fetched_at"`
	Postings      map[string]Posting `json:"postings"`
}

// NewCollection creates an empty collection for a source at the current version.
func NewCollection(source string) *Collection {
	return &Collection{
		SchemaVersion: SchemaVersion,
		Source:        source,
		FetchedAt:     time.Now().UTC(),
		Postings:      make(map[string]Posting),
	}
}

// Add inserts a posting, keeping the first one seen when identities collide.
func (c *Collection) Add(p Posting) bool {
	if _, ok := c.Postings[p.Identity]; ok {
		return false
	}
	c.Postings[p.Identity] = p
	return true
}

// Identities returns the set of identities in the collection.
func (c *Collection) Identities() map[string]struct{} {
	ids := make(map[string]struct{}, len(c.Postings))
	for id := range c.Postings {
		ids[id] = struct{}{}
	}
	return ids
}

// DiffResult is the outcome of comparing two collections under the identity
// key. Computed per run, never persisted.
type DiffResult struct {
	Added     []Posting // postings new in the current collection
	Removed   []string  // identities that disappeared since the previous run
	Unchanged []string  // identities present in both
}

// Empty reports whether the diff carries no additions or removals.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// SourceAdapter is the per-site extraction strategy: a listing fetch that
// yields postings with at least identity and title, and an optional detail
// fetch per posting.
type SourceAdapter interface {
	// Source returns the adapter's source identifier (also the snapshot key
	// namespace).
	Source() string
	// FetchListing retrieves and parses the listing page(s). Zero postings is
	// a valid result (no open roles), not an error.
	FetchListing(ctx context.Context) ([]Posting, error)
	// FetchDetail retrieves long-form fields for one posting. A protected
	// page yields Detail{Unavailable: true} rather than an error.
	FetchDetail(ctx context.Context, p Posting) (*Detail, error)
}

// BlobStore is the injected persistence backend: opaque bytes by key.
type BlobStore interface {
	// Get returns the bytes for key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// PutAtomic replaces the value for key; a concurrent reader observes
	// either the old bytes or the new bytes, never a partial write.
	PutAtomic(key string, data []byte) error
}

// Notifier delivers a diff for one source. Fire-and-forget from the
// pipeline's perspective; delivery failures are logged, not retried.
type Notifier interface {
	Send(ctx context.Context, sourceKey string, diff DiffResult) error
}
