// Package diff compares two posting collections under the identity key.
package diff

import (
	"sort"

	"jobwatch/internal/model"
)

// Diff computes added/removed/unchanged between the previous and current
// collections. A nil previous collection is treated as empty, so the first
// run for a source (no prior snapshot, or a corrupted one) produces a
// complete baseline: everything added, nothing removed.
//
// Identity matching only: a posting whose fields changed but whose identity
// is stable is reported as unchanged.
func Diff(previous, current *model.Collection) model.DiffResult {
	var result model.DiffResult

	prev := map[string]model.Posting{}
	if previous != nil {
		prev = previous.Postings
	}
	curr := map[string]model.Posting{}
	if current != nil {
		curr = current.Postings
	}

	for id, p := range curr {
		if _, ok := prev[id]; ok {
			result.Unchanged = append(result.Unchanged, id)
		} else {
			result.Added = append(result.Added, p)
		}
	}
	for id := range prev {
		if _, ok := curr[id]; !ok {
			result.Removed = append(result.Removed, id)
		}
	}

	// Map iteration order is random; sort for deterministic output.
	sort.Slice(result.Added, func(i, j int) bool {
		return result.Added[i].Identity < result.Added[j].Identity
	})
	sort.Strings(result.Removed)
	sort.Strings(result.Unchanged)

	return result
}
