package diff

import (
	"testing"

	"jobwatch/internal/model"
)

func collection(source string, ids ...string) *model.Collection {
	c := model.NewCollection(source)
	for _, id := range ids {
		c.Add(model.Posting{
			Identity: id,
			Title:    "Software Engineer",
			URL:      "https://example.com/jobs/" + id,
		})
	}
	return c
}

func TestDiff_AddedAndUnchanged(t *testing.T) {
	prev := collection("acme", "a")
	curr := collection("acme", "a", "b")
	curr.Postings["b"] = model.Posting{Identity: "b", Title: "Researcher"}

	d := Diff(prev, curr)

	if len(d.Added) != 1 || d.Added[0].Identity != "b" {
		t.Fatalf("expected added=[b], got %+v", d.Added)
	}
	if len(d.Removed) != 0 {
		t.Fatalf("expected no removed, got %v", d.Removed)
	}
	if len(d.Unchanged) != 1 || d.Unchanged[0] != "a" {
		t.Fatalf("expected unchanged=[a], got %v", d.Unchanged)
	}
}

func TestDiff_Removed(t *testing.T) {
	prev := collection("acme", "a", "b")
	curr := collection("acme", "a")

	d := Diff(prev, curr)

	if len(d.Added) != 0 {
		t.Fatalf("expected no added, got %+v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0] != "b" {
		t.Fatalf("expected removed=[b], got %v", d.Removed)
	}
	if len(d.Unchanged) != 1 || d.Unchanged[0] != "a" {
		t.Fatalf("expected unchanged=[a], got %v", d.Unchanged)
	}
}

func TestDiff_NilPreviousIsBaseline(t *testing.T) {
	curr := collection("acme", "a", "b", "c")

	d := Diff(nil, curr)

	if len(d.Added) != 3 {
		t.Fatalf("expected 3 added on first run, got %d", len(d.Added))
	}
	if len(d.Removed) != 0 || len(d.Unchanged) != 0 {
		t.Fatalf("expected empty removed/unchanged, got %v / %v", d.Removed, d.Unchanged)
	}
}

func TestDiff_FieldChangeIsUnchanged(t *testing.T) {
	prev := collection("acme", "a")
	curr := collection("acme")
	curr.Add(model.Posting{Identity: "a", Title: "Staff Software Engineer", Location: "Remote"})

	d := Diff(prev, curr)

	if !d.Empty() {
		t.Fatalf("identity-stable field change must not produce added/removed: %+v", d)
	}
	if len(d.Unchanged) != 1 || d.Unchanged[0] != "a" {
		t.Fatalf("expected unchanged=[a], got %v", d.Unchanged)
	}
}

func TestDiff_SetAlgebra(t *testing.T) {
	prev := collection("acme", "a", "b", "c")
	curr := collection("acme", "b", "c", "d", "e")

	d := Diff(prev, curr)

	// added ∪ unchanged covers the current identities exactly.
	got := map[string]bool{}
	for _, p := range d.Added {
		got[p.Identity] = true
	}
	for _, id := range d.Unchanged {
		if got[id] {
			t.Fatalf("identity %s in both added and unchanged", id)
		}
		got[id] = true
	}
	if len(got) != len(curr.Postings) {
		t.Fatalf("added+unchanged = %d identities, want %d", len(got), len(curr.Postings))
	}
	for id := range curr.Postings {
		if !got[id] {
			t.Fatalf("identity %s missing from added+unchanged", id)
		}
	}

	// removed ∪ unchanged covers the previous identities exactly.
	got = map[string]bool{}
	for _, id := range d.Removed {
		got[id] = true
	}
	for _, id := range d.Unchanged {
		got[id] = true
	}
	if len(got) != len(prev.Postings) {
		t.Fatalf("removed+unchanged = %d identities, want %d", len(got), len(prev.Postings))
	}

	// added and removed are disjoint.
	removed := map[string]bool{}
	for _, id := range d.Removed {
		removed[id] = true
	}
	for _, p := range d.Added {
		if removed[p.Identity] {
			t.Fatalf("identity %s in both added and removed", p.Identity)
		}
	}
}

func TestDiff_BothEmpty(t *testing.T) {
	d := Diff(collection("acme"), collection("acme"))
	if !d.Empty() || len(d.Unchanged) != 0 {
		t.Fatalf("expected empty diff, got %+v", d)
	}
}

func TestDiff_DeterministicOrder(t *testing.T) {
	curr := collection("acme", "c", "a", "b")
	d := Diff(nil, curr)
	for i := 1; i < len(d.Added); i++ {
		if d.Added[i-1].Identity > d.Added[i].Identity {
			t.Fatalf("added not sorted: %+v", d.Added)
		}
	}
}
