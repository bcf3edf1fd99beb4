package history

import (
	"slices"
	"testing"
	"time"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	root := "https://example.com/"
	previous := newReport(root, time.Now().Add(-time.Hour), root, root+"a", root+"b", root+"c")
	current := newReport(root, time.Now(), root, root+"c", root+"d", root+"a", root+"e")

	d := Diff(previous, current)

	if !slices.Equal(d.Added, []string{root + "d", root + "e"}) {
		t.Errorf("expected added [d e], got %v", d.Added)
	}
	if !slices.Equal(d.Removed, []string{root + "b"}) {
		t.Errorf("expected removed [b], got %v", d.Removed)
	}
	if d.Unchanged != 3 {
		t.Errorf("expected 3 unchanged, got %d", d.Unchanged)
	}
	if !d.Changed() {
		t.Error("expected Changed() to be true")
	}
	if d.Previous.URLCount != 4 || d.Current.URLCount != 5 {
		t.Errorf("expected counts 4 and 5, got %d and %d", d.Previous.URLCount, d.Current.URLCount)
	}
	if d.Root != root {
		t.Errorf("expected root %q, got %q", root, d.Root)
	}
}

func TestDiffIdentical(t *testing.T) {
	t.Parallel()

	root := "https://example.com/"
	previous := newReport(root, time.Now().Add(-time.Hour), root, root+"a")
	current := newReport(root, time.Now(), root+"a", root)

	d := Diff(previous, current)
	if d.Changed() {
		t.Errorf("expected no change, got added %v removed %v", d.Added, d.Removed)
	}
	if d.Unchanged != 2 {
		t.Errorf("expected 2 unchanged, got %d", d.Unchanged)
	}
	if d.Added == nil || d.Removed == nil {
		t.Error("expected empty, non-nil slices")
	}
}
