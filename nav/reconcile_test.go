package nav

import (
	"errors"
	"reflect"
	"testing"

	"rib/epub"
)

func spine(items ...epub.SpineItem) []epub.SpineItem {
	for i := range items {
		items[i].OrderIndex = i
	}
	return items
}

func linear(href string) epub.SpineItem    { return epub.SpineItem{Href: href, Linear: true} }
func nonlinear(href string) epub.SpineItem { return epub.SpineItem{Href: href, Linear: false} }

func entry(label, href string, children ...epub.TocEntry) epub.TocEntry {
	return epub.TocEntry{Label: label, Href: href, Children: children}
}

func TestReconcile(t *testing.T) {

	cases := []struct {
		name    string
		spine   []epub.SpineItem
		toc     []epub.TocEntry
		indices []int // expected OrderIndex values over top level nodes
		fail    bool
	}{
		{
			name:    "all linear in order",
			spine:   spine(linear("s1"), linear("s2"), linear("s3")),
			toc:     []epub.TocEntry{entry("One", "s1"), entry("Two", "s2"), entry("Three", "s3")},
			indices: []int{0, 1, 2},
		},
		{
			name:    "nonlinear item skipped by toc",
			spine:   spine(linear("s1"), nonlinear("s2"), linear("s3")),
			toc:     []epub.TocEntry{entry("One", "s1"), entry("Three", "s3")},
			indices: []int{0, 2},
		},
		{
			name:    "ties are valid",
			spine:   spine(linear("s1"), linear("s2")),
			toc:     []epub.TocEntry{entry("Chapter", "s1"), entry("Section", "s1"), entry("Next", "s2")},
			indices: []int{0, 0, 1},
		},
		{
			name:  "linear inversion fails",
			spine: spine(linear("s1"), linear("s2"), linear("s3")),
			toc:   []epub.TocEntry{entry("Three", "s3"), entry("One", "s1")},
			fail:  true,
		},
		{
			name:  "dangling target fails",
			spine: spine(linear("s1")),
			toc:   []epub.TocEntry{entry("Ghost", "missing")},
			fail:  true,
		},
		{
			name:    "nonlinear referenced out of position",
			spine:   spine(linear("s1"), linear("s2"), nonlinear("notes")),
			toc:     []epub.TocEntry{entry("Notes", "notes"), entry("One", "s1"), entry("Two", "s2")},
			indices: []int{-1, 0, 1},
		},
		{
			name:    "empty toc is valid",
			spine:   spine(linear("s1")),
			toc:     nil,
			indices: nil,
		},
		{
			name:    "untargeted heading with ordered children",
			spine:   spine(linear("s1"), linear("s2")),
			toc:     []epub.TocEntry{entry("Part I", "", entry("One", "s1"), entry("Two", "s2"))},
			indices: []int{-1},
		},
		{
			name:  "inversion across nesting levels fails",
			spine: spine(linear("s1"), linear("s2")),
			toc:   []epub.TocEntry{entry("Part", "", entry("Two", "s2")), entry("One", "s1")},
			fail:  true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tree, err := Reconcile(c.spine, c.toc)
			if c.fail {
				if !errors.Is(err, ErrInvalidToc) {
					t.Fatalf("expected ErrInvalidToc, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			var got []int
			for _, n := range tree.Roots {
				got = append(got, n.OrderIndex)
			}
			if !reflect.DeepEqual(got, c.indices) {
				t.Errorf("wrong order indices: got %v, want %v", got, c.indices)
			}
		})
	}
}

func TestReconcileNonlinearPositionIrrelevant(t *testing.T) {

	// moving a nonlinear item around the spine must never change the outcome
	toc := []epub.TocEntry{entry("One", "s1"), entry("Notes", "notes"), entry("Two", "s2")}

	variants := [][]epub.SpineItem{
		spine(nonlinear("notes"), linear("s1"), linear("s2")),
		spine(linear("s1"), nonlinear("notes"), linear("s2")),
		spine(linear("s1"), linear("s2"), nonlinear("notes")),
	}
	for i, s := range variants {
		if _, err := Reconcile(s, toc); err != nil {
			t.Errorf("variant %d: unexpected failure: %v", i, err)
		}
	}
}

func TestReconcileDeterministic(t *testing.T) {

	s := spine(linear("s1"), nonlinear("s2"), linear("s3"))
	toc := []epub.TocEntry{entry("One", "s1", entry("Notes", "s2")), entry("Three", "s3")}

	first, err := Reconcile(s, toc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Reconcile(s, toc)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reconciliation is not deterministic")
	}
}

func TestTreeChain(t *testing.T) {

	tree := SpineOnly(spine(linear("s1"), nonlinear("s2"), linear("s3")))

	if next, ok := tree.Next(0); !ok || next.Href != "s3" {
		t.Errorf("Next(0) = %+v, %v", next, ok)
	}
	if prev, ok := tree.Prev(2); !ok || prev.Href != "s1" {
		t.Errorf("Prev(2) = %+v, %v", prev, ok)
	}
	if _, ok := tree.Next(2); ok {
		t.Errorf("Next past the end should fail")
	}
	if _, ok := tree.Prev(0); ok {
		t.Errorf("Prev before the start should fail")
	}
}
