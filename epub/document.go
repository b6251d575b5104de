// Package epub reads EPUB containers into structured spine, manifest and
// table of contents records. It deliberately does not interpret content
// documents - that is left to rewriting and rendering stages.
package epub

import (
	"strings"
)

// SpineItem is a single entry of the book's canonical linear reading order.
type SpineItem struct {
	ID         string
	Href       string // container path, separators normalized, fragment free
	MediaType  string
	Linear     bool
	OrderIndex int // dense, zero based position in the spine
}

// TocEntry is one node of the hierarchical navigation structure. The tree is
// exclusively owned by its Document, there are no shared or cyclic references.
type TocEntry struct {
	Label    string
	Href     string // fragment stripped, matched against SpineItem.Href
	Fragment string // optional sub-document location, without leading '#'
	Children []TocEntry
}

// HrefWithFragment reassembles the original target reference.
func (t *TocEntry) HrefWithFragment() string {
	if len(t.Fragment) == 0 {
		return t.Href
	}
	return t.Href + "#" + t.Fragment
}

// Resource is a manifest entry - anything the container ships, spine content
// included.
type Resource struct {
	ID        string
	Href      string
	MediaType string
}

// Document is the parsed shape of one EPUB container.
type Document struct {
	SourcePath  string
	Fingerprint string // sha256 over container bytes

	Identifier string
	Title      string
	Creators   []string
	CoverHref  string

	Spine     []SpineItem
	Resources []Resource
	Toc       []TocEntry
}

// Resource returns the manifest entry for the given container path.
func (d *Document) Resource(href string) (Resource, bool) {
	for _, r := range d.Resources {
		if r.Href == href {
			return r, true
		}
	}
	return Resource{}, false
}

// FirstLinear returns the first linear spine item - default opening point of
// the book.
func (d *Document) FirstLinear() (SpineItem, bool) {
	for _, item := range d.Spine {
		if item.Linear {
			return item, true
		}
	}
	return SpineItem{}, false
}

// LastLinear returns the last linear spine item.
func (d *Document) LastLinear() (SpineItem, bool) {
	for i := len(d.Spine) - 1; i >= 0; i-- {
		if d.Spine[i].Linear {
			return d.Spine[i], true
		}
	}
	return SpineItem{}, false
}

// splitFragment separates container path from optional fragment suffix.
func splitFragment(ref string) (string, string) {
	if idx := strings.IndexByte(ref, '#'); idx >= 0 {
		return ref[:idx], ref[idx+1:]
	}
	return ref, ""
}
