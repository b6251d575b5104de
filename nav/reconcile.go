// Package nav reconciles a book's table of contents against its spine,
// producing a validated navigation tree and the linear reading chain used for
// next/previous links.
package nav

import (
	"errors"
	"fmt"

	"rib/epub"
)

// ErrInvalidToc marks books whose table of contents cannot be resolved into
// spine order. Callers may degrade such books to spine-only navigation.
var ErrInvalidToc = errors.New("invalid table of contents")

// Node is one validated entry of the navigation tree. A node either targets a
// spine item (OrderIndex >= 0 for linear targets, Nonlinear set otherwise) or
// is an untargeted group heading.
type Node struct {
	Label      string
	Href       string
	Fragment   string
	OrderIndex int // position in the spine, -1 for untargeted headings
	Nonlinear  bool
	Children   []Node
}

// HrefWithFragment reassembles the node's full target reference.
func (n *Node) HrefWithFragment() string {
	if len(n.Fragment) == 0 {
		return n.Href
	}
	return n.Href + "#" + n.Fragment
}

// Tree is the result of reconciling TOC against spine. Spine order remains
// the sole source of truth for reading sequence, Roots only resolve into it.
type Tree struct {
	Roots []Node
	Spine []epub.SpineItem
}

// Reconcile validates the table of contents against spine order. Every
// targeted entry must resolve to a spine item by href, and the order indices
// of linear targets must be non-decreasing in document order. Nonlinear
// targets are exempt from the ordering rule - back matter like notes is
// routinely referenced out of spine position. An empty TOC is always valid.
func Reconcile(spine []epub.SpineItem, toc []epub.TocEntry) (*Tree, error) {

	byHref := make(map[string]epub.SpineItem, len(spine))
	for _, item := range spine {
		byHref[item.Href] = item
	}

	r := reconciler{byHref: byHref, lastIndex: -1}
	roots, err := r.walk(toc)
	if err != nil {
		return nil, err
	}
	return &Tree{Roots: roots, Spine: spine}, nil
}

type reconciler struct {
	byHref    map[string]epub.SpineItem
	lastIndex int // highest linear order index seen so far
}

func (r *reconciler) walk(entries []epub.TocEntry) ([]Node, error) {

	var nodes []Node
	for i := range entries {
		e := &entries[i]

		n := Node{
			Label:      e.Label,
			Href:       e.Href,
			Fragment:   e.Fragment,
			OrderIndex: -1,
		}
		if len(e.Href) > 0 {
			item, ok := r.byHref[e.Href]
			if !ok {
				return nil, fmt.Errorf("%w: entry '%s' targets '%s' which is not in the spine", ErrInvalidToc, e.Label, e.Href)
			}
			if item.Linear {
				if item.OrderIndex < r.lastIndex {
					return nil, fmt.Errorf("%w: entry '%s' targets spine position %d after position %d", ErrInvalidToc, e.Label, item.OrderIndex, r.lastIndex)
				}
				r.lastIndex = item.OrderIndex
				n.OrderIndex = item.OrderIndex
			} else {
				n.Nonlinear = true
			}
		}

		children, err := r.walk(e.Children)
		if err != nil {
			return nil, err
		}
		n.Children = children
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// SpineOnly builds a degraded tree with no TOC structure. Used when the book
// carries no TOC or its TOC failed reconciliation.
func SpineOnly(spine []epub.SpineItem) *Tree {
	return &Tree{Spine: spine}
}

// Prev returns the closest linear spine item before the given position.
func (t *Tree) Prev(orderIndex int) (epub.SpineItem, bool) {
	for i := orderIndex - 1; i >= 0; i-- {
		if t.Spine[i].Linear {
			return t.Spine[i], true
		}
	}
	return epub.SpineItem{}, false
}

// Next returns the closest linear spine item after the given position.
func (t *Tree) Next(orderIndex int) (epub.SpineItem, bool) {
	for i := orderIndex + 1; i < len(t.Spine); i++ {
		if t.Spine[i].Linear {
			return t.Spine[i], true
		}
	}
	return epub.SpineItem{}, false
}
