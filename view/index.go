package view

import (
	"strings"

	"github.com/beevik/etree"

	"rib/epub"
	"rib/misc"
	"rib/nav"
)

// IndexPage builds the book's index: metadata, start/end shortcuts and the
// spine-against-TOC table. When the TOC reconciled cleanly each spine row
// carries its TOC entries beside it; otherwise spine and TOC are listed as
// independent columns so an out-of-order TOC is still fully reachable.
func (g *Generator) IndexPage() ([]byte, error) {

	doc, body := newPage(misc.GetAppName()+" | "+g.Doc.Title+" | Index", IndexStylesName)

	h1 := body.CreateElement("h1")
	h1.SetText(g.Doc.Title)
	if len(g.Doc.Creators) > 0 {
		h3 := body.CreateElement("h3")
		h3.SetText(strings.Join(g.Doc.Creators, " & "))
	}
	if len(g.CoverRef) > 0 {
		img := body.CreateElement("img")
		img.CreateAttr("alt", "book cover image")
		img.CreateAttr("src", g.CoverRef)
	}

	if first, ok := g.Doc.FirstLinear(); ok {
		p := body.CreateElement("p")
		a := p.CreateElement("a")
		a.CreateAttr("href", g.SectionRef(first.Href, ""))
		a.SetText("Start")
	}
	if last, ok := g.Doc.LastLinear(); ok {
		p := body.CreateElement("p")
		a := p.CreateElement("a")
		a.CreateAttr("href", g.SectionRef(last.Href, ""))
		a.SetText("End")
	}

	table := body.CreateElement("table")
	if len(g.Tree.Roots) > 0 {
		g.buildReconciledTable(table)
	} else {
		g.buildSplitTable(table)
	}

	return serializePage(doc)
}

// buildReconciledTable renders one row per spine item with the TOC entries
// resolving to it in the adjacent cell.
func (g *Generator) buildReconciledTable(table *etree.Element) {

	header := table.CreateElement("tr")
	header.CreateElement("td").SetText("Spine")
	header.CreateElement("td").SetText("Table of Contents")

	var flat []flatNode
	flattenNodes(g.Tree.Roots, 0, &flat)

	for _, item := range g.Doc.Spine {
		row := table.CreateElement("tr")

		spineCell := row.CreateElement("td")
		g.addSpineItem(spineCell.CreateElement("ul"), item)

		var mine []flatNode
		for _, fn := range flat {
			if fn.node.Href == item.Href {
				mine = append(mine, fn)
			}
		}
		tocCell := row.CreateElement("td")
		if len(mine) == 0 {
			tocCell.CreateElement("br")
			continue
		}
		base := mine[0].depth
		for _, fn := range mine {
			if fn.depth < base {
				base = fn.depth
			}
		}
		pos := 0
		g.renderNested(tocCell.CreateElement("ul"), mine, &pos, base)
	}
}

// buildSplitTable renders the degraded layout: the whole spine in one column,
// the raw TOC tree in another, an empty spacer column between them.
func (g *Generator) buildSplitTable(table *etree.Element) {

	header := table.CreateElement("tr")
	header.CreateElement("td").SetText("Spine")
	header.CreateElement("td").CreateElement("br")
	header.CreateElement("td").SetText("Table of Contents")

	row := table.CreateElement("tr")

	spineList := row.CreateElement("td").CreateElement("ul")
	for _, item := range g.Doc.Spine {
		g.addSpineItem(spineList, item)
	}

	row.CreateElement("td").CreateElement("br")

	tocCell := row.CreateElement("td")
	if len(g.Doc.Toc) > 0 {
		g.renderRawToc(tocCell.CreateElement("ul"), g.Doc.Toc)
	} else {
		tocCell.CreateElement("br")
	}
}

func (g *Generator) addSpineItem(ul *etree.Element, item epub.SpineItem) {
	li := ul.CreateElement("li")
	if !item.Linear {
		li.CreateAttr("class", "nonlinear")
	}
	a := li.CreateElement("a")
	a.CreateAttr("href", g.SectionRef(item.Href, ""))
	a.SetText(item.Href)
}

type flatNode struct {
	node  *nav.Node
	depth int
}

func flattenNodes(nodes []nav.Node, depth int, out *[]flatNode) {
	for i := range nodes {
		*out = append(*out, flatNode{node: &nodes[i], depth: depth})
		flattenNodes(nodes[i].Children, depth+1, out)
	}
}

// renderNested rebuilds list nesting from flattened depth-annotated nodes.
func (g *Generator) renderNested(ul *etree.Element, items []flatNode, pos *int, level int) {
	for *pos < len(items) {
		it := items[*pos]
		switch {
		case it.depth == level:
			g.addTocNode(ul, it.node)
			*pos++
		case it.depth > level:
			g.renderNested(ul.CreateElement("ul"), items, pos, level+1)
		default:
			return
		}
	}
}

func (g *Generator) renderRawToc(ul *etree.Element, entries []epub.TocEntry) {
	for i := range entries {
		e := &entries[i]
		li := ul.CreateElement("li")
		if len(e.Href) > 0 {
			a := li.CreateElement("a")
			a.CreateAttr("href", g.SectionRef(e.Href, e.Fragment))
			a.SetText(e.Label)
		} else {
			li.SetText(e.Label)
		}
		if len(e.Children) > 0 {
			g.renderRawToc(ul.CreateElement("ul"), e.Children)
		}
	}
}

func (g *Generator) addTocNode(ul *etree.Element, n *nav.Node) {
	li := ul.CreateElement("li")
	if n.Nonlinear {
		li.CreateAttr("class", "nonlinear")
	}
	if len(n.Href) > 0 {
		a := li.CreateElement("a")
		a.CreateAttr("href", g.SectionRef(n.Href, n.Fragment))
		a.SetText(n.Label)
	} else {
		li.SetText(n.Label)
	}
}
