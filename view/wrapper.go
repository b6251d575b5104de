// Package view generates the browsable face of a materialized book: per
// section wrapper pages hosting the content frame, the index page listing
// spine and table of contents, their stylesheets and the navigation script.
package view

import (
	"fmt"

	"github.com/beevik/etree"

	"rib/config"
	"rib/epub"
	"rib/misc"
	"rib/nav"
)

// Rendition asset names, all at the rendition directory root. Rewritten
// section documents keep their container layout under ContentsDirName.
const (
	ContentsDirName      = "contents"
	IndexFileName        = "index.xhtml"
	NavigationStylesName = "navigation_styles.css"
	IndexStylesName      = "index_styles.css"
	NavigationScriptName = "navigation_script.js"
)

// Generator builds the navigation pages of one styled rendition.
type Generator struct {
	Doc      *epub.Document
	Tree     *nav.Tree
	Style    config.Style
	CoverRef string // rendition-root-relative cover image reference, optional

	spineByHref map[string]epub.SpineItem
}

func NewGenerator(doc *epub.Document, tree *nav.Tree, style config.Style, coverRef string) *Generator {
	g := &Generator{Doc: doc, Tree: tree, Style: style, CoverRef: coverRef}
	g.spineByHref = make(map[string]epub.SpineItem, len(doc.Spine))
	for _, item := range doc.Spine {
		g.spineByHref[item.Href] = item
	}
	return g
}

// WrapperFileName names the wrapper page for a spine item. Wrappers live flat
// at the rendition root, the spine position keeps them unique.
func WrapperFileName(item epub.SpineItem) string {
	return fmt.Sprintf("section_%04d.xhtml", item.OrderIndex)
}

// SectionRef returns the reference an index or wrapper link should use for a
// section: the wrapper page when navigation is injected, the bare content
// document otherwise. Fragments ride along either way - the synchronizer
// forwards them into the frame on wrapper pages.
func (g *Generator) SectionRef(href, fragment string) string {
	ref := ContentsDirName + "/" + href
	if g.Style.InjectNavigation {
		if item, ok := g.spineByHref[href]; ok {
			ref = WrapperFileName(item)
		}
	}
	if len(fragment) > 0 {
		ref += "#" + fragment
	}
	return ref
}

// WrapperPage builds the navigation wrapper hosting one section.
func (g *Generator) WrapperPage(item epub.SpineItem) ([]byte, error) {

	doc, body := newPage(misc.GetAppName()+" | "+g.Doc.Title, NavigationStylesName)

	frame := body.CreateElement("iframe")
	frame.CreateAttr("id", FrameElementID)
	frame.CreateAttr("src", ContentsDirName+"/"+item.Href)

	bar := body.CreateElement("nav")
	bar.CreateAttr("id", "navigation")

	prev := bar.CreateElement("a")
	prev.CreateAttr("class", "navigation-button")
	prev.SetText("Previous")
	if p, ok := g.Tree.Prev(item.OrderIndex); ok {
		prev.CreateAttr("href", WrapperFileName(p))
	}

	if g.Style.IncludeIndex {
		idx := bar.CreateElement("a")
		idx.CreateAttr("class", "navigation-button")
		idx.CreateAttr("href", IndexFileName)
		idx.SetText("Index")
	}

	if n, ok := g.Tree.Next(item.OrderIndex); ok {
		next := bar.CreateElement("a")
		next.CreateAttr("class", "navigation-button")
		next.CreateAttr("href", WrapperFileName(n))
		next.SetText("Next")
	} else {
		next := bar.CreateElement("button")
		next.CreateAttr("type", "button")
		next.CreateAttr("disabled", "disabled")
		next.SetText("Next")
	}

	script := body.CreateElement("script")
	script.CreateAttr("src", NavigationScriptName)
	script.SetText("")

	return serializePage(doc)
}

// newPage starts an XHTML document with the shared head shape.
func newPage(title, stylesheet string) (*etree.Document, *etree.Element) {

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	doc.CreateDirective("DOCTYPE html")

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("lang", "en")

	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("charset", "utf-8")
	t := head.CreateElement("title")
	t.SetText(title)
	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("href", stylesheet)

	return doc, html.CreateElement("body")
}

func serializePage(doc *etree.Document) ([]byte, error) {
	// end tags everywhere - self-closed iframe and script elements break
	// browsers that sniff the page as plain HTML
	doc.WriteSettings.CanonicalEndTags = true
	doc.IndentTabs()
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize navigation page: %w", err)
	}
	return out, nil
}
