// Package rewrite transforms spine section markup for cache-resident viewing:
// stylesheet injection, resource reference remapping and link target
// adjustment. Content is never altered beyond that - a section with no
// applicable rules round-trips byte-identical text.
package rewrite

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// ErrInvalidMarkup marks sections that cannot be parsed as well-formed XML.
var ErrInvalidMarkup = errors.New("invalid markup")

// Injection is one block of CSS to place into the section's head. Blocks
// with OverrideBook set land after the book's own styling so they win on
// source order, the rest land before it.
type Injection struct {
	CSS          string
	OverrideBook bool
}

// NavRefs are the neighbor references for the in-section navigation footer.
// Empty fields produce no link.
type NavRefs struct {
	Prev  string
	Index string
	Next  string
}

// Options control a single section transformation.
type Options struct {
	// BaseDir is the section's own directory inside the container, relative
	// references resolve against it before remap lookup.
	BaseDir string
	// Remap translates resolved container paths to replacement references.
	// References not in the table are left untouched.
	Remap map[string]string
	// Injections are applied in order within their precedence group.
	Injections []Injection
	// Nav, when set, appends a navigation footer with the given targets to
	// the section body. Used for renditions not hosted in wrapper pages,
	// which carry their own navigation bar.
	Nav *NavRefs
	// InjectNavigation selects the target for relative links: sections
	// hosted in a wrapper frame need links to replace the whole wrapper.
	InjectNavigation bool
}

// attributes carrying resource references, keyed by element tag
var refAttrs = map[string][]string{
	"img":    {"src"},
	"image":  {"href", "xlink:href"},
	"link":   {"href"},
	"script": {"src"},
	"source": {"src"},
	"iframe": {"src"},
	"object": {"data"},
	"embed":  {"src"},
}

var encodingRE = regexp.MustCompile(`encoding=["'][^"']*["']`)

// Section rewrites one spine item's markup. The input may be in any declared
// encoding, output is always UTF-8.
func Section(data []byte, opt Options) ([]byte, error) {

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMarkup, err)
	}

	relTarget := "_self"
	if opt.InjectNavigation {
		relTarget = "_parent"
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: document has no root element", ErrInvalidMarkup)
	}

	// nav links are injected first so the anchor pass assigns their targets
	// the same way it does for author links
	if opt.Nav != nil {
		injectNav(root, opt.Nav)
	}
	if err := rewriteElement(root, &opt, relTarget); err != nil {
		return nil, err
	}
	if len(opt.Injections) > 0 {
		injectStyles(root, opt.Injections)
	}
	forceUtf8Declaration(doc)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize rewritten section: %w", err)
	}
	return out, nil
}

func rewriteElement(e *etree.Element, opt *Options, relTarget string) error {

	if e.Tag == "a" {
		if err := rewriteAnchor(e, relTarget); err != nil {
			return err
		}
	} else if attrs, ok := refAttrs[e.Tag]; ok {
		for _, name := range attrs {
			remapReference(e, name, opt)
		}
	}
	for _, child := range e.ChildElements() {
		if err := rewriteElement(child, opt, relTarget); err != nil {
			return err
		}
	}
	return nil
}

// rewriteAnchor points absolute links at a new tab and relative links at the
// configured in-book target, replacing any author-supplied target.
func rewriteAnchor(e *etree.Element, relTarget string) error {

	href := e.SelectAttrValue("href", "")
	if len(href) == 0 {
		return nil
	}
	u, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("%w: unparsable link reference '%s'", ErrInvalidMarkup, href)
	}
	if u.IsAbs() {
		e.CreateAttr("target", "_blank")
	} else {
		e.CreateAttr("target", relTarget)
	}
	return nil
}

func remapReference(e *etree.Element, name string, opt *Options) {

	attr := e.SelectAttr(name)
	if attr == nil || len(attr.Value) == 0 {
		return
	}
	ref := attr.Value
	if u, err := url.Parse(ref); err != nil || u.IsAbs() {
		return
	}
	refPath, fragment := ref, ""
	if idx := strings.IndexByte(ref, '#'); idx >= 0 {
		refPath, fragment = ref[:idx], ref[idx:]
	}
	if len(refPath) == 0 {
		// fragment-only reference, nothing to remap
		return
	}
	if unescaped, err := url.PathUnescape(refPath); err == nil {
		refPath = unescaped
	}
	resolved := path.Clean(path.Join(opt.BaseDir, refPath))
	if replacement, ok := opt.Remap[resolved]; ok {
		attr.Value = replacement + fragment
	}
}

// injectNav appends the navigation footer to the section body.
func injectNav(root *etree.Element, refs *NavRefs) {

	body := root.FindElement("body")
	if body == nil {
		body = root
	}

	bar := body.CreateElement("nav")
	bar.CreateAttr("class", "section-navigation")

	link := func(ref, label string) {
		if len(ref) == 0 {
			return
		}
		a := bar.CreateElement("a")
		a.CreateAttr("href", ref)
		a.SetText(label)
	}
	link(refs.Prev, "Previous")
	link(refs.Index, "Index")
	link(refs.Next, "Next")
}

// injectStyles places CSS blocks into the head: non-overriding blocks before
// the book's own styling, overriding blocks at the very end of the head.
func injectStyles(root *etree.Element, injections []Injection) {

	head := root.FindElement("head")
	if head == nil {
		head = etree.NewElement("head")
		root.InsertChildAt(0, head)
	}

	// index of the first book-native styling element
	bookStyleAt := -1
	for i, child := range head.ChildElements() {
		if child.Tag == "style" || (child.Tag == "link" && child.SelectAttrValue("rel", "") == "stylesheet") {
			bookStyleAt = i
			break
		}
	}

	for _, inj := range injections {
		el := etree.NewElement("style")
		el.CreateAttr("type", "text/css")
		el.SetText(inj.CSS)
		if inj.OverrideBook || bookStyleAt < 0 {
			head.AddChild(el)
		} else {
			head.InsertChildAt(childTokenIndex(head, bookStyleAt), el)
			bookStyleAt++
		}
	}
}

// childTokenIndex translates an element ordinal into the token index
// InsertChildAt expects - heads routinely hold whitespace character data
// between elements.
func childTokenIndex(parent *etree.Element, elementOrdinal int) int {
	seen := 0
	for i, tok := range parent.Child {
		if _, ok := tok.(*etree.Element); ok {
			if seen == elementOrdinal {
				return i
			}
			seen++
		}
	}
	return len(parent.Child)
}

// forceUtf8Declaration keeps the XML declaration truthful after transcoding.
func forceUtf8Declaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = encodingRE.ReplaceAllString(pi.Inst, `encoding="utf-8"`)
			return
		}
	}
}
