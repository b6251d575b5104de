package rewrite

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

const sectionMarkup = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
<title>Chapter One</title>
<link rel="stylesheet" href="../styles/book.css"/>
</head>
<body>
<p id="p1">Some text with a <a href="ch2.xhtml#note1">cross reference</a> and
an <a href="https://example.com/page">external link</a>.</p>
<img src="../images/pic.png"/>
</body>
</html>`

func TestSectionAnchorTargets(t *testing.T) {

	cases := []struct {
		name      string
		injectNav bool
		relative  string
	}{
		{"navigation injected", true, "_parent"},
		{"navigation not injected", false, "_self"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := Section([]byte(sectionMarkup), Options{BaseDir: "OEBPS/text", InjectNavigation: c.injectNav})
			if err != nil {
				t.Fatal(err)
			}

			doc := etree.NewDocument()
			if err := doc.ReadFromBytes(out); err != nil {
				t.Fatal(err)
			}
			for _, a := range doc.FindElements("//a") {
				href := a.SelectAttrValue("href", "")
				target := a.SelectAttrValue("target", "")
				want := c.relative
				if strings.HasPrefix(href, "https:") {
					want = "_blank"
				}
				if target != want {
					t.Errorf("link '%s': target = %q, want %q", href, target, want)
				}
			}
		})
	}
}

func TestSectionRemap(t *testing.T) {

	out, err := Section([]byte(sectionMarkup), Options{
		BaseDir: "OEBPS/text",
		Remap: map[string]string{
			"OEBPS/images/pic.png": "../images/pic_small.png",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		t.Fatal(err)
	}
	img := doc.FindElement("//img")
	if got := img.SelectAttrValue("src", ""); got != "../images/pic_small.png" {
		t.Errorf("img src = %q", got)
	}
	// reference outside the table stays put
	link := doc.FindElement("//head/link")
	if got := link.SelectAttrValue("href", ""); got != "../styles/book.css" {
		t.Errorf("link href = %q", got)
	}
}

func TestSectionRemapPreservesFragment(t *testing.T) {

	markup := `<html><head></head><body><img src="pic.svg#icon"/></body></html>`
	out, err := Section([]byte(markup), Options{
		BaseDir: "OEBPS",
		Remap:   map[string]string{"OEBPS/pic.svg": "art/pic.svg"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `src="art/pic.svg#icon"`) {
		t.Errorf("fragment lost: %s", out)
	}
}

func TestSectionStyleInjection(t *testing.T) {

	out, err := Section([]byte(sectionMarkup), Options{
		BaseDir: "OEBPS/text",
		Injections: []Injection{
			{CSS: "body { font-size: 12pt; }", OverrideBook: false},
			{CSS: "body { color: black; }", OverrideBook: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		t.Fatal(err)
	}
	head := doc.FindElement("//head")
	var order []string
	for _, child := range head.ChildElements() {
		switch {
		case child.Tag == "style" && strings.Contains(child.Text(), "font-size"):
			order = append(order, "base")
		case child.Tag == "link":
			order = append(order, "book")
		case child.Tag == "style" && strings.Contains(child.Text(), "color"):
			order = append(order, "override")
		}
	}
	want := []string{"base", "book", "override"}
	if len(order) != len(want) {
		t.Fatalf("wrong head contents: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("wrong styling order: %v, want %v", order, want)
		}
	}
}

func TestSectionNavFooter(t *testing.T) {

	out, err := Section([]byte(sectionMarkup), Options{
		BaseDir: "OEBPS/text",
		Nav:     &NavRefs{Index: "../../index.xhtml", Next: "ch2.xhtml"},
	})
	if err != nil {
		t.Fatal(err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		t.Fatal(err)
	}
	bar := doc.FindElement("//body/nav")
	if bar == nil || bar.SelectAttrValue("class", "") != "section-navigation" {
		t.Fatal("navigation footer missing")
	}
	links := bar.SelectElements("a")
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2 (no previous target)", len(links))
	}
	if got := links[0].SelectAttrValue("href", ""); got != "../../index.xhtml" {
		t.Errorf("index link href = %q", got)
	}
	// footer anchors get the same targets as author links
	if got := links[1].SelectAttrValue("target", ""); got != "_self" {
		t.Errorf("next link target = %q, want _self", got)
	}
}

func TestSectionRoundTrip(t *testing.T) {

	// no applicable rules - text content must come through unchanged
	out, err := Section([]byte(sectionMarkup), Options{BaseDir: "OEBPS/text"})
	if err != nil {
		t.Fatal(err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		t.Fatalf("rewritten section does not parse: %v", err)
	}
	p := doc.FindElement("//p")
	if p == nil || p.SelectAttrValue("id", "") != "p1" {
		t.Fatalf("paragraph lost")
	}
	if !strings.Contains(string(out), "Some text with a ") {
		t.Errorf("text content altered")
	}
	if !strings.Contains(string(out), "Chapter One") {
		t.Errorf("title altered")
	}
}

func TestSectionInvalidMarkup(t *testing.T) {

	_, err := Section([]byte("<html><body><p>unclosed"), Options{})
	if !errors.Is(err, ErrInvalidMarkup) {
		t.Errorf("expected ErrInvalidMarkup, got %v", err)
	}
}

func TestSectionNonUtf8Input(t *testing.T) {

	// latin-1 encoded e-acute in the body
	markup := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><html><head></head><body><p>caf`), 0xE9)
	markup = append(markup, []byte(`</p></body></html>`)...)

	out, err := Section(markup, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "café") {
		t.Errorf("transcoding failed: %s", out)
	}
	if strings.Contains(string(out), "ISO-8859-1") {
		t.Errorf("declaration still claims original encoding")
	}
}
