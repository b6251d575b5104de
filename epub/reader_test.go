package epub

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const packageOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="bookid">urn:uuid:12345</dc:identifier>
    <dc:title>Test Book</dc:title>
    <dc:creator>First Author</dc:creator>
    <dc:creator>Second Author</dc:creator>
    <meta name="cover" content="cov"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="notes" href="text/notes.xhtml" media-type="application/xhtml+xml"/>
    <item id="cov" href="images/cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="notes" linear="no"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const navXHTML = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
  <nav epub:type="toc">
    <ol>
      <li><a href="text/ch1.xhtml">Chapter One</a>
        <ol>
          <li><a href="text/ch1.xhtml#part2">Part Two</a></li>
        </ol>
      </li>
      <li><a href="text/ch2.xhtml">Chapter Two</a></li>
    </ol>
  </nav>
</body>
</html>`

func writeTestBook(t *testing.T) string {
	t.Helper()

	fname := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      packageOPF,
		"OEBPS/nav.xhtml":        navXHTML,
		"OEBPS/text/ch1.xhtml":   "<html><body>one</body></html>",
		"OEBPS/text/ch2.xhtml":   "<html><body>two</body></html>",
		"OEBPS/text/notes.xhtml": "<html><body>notes</body></html>",
		"OEBPS/images/cover.jpg": "not really a jpeg",
	}
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return fname
}

func TestOpen(t *testing.T) {

	d, err := Open(writeTestBook(t))
	if err != nil {
		t.Fatal(err)
	}

	if d.Identifier != "urn:uuid:12345" {
		t.Errorf("wrong identifier: %s", d.Identifier)
	}
	if d.Title != "Test Book" {
		t.Errorf("wrong title: %s", d.Title)
	}
	if len(d.Creators) != 2 || d.Creators[0] != "First Author" {
		t.Errorf("wrong creators: %v", d.Creators)
	}
	if d.CoverHref != "OEBPS/images/cover.jpg" {
		t.Errorf("wrong cover: %s", d.CoverHref)
	}
	if len(d.Fingerprint) != 64 {
		t.Errorf("wrong fingerprint: %s", d.Fingerprint)
	}

	if len(d.Spine) != 3 {
		t.Fatalf("wrong spine length: %d", len(d.Spine))
	}
	if d.Spine[0].Href != "OEBPS/text/ch1.xhtml" || !d.Spine[0].Linear {
		t.Errorf("wrong first spine item: %+v", d.Spine[0])
	}
	if d.Spine[1].Linear {
		t.Errorf("notes should be nonlinear: %+v", d.Spine[1])
	}
	if d.Spine[2].OrderIndex != 2 {
		t.Errorf("wrong order index: %+v", d.Spine[2])
	}

	if len(d.Toc) != 2 {
		t.Fatalf("wrong toc length: %d", len(d.Toc))
	}
	if d.Toc[0].Label != "Chapter One" || d.Toc[0].Href != "OEBPS/text/ch1.xhtml" {
		t.Errorf("wrong first toc entry: %+v", d.Toc[0])
	}
	if len(d.Toc[0].Children) != 1 || d.Toc[0].Children[0].Fragment != "part2" {
		t.Errorf("wrong nested toc entry: %+v", d.Toc[0].Children)
	}

	first, ok := d.FirstLinear()
	if !ok || first.Href != "OEBPS/text/ch1.xhtml" {
		t.Errorf("wrong first linear item: %+v", first)
	}
	last, ok := d.LastLinear()
	if !ok || last.Href != "OEBPS/text/ch2.xhtml" {
		t.Errorf("wrong last linear item: %+v", last)
	}
}

func TestExtractTo(t *testing.T) {

	d, err := Open(writeTestBook(t))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	total, err := d.ExtractTo(dir)
	if err != nil {
		t.Fatal(err)
	}
	if total <= 0 {
		t.Errorf("no bytes extracted")
	}

	for _, name := range []string{
		"OEBPS/text/ch1.xhtml",
		"OEBPS/text/notes.xhtml",
		"OEBPS/images/cover.jpg",
	} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			t.Errorf("resource not extracted: %s", name)
		}
	}
	// mimetype is not a manifest resource
	if _, err := os.Stat(filepath.Join(dir, "mimetype")); err == nil {
		t.Errorf("unexpected non-manifest file extracted")
	}
}

func TestResolveHref(t *testing.T) {

	cases := []struct {
		base, href, want string
	}{
		{"OEBPS", "text/ch1.xhtml", "OEBPS/text/ch1.xhtml"},
		{"OEBPS/text", "../images/pic.png", "OEBPS/images/pic.png"},
		{".", "ch1.xhtml", "ch1.xhtml"},
		{"OEBPS", "my%20file.xhtml", "OEBPS/my file.xhtml"},
		{"OEBPS", "", ""},
	}
	for _, c := range cases {
		if got := resolveHref(c.base, c.href); got != c.want {
			t.Errorf("resolveHref(%q, %q) = %q, want %q", c.base, c.href, got, c.want)
		}
	}
}
