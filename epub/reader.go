package epub

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"rib/archive"
)

const containerFile = "META-INF/container.xml"

// Open parses the EPUB container at fname. Failures here are archive errors -
// fatal to this book but never to the rest of a batch.
func Open(fname string) (*Document, error) {

	fingerprint, err := fingerprintFile(fname)
	if err != nil {
		return nil, fmt.Errorf("unable to fingerprint book: %w", err)
	}

	opfPath, err := readRootfilePath(fname)
	if err != nil {
		return nil, fmt.Errorf("unable to locate package document: %w", err)
	}

	d := &Document{
		SourcePath:  fname,
		Fingerprint: fingerprint,
	}
	if err := d.readPackage(fname, opfPath); err != nil {
		return nil, fmt.Errorf("unable to read package document '%s': %w", opfPath, err)
	}
	return d, nil
}

// ExtractTo unpacks every manifest resource into dir preserving container
// layout and returns total number of bytes written. Entry names are checked
// by the archive walker, a resource escaping dir aborts extraction.
func (d *Document) ExtractTo(dir string) (int64, error) {

	wanted := make(map[string]struct{}, len(d.Resources))
	for _, r := range d.Resources {
		wanted[r.Href] = struct{}{}
	}

	var total int64
	err := archive.Walk(d.SourcePath, "", func(_ string, f *zip.File) error {
		if _, ok := wanted[f.Name]; !ok {
			return nil
		}
		dst := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		r, err := f.Open()
		if err != nil {
			return err
		}
		defer r.Close()

		w, err := os.Create(dst)
		if err != nil {
			return err
		}
		defer w.Close()

		n, err := io.Copy(w, r)
		if err != nil {
			return err
		}
		total += n
		return w.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("unable to extract book resources: %w", err)
	}
	return total, nil
}

func fingerprintFile(fname string) (string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readRootfilePath(fname string) (string, error) {

	data, err := archive.ReadFile(fname, containerFile)
	if err != nil {
		return "", err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("malformed container descriptor: %w", err)
	}
	rootfile := doc.FindElement("//rootfile")
	if rootfile == nil {
		return "", fmt.Errorf("container descriptor has no rootfile element")
	}
	opfPath := rootfile.SelectAttrValue("full-path", "")
	if len(opfPath) == 0 {
		return "", fmt.Errorf("rootfile element has no full-path attribute")
	}
	return opfPath, nil
}

func (d *Document) readPackage(fname, opfPath string) error {

	data, err := archive.ReadFile(fname, opfPath)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("malformed package document: %w", err)
	}

	pkg := doc.FindElement("//package")
	if pkg == nil {
		return fmt.Errorf("package element not found")
	}

	opfDir := path.Dir(opfPath)

	d.readMetadata(pkg)

	manifest := pkg.FindElement("manifest")
	if manifest == nil {
		return fmt.Errorf("manifest element not found")
	}
	byID := make(map[string]Resource)
	var navHref, ncxHref string
	for _, item := range manifest.SelectElements("item") {
		r := Resource{
			ID:        item.SelectAttrValue("id", ""),
			Href:      resolveHref(opfDir, item.SelectAttrValue("href", "")),
			MediaType: item.SelectAttrValue("media-type", ""),
		}
		if len(r.Href) == 0 {
			continue
		}
		d.Resources = append(d.Resources, r)
		if len(r.ID) > 0 {
			byID[r.ID] = r
		}
		if hasProperty(item.SelectAttrValue("properties", ""), "nav") {
			navHref = r.Href
		}
		if hasProperty(item.SelectAttrValue("properties", ""), "cover-image") {
			d.CoverHref = r.Href
		}
		if r.MediaType == "application/x-dtbncx+xml" {
			ncxHref = r.Href
		}
	}

	// EPUB2 signals cover through metadata meta element
	if len(d.CoverHref) == 0 {
		if meta := pkg.FindElement("metadata/meta[@name='cover']"); meta != nil {
			if r, ok := byID[meta.SelectAttrValue("content", "")]; ok {
				d.CoverHref = r.Href
			}
		}
	}

	spine := pkg.FindElement("spine")
	if spine == nil {
		return fmt.Errorf("spine element not found")
	}
	for _, ref := range spine.SelectElements("itemref") {
		idref := ref.SelectAttrValue("idref", "")
		r, ok := byID[idref]
		if !ok {
			return fmt.Errorf("spine references unknown manifest item '%s'", idref)
		}
		d.Spine = append(d.Spine, SpineItem{
			ID:         idref,
			Href:       r.Href,
			MediaType:  r.MediaType,
			Linear:     ref.SelectAttrValue("linear", "yes") != "no",
			OrderIndex: len(d.Spine),
		})
	}

	// Prefer EPUB3 navigation document, fall back on NCX. Book with neither
	// degrades to spine-order-only navigation which is always valid.
	switch {
	case len(navHref) > 0:
		if err := d.readNavToc(fname, navHref); err != nil {
			return err
		}
	case len(ncxHref) > 0:
		if err := d.readNcxToc(fname, ncxHref); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) readMetadata(pkg *etree.Element) {
	metadata := pkg.FindElement("metadata")
	if metadata == nil {
		return
	}

	uniqueID := pkg.SelectAttrValue("unique-identifier", "")
	for _, ident := range metadata.SelectElements("identifier") {
		text := ident.Text()
		if len(text) == 0 {
			continue
		}
		if len(d.Identifier) == 0 || ident.SelectAttrValue("id", "") == uniqueID {
			d.Identifier = text
		}
	}
	if len(d.Identifier) == 0 {
		// not much we can do about ill-formed metadata, still needs to be
		// addressable in the library
		d.Identifier = uuid.NewString()
	}

	if title := metadata.FindElement("title"); title != nil {
		d.Title = title.Text()
	}
	if len(d.Title) == 0 {
		d.Title = "Untitled"
	}

	for _, creator := range metadata.SelectElements("creator") {
		if text := creator.Text(); len(text) > 0 {
			d.Creators = append(d.Creators, text)
		}
	}
}

func (d *Document) readNavToc(fname, navHref string) error {

	data, err := archive.ReadFile(fname, navHref)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("malformed navigation document '%s': %w", navHref, err)
	}

	var tocNav *etree.Element
	for _, nav := range doc.FindElements("//nav") {
		if nav.SelectAttrValue("epub:type", "") == "toc" {
			tocNav = nav
			break
		}
		if tocNav == nil {
			tocNav = nav
		}
	}
	if tocNav == nil {
		return nil
	}
	if ol := tocNav.FindElement("ol"); ol != nil {
		d.Toc = readNavList(ol, path.Dir(navHref))
	}
	return nil
}

func readNavList(ol *etree.Element, baseDir string) []TocEntry {
	var entries []TocEntry
	for _, li := range ol.SelectElements("li") {
		var e TocEntry
		if a := li.FindElement("a"); a != nil {
			e.Label = flattenText(a)
			href, fragment := splitFragment(a.SelectAttrValue("href", ""))
			e.Href = resolveHref(baseDir, href)
			e.Fragment = fragment
		} else if span := li.FindElement("span"); span != nil {
			e.Label = flattenText(span)
		}
		if nested := li.FindElement("ol"); nested != nil {
			e.Children = readNavList(nested, baseDir)
		}
		if len(e.Label) > 0 || len(e.Href) > 0 || len(e.Children) > 0 {
			entries = append(entries, e)
		}
	}
	return entries
}

func (d *Document) readNcxToc(fname, ncxHref string) error {

	data, err := archive.ReadFile(fname, ncxHref)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("malformed NCX document '%s': %w", ncxHref, err)
	}

	navMap := doc.FindElement("//navMap")
	if navMap == nil {
		return nil
	}
	d.Toc = readNavPoints(navMap, path.Dir(ncxHref))
	return nil
}

func readNavPoints(parent *etree.Element, baseDir string) []TocEntry {
	var entries []TocEntry
	for _, np := range parent.SelectElements("navPoint") {
		var e TocEntry
		if label := np.FindElement("navLabel/text"); label != nil {
			e.Label = label.Text()
		}
		if content := np.FindElement("content"); content != nil {
			href, fragment := splitFragment(content.SelectAttrValue("src", ""))
			e.Href = resolveHref(baseDir, href)
			e.Fragment = fragment
		}
		e.Children = readNavPoints(np, baseDir)
		entries = append(entries, e)
	}
	return entries
}

// resolveHref normalizes a manifest or TOC reference against the directory of
// the document it came from, yielding a container path.
func resolveHref(baseDir, href string) string {
	if len(href) == 0 {
		return ""
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if baseDir == "." {
		return path.Clean(href)
	}
	return path.Clean(path.Join(baseDir, href))
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}

func flattenText(e *etree.Element) string {
	text := e.Text()
	for _, child := range e.ChildElements() {
		text += flattenText(child) + child.Tail()
	}
	return text
}
