// Package book drives the open pipeline: parse the container, materialize it
// into the library, build the requested styled renditions and hand the result
// to a browser.
package book

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rib/browser"
	"rib/config"
	"rib/epub"
	"rib/library"
	"rib/nav"
	"rib/rewrite"
	"rib/view"
)

const rawDirName = "raw"

// Opener carries everything one run needs to open books.
type Opener struct {
	Lib     *library.Library
	Log     *zap.Logger
	Browser string // empty selects the platform default
	Launch  func(path, command string) error
}

func NewOpener(lib *library.Library, log *zap.Logger, browserCmd string) *Opener {
	return &Opener{Lib: lib, Log: log, Browser: browserCmd, Launch: browser.Open}
}

// OpenAll opens every listed book with every requested style. Failures are
// isolated per book - one bad archive never aborts the rest of the batch.
func (o *Opener) OpenAll(paths []string, styles []config.Style) error {
	var result error
	for _, path := range paths {
		if err := o.openOne(path, styles); err != nil {
			o.Log.Error("Unable to open book", zap.String("path", path), zap.Error(err))
			result = multierr.Append(result, fmt.Errorf("%s: %w", path, err))
		}
	}
	return result
}

func (o *Opener) openOne(fname string, styles []config.Style) error {

	doc, err := epub.Open(fname)
	if err != nil {
		return err
	}
	o.Log.Debug("Parsed book",
		zap.String("title", doc.Title),
		zap.Int("spine", len(doc.Spine)),
		zap.Int("toc", len(doc.Toc)))

	src := library.SourceIdentity{Path: fname, Fingerprint: doc.Fingerprint}
	entry, hit := o.Lib.Lookup(src)
	if !hit {
		entry, err = o.Lib.MaterializeAndInsert(doc.Identifier, doc.Title, src, func(dir string) (int64, error) {
			return doc.ExtractTo(filepath.Join(dir, rawDirName))
		})
		if err != nil {
			return err
		}
		o.Log.Info("Added book to library",
			zap.String("id", entry.BookID),
			zap.String("title", entry.Title),
			zap.Int64("bytes", entry.Size))
	}

	tree, err := nav.Reconcile(doc.Spine, doc.Toc)
	if errors.Is(err, nav.ErrInvalidToc) {
		// degrade to spine-only navigation, the index page still lists the
		// raw TOC so nothing becomes unreachable
		o.Log.Warn("Table of contents does not resolve into spine order, using spine-only navigation",
			zap.String("title", doc.Title), zap.Error(err))
		tree = nav.SpineOnly(doc.Spine)
	} else if err != nil {
		return err
	}

	for _, style := range styles {
		pageToOpen, err := o.ensureRendition(doc, tree, entry, style)
		if err != nil {
			return err
		}
		if err := o.Lib.Touch(entry.BookID, style.ID()); err != nil {
			return err
		}
		if err := o.Launch(pageToOpen, o.Browser); err != nil {
			return err
		}
		o.Log.Info("Opened book",
			zap.String("title", doc.Title),
			zap.String("style", style.Name),
			zap.String("page", pageToOpen))
	}
	return nil
}

// ensureRendition makes sure the rendition for the given style exists inside
// the book's cache directory and returns the page to open. The raw rendition
// is the extracted container itself.
func (o *Opener) ensureRendition(doc *epub.Document, tree *nav.Tree, entry *library.Entry, style config.Style) (string, error) {

	bookDir := o.Lib.EntryDir(entry)
	rawDir := filepath.Join(bookDir, rawDirName)

	if style.Raw() {
		first, ok := doc.FirstLinear()
		if !ok {
			return "", fmt.Errorf("book '%s' has no linear spine items", doc.Title)
		}
		return filepath.Join(rawDir, filepath.FromSlash(first.Href)), nil
	}

	styleDir := filepath.Join(bookDir, style.ID())
	if _, err := os.Stat(styleDir); err == nil {
		return o.renditionEntryPage(doc, styleDir, style)
	}

	if err := o.buildRendition(doc, tree, rawDir, styleDir, style); err != nil {
		_ = os.RemoveAll(styleDir)
		return "", err
	}

	size, err := dirSize(bookDir)
	if err != nil {
		return "", err
	}
	if err := o.Lib.Resize(entry.BookID, size); err != nil {
		return "", err
	}
	return o.renditionEntryPage(doc, styleDir, style)
}

func (o *Opener) renditionEntryPage(doc *epub.Document, styleDir string, style config.Style) (string, error) {
	if style.IncludeIndex {
		return filepath.Join(styleDir, view.IndexFileName), nil
	}
	first, ok := doc.FirstLinear()
	if !ok {
		return "", fmt.Errorf("book '%s' has no linear spine items", doc.Title)
	}
	if style.InjectNavigation {
		return filepath.Join(styleDir, view.WrapperFileName(first)), nil
	}
	return filepath.Join(styleDir, view.ContentsDirName, filepath.FromSlash(first.Href)), nil
}

// buildRendition materializes one styled rendition: rewritten sections under
// contents/, resource links back into raw/, wrapper pages, the index and the
// generated assets.
func (o *Opener) buildRendition(doc *epub.Document, tree *nav.Tree, rawDir, styleDir string, style config.Style) error {

	contentsDir := filepath.Join(styleDir, view.ContentsDirName)
	injections := view.SectionInjections(style)

	spineByHref := make(map[string]epub.SpineItem, len(doc.Spine))
	for _, item := range doc.Spine {
		spineByHref[item.Href] = item
	}

	for _, r := range doc.Resources {
		src := filepath.Join(rawDir, filepath.FromSlash(r.Href))
		dst := filepath.Join(contentsDir, filepath.FromSlash(r.Href))
		if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
			return fmt.Errorf("unable to create rendition directory: %w", err)
		}

		if item, ok := spineByHref[r.Href]; ok && isMarkup(item.MediaType) {
			data, err := os.ReadFile(src)
			if err != nil {
				return fmt.Errorf("unable to read section: %w", err)
			}
			out, err := rewrite.Section(data, rewrite.Options{
				BaseDir:          baseDir(r.Href),
				Injections:       injections,
				Nav:              sectionNavRefs(tree, item, style),
				InjectNavigation: style.InjectNavigation,
			})
			if err != nil {
				return fmt.Errorf("section '%s': %w", r.Href, err)
			}
			if err := os.WriteFile(dst, out, 0600); err != nil {
				return fmt.Errorf("unable to write section: %w", err)
			}
			continue
		}
		// untouched resources are linked, not copied - renditions share the
		// bulk of the book with the raw extraction
		if err := linkOrCopy(src, dst); err != nil {
			return fmt.Errorf("resource '%s': %w", r.Href, err)
		}
	}

	coverRef, err := o.generateCoverThumbnail(doc, rawDir, styleDir)
	if err != nil {
		o.Log.Warn("Unable to generate cover thumbnail", zap.Error(err))
		coverRef = ""
	}

	g := view.NewGenerator(doc, tree, style, coverRef)

	if style.InjectNavigation {
		for _, item := range doc.Spine {
			if !isMarkup(item.MediaType) {
				continue
			}
			page, err := g.WrapperPage(item)
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(styleDir, view.WrapperFileName(item)), page, 0600); err != nil {
				return fmt.Errorf("unable to write wrapper page: %w", err)
			}
		}
		if err := os.WriteFile(filepath.Join(styleDir, view.NavigationStylesName), []byte(view.NavigationStylesheet(style)), 0600); err != nil {
			return fmt.Errorf("unable to write navigation stylesheet: %w", err)
		}
		if err := os.WriteFile(filepath.Join(styleDir, view.NavigationScriptName), []byte(view.NavigationScript()), 0600); err != nil {
			return fmt.Errorf("unable to write navigation script: %w", err)
		}
	}

	if style.IncludeIndex {
		page, err := g.IndexPage()
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(styleDir, view.IndexFileName), page, 0600); err != nil {
			return fmt.Errorf("unable to write index page: %w", err)
		}
		if err := os.WriteFile(filepath.Join(styleDir, view.IndexStylesName), []byte(view.IndexStylesheet(style)), 0600); err != nil {
			return fmt.Errorf("unable to write index stylesheet: %w", err)
		}
	}
	return nil
}

// sectionNavRefs resolves the in-section navigation footer targets. Wrapper
// renditions return nil - the wrapper nav bar covers navigation there and the
// section stays clean.
func sectionNavRefs(tree *nav.Tree, item epub.SpineItem, style config.Style) *rewrite.NavRefs {

	if style.InjectNavigation {
		return nil
	}
	fromDir := path.Dir(view.ContentsDirName + "/" + item.Href)

	refs := rewrite.NavRefs{}
	if p, ok := tree.Prev(item.OrderIndex); ok {
		refs.Prev = relativeRef(fromDir, view.ContentsDirName+"/"+p.Href)
	}
	if style.IncludeIndex {
		refs.Index = relativeRef(fromDir, view.IndexFileName)
	}
	if n, ok := tree.Next(item.OrderIndex); ok {
		refs.Next = relativeRef(fromDir, view.ContentsDirName+"/"+n.Href)
	}
	return &refs
}

// relativeRef computes the reference from a document living in fromDir to a
// rendition-root-relative target, both slash separated.
func relativeRef(fromDir, to string) string {

	if fromDir == "." {
		return to
	}
	from := strings.Split(fromDir, "/")
	target := strings.Split(to, "/")

	common := 0
	for common < len(from) && common < len(target)-1 && from[common] == target[common] {
		common++
	}
	parts := make([]string, 0, len(from)-common+len(target)-common)
	for range from[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, target[common:]...)
	return strings.Join(parts, "/")
}

func isMarkup(mediaType string) bool {
	return mediaType == "application/xhtml+xml" || mediaType == "text/html"
}

func baseDir(href string) string {
	if idx := strings.LastIndexByte(href, '/'); idx >= 0 {
		return href[:idx]
	}
	return "."
}

// linkOrCopy prefers links so renditions stay cheap, falling back on a plain
// copy where the filesystem refuses them.
func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}

// dirSize totals file sizes under dir without following symlinks.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("unable to measure directory size: %w", err)
	}
	return total, nil
}
