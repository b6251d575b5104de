package book

import (
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"go.uber.org/zap"

	"rib/epub"
	"rib/view"
)

const coverThumbName = "cover_thumbnail.jpeg"

// index page cover bounds, portrait-ish
const (
	coverThumbWidth  = 480
	coverThumbHeight = 640
)

// generateCoverThumbnail produces a downscaled cover for the index page and
// returns its rendition-root-relative reference. Vector covers are
// rasterized, raster formats we cannot decode are referenced in place.
func (o *Opener) generateCoverThumbnail(doc *epub.Document, rawDir, styleDir string) (string, error) {

	if len(doc.CoverHref) == 0 {
		return "", nil
	}
	inPlaceRef := view.ContentsDirName + "/" + doc.CoverHref

	coverPath := filepath.Join(rawDir, filepath.FromSlash(doc.CoverHref))
	data, err := os.ReadFile(coverPath)
	if err != nil {
		return "", err
	}

	if res, ok := doc.Resource(doc.CoverHref); ok && res.MediaType == "image/svg+xml" {
		img, err := rasterizeSVG(data, coverThumbWidth, coverThumbHeight)
		if err != nil {
			o.Log.Warn("Unable to rasterize SVG cover, using it as is", zap.String("href", doc.CoverHref), zap.Error(err))
			return inPlaceRef, nil
		}
		if err := imaging.Save(img, filepath.Join(styleDir, coverThumbName)); err != nil {
			return "", err
		}
		return coverThumbName, nil
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return "", err
	}
	switch kind {
	case matchers.TypeJpeg, matchers.TypePng, matchers.TypeGif, matchers.TypeTiff, matchers.TypeBmp:
		// resizable
	default:
		return inPlaceRef, nil
	}

	img, err := imaging.Open(coverPath)
	if err != nil {
		return "", err
	}
	if img.Bounds().Dx() <= coverThumbWidth && img.Bounds().Dy() <= coverThumbHeight {
		// already small enough, no point in recompressing
		return inPlaceRef, nil
	}

	thumb := imaging.Fit(img, coverThumbWidth, coverThumbHeight, imaging.Lanczos)
	if err := imaging.Save(thumb, filepath.Join(styleDir, coverThumbName)); err != nil {
		return "", err
	}
	return coverThumbName, nil
}
