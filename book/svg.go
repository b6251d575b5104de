package book

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// fallback when the cover's viewBox carries no usable size
const defaultSVGSize = 1024

// maxRasterDim caps the rasterization buffer. A cover with an enormous
// viewBox must not be allowed to allocate gigabytes for its RGBA backing.
const maxRasterDim = 4096

// rasterizeSVG renders SVG cover data into an RGBA image fitting the given
// box while keeping the aspect ratio. Background is opaque white so the
// result survives conversion to JPEG.
func rasterizeSVG(data []byte, targetW, targetH int) (image.Image, error) {

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	intrW := int(math.Ceil(icon.ViewBox.W))
	intrH := int(math.Ceil(icon.ViewBox.H))
	if intrW <= 0 {
		intrW = defaultSVGSize
	}
	if intrH <= 0 {
		intrH = defaultSVGSize
	}

	scale := math.Min(float64(targetW)/float64(intrW), float64(targetH)/float64(intrH))
	w := max(int(math.Round(float64(intrW)*scale)), 1)
	h := max(int(math.Round(float64(intrH)*scale)), 1)
	if w > maxRasterDim || h > maxRasterDim {
		s := math.Min(float64(maxRasterDim)/float64(w), float64(maxRasterDim)/float64(h))
		w = max(int(math.Round(float64(w)*s)), 1)
		h = max(int(math.Round(float64(h)*s)), 1)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	icon.Draw(rasterx.NewDasher(w, h, rasterx.NewScannerGV(w, h, dst, dst.Bounds())), 1.0)
	return dst, nil
}
