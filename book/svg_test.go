package book

import (
	"testing"
)

const testSVGCover = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 400">
  <rect x="10" y="10" width="180" height="380" fill="navy"/>
</svg>`

func TestRasterizeSVG(t *testing.T) {

	img, err := rasterizeSVG([]byte(testSVGCover), coverThumbWidth, coverThumbHeight)
	if err != nil {
		t.Fatal(err)
	}

	// aspect ratio 1:2 fitted into 480x640 lands on 320x640
	b := img.Bounds()
	if b.Dx() != 320 || b.Dy() != 640 {
		t.Errorf("rasterized to %dx%d, want 320x640", b.Dx(), b.Dy())
	}
}

func TestRasterizeSVGGarbage(t *testing.T) {
	if _, err := rasterizeSVG([]byte("not an svg"), coverThumbWidth, coverThumbHeight); err == nil {
		t.Error("expected an error for unparseable data")
	}
}
