package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// normalizeImage re-encodes backend output as PNG over an opaque NRGBA
// canvas and scales it down when either dimension exceeds maxDim. Backends
// can emit indexed or 16-bit PNGs depending on the toolchain version; the
// platform upload path expects plain 8-bit RGBA.
func normalizeImage(raw []byte, maxDim int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	target := bounds
	if maxDim > 0 && (width > maxDim || height > maxDim) {
		scale := float64(maxDim) / float64(width)
		if height > width {
			scale = float64(maxDim) / float64(height)
		}
		target = image.Rect(0, 0, int(float64(width)*scale), int(float64(height)*scale))
	}

	dst := image.NewNRGBA(image.Rect(0, 0, target.Dx(), target.Dy()))
	if target.Dx() == width && target.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
