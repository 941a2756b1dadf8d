package render

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

const (
	brandFontSize  = 95
	bodyFontSize   = 62
	badgeFontSize  = 26
	footerFontSize = 30
)

// fontFallbacks are probed when the configured font path is empty or
// unreadable. DejaVu ships on essentially every Linux distro.
var fontFallbacks = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
}

// Faces bundles the typefaces used on a card.
type Faces struct {
	Brand  font.Face
	Body   font.Face
	Badge  font.Face
	Footer font.Face
}

// loadFaces parses the configured font at each needed size. When no usable
// font file exists it degrades to the builtin bitmap face rather than
// failing; a rough card still beats no card.
func loadFaces(fontPath string) Faces {
	paths := fontFallbacks
	if fontPath != "" {
		paths = append([]string{fontPath}, fontFallbacks...)
	}
	for _, path := range paths {
		faces, err := parseFaces(path)
		if err == nil {
			return faces
		}
	}
	fallback := basicfont.Face7x13
	return Faces{Brand: fallback, Body: fallback, Badge: fallback, Footer: fallback}
}

func parseFaces(path string) (Faces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Faces{}, err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return Faces{}, fmt.Errorf("parse font %s: %w", path, err)
	}
	sized := func(size float64) (font.Face, error) {
		return opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}
	brand, err := sized(brandFontSize)
	if err != nil {
		return Faces{}, err
	}
	body, err := sized(bodyFontSize)
	if err != nil {
		return Faces{}, err
	}
	badge, err := sized(badgeFontSize)
	if err != nil {
		return Faces{}, err
	}
	footer, err := sized(footerFontSize)
	if err != nil {
		return Faces{}, err
	}
	return Faces{Brand: brand, Body: body, Badge: badge, Footer: footer}, nil
}
