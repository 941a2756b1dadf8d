package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"

	"spotd/internal/config"
)

// Procedural draws the card composition directly onto a pixel buffer. It is
// the floor of the backend chain: no external binary, no browser, just a
// font file. The layout mirrors the HTML card so the output is visually
// interchangeable with the other backends.
type Procedural struct {
	width  int
	height int
	brand  string
	footer string
	faces  Faces
}

// NewProcedural loads fonts from the configured path and builds the backend.
func NewProcedural(cfg *config.Config) *Procedural {
	return NewProceduralWithFaces(cfg, loadFaces(cfg.Render.FontPath))
}

// NewProceduralWithFaces builds the backend over explicit typefaces. Tests
// use it to render without any font files on disk.
func NewProceduralWithFaces(cfg *config.Config, faces Faces) *Procedural {
	return &Procedural{
		width:  cfg.Render.Width,
		height: cfg.Render.Height,
		brand:  cfg.Render.BrandText,
		footer: cfg.Platform.AccountHandle,
		faces:  faces,
	}
}

func (p *Procedural) Name() string { return "procedural" }

func (p *Procedural) Render(ctx context.Context, card Card) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := float64(p.width)
	h := float64(p.height)
	dc := gg.NewContext(p.width, p.height)

	// Background: near-black vertical gradient.
	bg := gg.NewLinearGradient(0, 0, 0, h)
	bg.AddColorStop(0, color.NRGBA{R: 8, G: 8, B: 12, A: 255})
	bg.AddColorStop(1, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	dc.SetFillStyle(bg)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// Ambient glows behind the card.
	drawGlow(dc, w*0.5, h*0.5, 500, color.NRGBA{R: 0, G: 122, B: 255, A: 40})
	drawGlow(dc, w*0.7, h*0.6, 300, color.NRGBA{R: 88, G: 86, B: 214, A: 30})

	// Card panel with soft drop shadow.
	margin := 90.0
	cardW := w - 2*margin
	cardH := h - 2*margin
	dc.SetRGBA(0, 0, 0, 0.55)
	dc.DrawRoundedRectangle(margin+10, margin+18, cardW, cardH, 40)
	dc.Fill()
	dc.SetRGBA255(20, 20, 20, 220)
	dc.DrawRoundedRectangle(margin, margin, cardW, cardH, 40)
	dc.Fill()
	dc.SetRGBA(1, 1, 1, 0.08)
	dc.SetLineWidth(1.5)
	dc.DrawRoundedRectangle(margin, margin, cardW, cardH, 40)
	dc.Stroke()

	title := card.Title
	if title == "" {
		title = p.brand
	}

	// Brand wordmark with a faint blue halo.
	brandY := margin + 160
	dc.SetFontFace(p.faces.Brand)
	dc.SetRGBA255(0, 122, 255, 90)
	dc.DrawStringAnchored(title, w/2+2, brandY+2, 0.5, 0.5)
	dc.SetRGB255(255, 255, 255)
	dc.DrawStringAnchored(title, w/2, brandY, 0.5, 0.5)

	// Message id badge.
	badge := badgeText(card.MessageID)
	dc.SetFontFace(p.faces.Badge)
	badgeW, badgeH := dc.MeasureString(badge)
	badgeY := brandY + 110
	pillW := badgeW + 60
	pillH := badgeH + 26
	dc.SetRGBA255(0, 122, 255, 30)
	dc.DrawRoundedRectangle(w/2-pillW/2, badgeY-pillH/2, pillW, pillH, pillH/2)
	dc.Fill()
	dc.SetRGBA255(0, 122, 255, 64)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(w/2-pillW/2, badgeY-pillH/2, pillW, pillH, pillH/2)
	dc.Stroke()
	dc.SetRGB255(90, 200, 250)
	dc.DrawStringAnchored(badge, w/2, badgeY, 0.5, 0.5)

	// Body text, wrapped and centered in the remaining card area.
	dc.SetFontFace(p.faces.Body)
	lines := wrapWords(card.Text, cardW*bodyWidthFraction, func(s string) float64 {
		lw, _ := dc.MeasureString(s)
		return lw
	})
	if len(lines) > maxBodyLines {
		lines = lines[:maxBodyLines]
		lines[maxBodyLines-1] += "…"
	}
	lineHeight := bodyFontSize * 1.5
	footerY := margin + cardH - 90
	bodyTop := badgeY + pillH/2
	bodyCenter := bodyTop + (footerY-60-bodyTop)/2
	startY := bodyCenter - lineHeight*float64(len(lines)-1)/2
	dc.SetRGB255(255, 255, 255)
	for i, line := range lines {
		y := startY + float64(i)*lineHeight
		dc.SetRGBA(0, 0, 0, 0.6)
		dc.DrawStringAnchored(line, w/2+4, y+4, 0.5, 0.5)
		dc.SetRGB255(255, 255, 255)
		dc.DrawStringAnchored(line, w/2, y, 0.5, 0.5)
	}

	// Footer handle.
	dc.SetFontFace(p.faces.Footer)
	dc.SetRGB255(140, 140, 140)
	dc.DrawStringAnchored(p.footer, w/2, footerY, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

func drawGlow(dc *gg.Context, x, y, radius float64, tint color.NRGBA) {
	glow := gg.NewRadialGradient(x, y, 0, x, y, radius)
	glow.AddColorStop(0, tint)
	glow.AddColorStop(1, color.NRGBA{R: tint.R, G: tint.G, B: tint.B, A: 0})
	dc.SetFillStyle(glow)
	dc.DrawCircle(x, y, radius)
	dc.Fill()
}
