package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"spotd/internal/config"
)

// chromiumBackend drives a headless browser screenshot of the card HTML.
// Chromium occasionally writes a truncated or blank screenshot when it is
// killed mid-paint, so output goes through a completeness check before it
// is accepted.
type chromiumBackend struct {
	binary  string
	width   int
	height  int
	brand   string
	footer  string
	timeout time.Duration
}

func newChromiumBackend(cfg *config.Config) *chromiumBackend {
	return &chromiumBackend{
		binary:  cfg.Render.ChromiumBinary,
		width:   cfg.Render.Width,
		height:  cfg.Render.Height,
		brand:   cfg.Render.BrandText,
		footer:  cfg.Platform.AccountHandle,
		timeout: time.Duration(cfg.Render.RenderTimeout) * time.Second,
	}
}

func (b *chromiumBackend) Name() string { return "chromium" }

func (b *chromiumBackend) Render(ctx context.Context, card Card) ([]byte, error) {
	binary, err := exec.LookPath(b.binary)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", b.binary, err)
	}

	html, err := buildCardHTML(card, b.width, b.height, b.brand, b.footer)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "spotd-render-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	htmlPath := filepath.Join(dir, "card.html")
	outPath := filepath.Join(dir, "card.png")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return nil, fmt.Errorf("write card html: %w", err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary,
		"--headless=new",
		"--no-sandbox",
		"--disable-gpu",
		"--hide-scrollbars",
		"--force-device-scale-factor=1",
		fmt.Sprintf("--window-size=%d,%d", b.width, b.height),
		"--screenshot="+outPath,
		"file://"+htmlPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		trimmed := strings.TrimSpace(string(output))
		if len(trimmed) > 300 {
			trimmed = trimmed[:300]
		}
		if trimmed != "" {
			return nil, fmt.Errorf("chromium screenshot failed: %s: %w", trimmed, err)
		}
		return nil, fmt.Errorf("chromium screenshot failed: %w", err)
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	if err := b.checkComplete(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// checkComplete rejects truncated or blank screenshots.
func (b *chromiumBackend) checkComplete(raw []byte) error {
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("screenshot not decodable: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != b.width || bounds.Dy() != b.height {
		return fmt.Errorf("screenshot size %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), b.width, b.height)
	}
	if imageIsBlank(img) {
		return fmt.Errorf("screenshot appears blank")
	}
	return nil
}

// imageIsBlank samples a sparse grid and reports whether every sampled
// pixel carries the same color, which only happens when the page never
// painted.
func imageIsBlank(img image.Image) bool {
	bounds := img.Bounds()
	const grid = 16
	stepX := bounds.Dx() / grid
	stepY := bounds.Dy() / grid
	if stepX == 0 || stepY == 0 {
		return false
	}
	firstR, firstG, firstB, _ := img.At(bounds.Min.X, bounds.Min.Y).RGBA()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != firstR || g != firstG || bl != firstB {
				return false
			}
		}
	}
	return true
}
