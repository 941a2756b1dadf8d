package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"spotd/internal/config"
)

// wkhtmlBackend shells out to wkhtmltoimage to rasterize the card HTML.
// The binary is fast when it works, but on current distros it frequently
// dies at startup against the system Qt/glibc; those failures are reported
// like any other so the chain falls through.
type wkhtmlBackend struct {
	binary  string
	width   int
	height  int
	brand   string
	footer  string
	timeout time.Duration
}

func newWkhtmlBackend(cfg *config.Config) *wkhtmlBackend {
	return &wkhtmlBackend{
		binary:  cfg.Render.WkhtmlBinary,
		width:   cfg.Render.Width,
		height:  cfg.Render.Height,
		brand:   cfg.Render.BrandText,
		footer:  cfg.Platform.AccountHandle,
		timeout: time.Duration(cfg.Render.RenderTimeout) * time.Second,
	}
}

func (b *wkhtmlBackend) Name() string { return "wkhtmltoimage" }

func (b *wkhtmlBackend) Render(ctx context.Context, card Card) ([]byte, error) {
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
		"--format", "png",
		"--width", strconv.Itoa(b.width),
		"--height", strconv.Itoa(b.height),
		"--quality", "90",
		"--disable-smart-width",
		"--quiet",
		htmlPath, outPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, wkhtmlRunError(err, output)
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read rendered image: %w", err)
	}
	return raw, nil
}

// wkhtmlRunError folds the known startup-incompatibility signatures into a
// stable message so logs stay readable across distro variations.
func wkhtmlRunError(err error, output []byte) error {
	text := string(output)
	for _, signature := range []string{
		"GLIBC",
		"cannot open shared object",
		"QXcbConnection",
		"symbol lookup error",
	} {
		if strings.Contains(text, signature) {
			return fmt.Errorf("binary incompatible with this system (%s): %w", signature, err)
		}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		if len(trimmed) > 300 {
			trimmed = trimmed[:300]
		}
		return fmt.Errorf("wkhtmltoimage failed: %s: %w", trimmed, err)
	}
	return fmt.Errorf("wkhtmltoimage failed: %w", err)
}
