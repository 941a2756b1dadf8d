package render_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"spotd/internal/logging"
	"spotd/internal/render"
	"spotd/internal/services"
	"spotd/internal/testsupport"
)

type stubBackend struct {
	name  string
	image []byte
	err   error
	calls int
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Render(ctx context.Context, card render.Card) ([]byte, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return b.image, nil
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, raw []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return cfg.Width, cfg.Height
}

var testCard = render.Card{MessageID: 42, Text: "Saw someone return a lost wallet today, respect."}

func TestRenderFirstBackendWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := &stubBackend{name: "first", image: encodePNG(t, cfg.Render.Width, cfg.Render.Height)}
	second := &stubBackend{name: "second", err: errors.New("should not run")}
	renderer := render.NewWithBackends(cfg, logging.NewNop(), first, second)

	result, err := renderer.Render(context.Background(), testCard)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.Backend != "first" {
		t.Fatalf("backend = %q, want first", result.Backend)
	}
	if second.calls != 0 {
		t.Fatal("second backend should not have been tried")
	}
	w, h := decodeSize(t, result.Image)
	if w != cfg.Render.Width || h != cfg.Render.Height {
		t.Fatalf("result size = %dx%d", w, h)
	}
}

func TestRenderFallsThroughOnFailureAndBadOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failing := &stubBackend{name: "failing", err: errors.New("binary missing")}
	wrongSize := &stubBackend{name: "wrong-size", image: encodePNG(t, 100, 100)}
	good := &stubBackend{name: "good", image: encodePNG(t, cfg.Render.Width, cfg.Render.Height)}
	renderer := render.NewWithBackends(cfg, logging.NewNop(), failing, wrongSize, good)

	result, err := renderer.Render(context.Background(), testCard)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.Backend != "good" {
		t.Fatalf("backend = %q, want good", result.Backend)
	}
	if failing.calls != 1 || wrongSize.calls != 1 {
		t.Fatalf("fallthrough calls = %d, %d", failing.calls, wrongSize.calls)
	}
}

func TestRenderAllBackendsFail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := &stubBackend{name: "first", err: errors.New("launch error")}
	second := &stubBackend{name: "second", err: errors.New("timeout")}
	renderer := render.NewWithBackends(cfg, logging.NewNop(), first, second)

	_, err := renderer.Render(context.Background(), testCard)
	if err == nil {
		t.Fatal("expected error when every backend fails")
	}
	if !errors.Is(err, services.ErrRenderUnavailable) {
		t.Fatalf("error = %v, want render unavailable", err)
	}

	var unavailable *render.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error type = %T", err)
	}
	if len(unavailable.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(unavailable.Attempts))
	}
	for _, name := range []string{"first", "second"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not name backend %s", err.Error(), name)
		}
	}
}

func TestRenderContextCancellationPropagates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := &stubBackend{name: "never", image: encodePNG(t, cfg.Render.Width, cfg.Render.Height)}
	renderer := render.NewWithBackends(cfg, logging.NewNop(), backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := renderer.Render(ctx, testCard); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if backend.calls != 0 {
		t.Fatal("backend ran despite cancelled context")
	}
}

func TestRenderNormalizesOddColorModes(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	// Paletted output, as older wkhtmltoimage builds produce.
	paletted := image.NewPaletted(
		image.Rect(0, 0, cfg.Render.Width, cfg.Render.Height),
		color.Palette{color.Black, color.White},
	)
	var buf bytes.Buffer
	if err := png.Encode(&buf, paletted); err != nil {
		t.Fatalf("encode paletted: %v", err)
	}
	backend := &stubBackend{name: "paletted", image: buf.Bytes()}
	renderer := render.NewWithBackends(cfg, logging.NewNop(), backend)

	result, err := renderer.Render(context.Background(), testCard)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(result.Image))
	if err != nil {
		t.Fatalf("decode normalized: %v", err)
	}
	if _, ok := img.(*image.NRGBA); !ok {
		t.Fatalf("normalized image type = %T, want *image.NRGBA", img)
	}
}

func TestRenderErrorsForEmptyChain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := render.NewWithBackends(cfg, logging.NewNop())
	if _, err := renderer.Render(context.Background(), testCard); err == nil {
		t.Fatal("expected configuration error for empty backend chain")
	}
}
