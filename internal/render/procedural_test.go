package render

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/image/font/basicfont"

	"spotd/internal/testsupport"
)

func bitmapFaces() Faces {
	face := basicfont.Face7x13
	return Faces{Brand: face, Body: face, Badge: face, Footer: face}
}

func TestProceduralRendersTargetDimensions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := NewProceduralWithFaces(cfg, bitmapFaces())

	raw, err := backend.Render(context.Background(), Card{MessageID: 42, Text: "Saw someone return a lost wallet today, respect."})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	decoded, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Width != cfg.Render.Width || decoded.Height != cfg.Render.Height {
		t.Fatalf("size = %dx%d, want %dx%d", decoded.Width, decoded.Height, cfg.Render.Width, cfg.Render.Height)
	}
}

func TestProceduralHandlesMaximumLengthText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := NewProceduralWithFaces(cfg, bitmapFaces())

	text := strings.Repeat("lorem ipsum dolor sit amet ", 75)[:2000]
	if utf8.RuneCountInString(text) != 2000 {
		t.Fatalf("fixture text is %d chars, want 2000", utf8.RuneCountInString(text))
	}
	raw, err := backend.Render(context.Background(), Card{MessageID: 1, Text: text})
	if err != nil {
		t.Fatalf("Render with 2000 chars: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("empty image")
	}
}

func TestProceduralIsNotBlank(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := NewProceduralWithFaces(cfg, bitmapFaces())

	raw, err := backend.Render(context.Background(), Card{MessageID: 3, Text: "A short but valid spot."})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if imageIsBlank(img) {
		t.Fatal("procedural card is a single flat color")
	}
}

func TestProceduralHonorsCancelledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := NewProceduralWithFaces(cfg, bitmapFaces())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := backend.Render(ctx, Card{MessageID: 5, Text: "never drawn"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNormalizeImageCapsDimensions(t *testing.T) {
	big := NewProceduralWithFaces(testsupport.NewConfig(t), bitmapFaces())
	raw, err := big.Render(context.Background(), Card{MessageID: 9, Text: "Oversized output gets scaled."})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	capped, err := normalizeImage(raw, 960)
	if err != nil {
		t.Fatalf("normalizeImage: %v", err)
	}
	decoded, err := png.DecodeConfig(bytes.NewReader(capped))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Height != 960 {
		t.Fatalf("capped height = %d, want 960", decoded.Height)
	}
	if decoded.Width != 540 {
		t.Fatalf("capped width = %d, want 540 (aspect preserved)", decoded.Width)
	}
}
