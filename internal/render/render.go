package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strings"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/services"
)

// Card is the content rendered onto a story image.
type Card struct {
	MessageID int64
	Text      string
	Title     string
}

// Result carries the rendered image and the backend that produced it.
type Result struct {
	Image   []byte
	Backend string
	Width   int
	Height  int
}

// Backend is one concrete strategy for turning a card into a raster image.
type Backend interface {
	Name() string
	Render(ctx context.Context, card Card) ([]byte, error)
}

// BackendError records one backend's final failure during a render attempt.
type BackendError struct {
	Backend string
	Err     error
}

// UnavailableError reports that every backend failed for a card.
type UnavailableError struct {
	Attempts []BackendError
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Backend, attempt.Err))
	}
	return "all render backends failed: " + strings.Join(parts, "; ")
}

func (e *UnavailableError) Is(target error) bool {
	return target == services.ErrRenderUnavailable
}

// Renderer runs the backend fallback chain and normalizes the winning image.
type Renderer struct {
	backends []Backend
	width    int
	height   int
	maxDim   int
	logger   *slog.Logger
}

// New builds the production renderer with the full backend chain.
func New(cfg *config.Config, logger *slog.Logger) *Renderer {
	backends := []Backend{
		newWkhtmlBackend(cfg),
		newChromiumBackend(cfg),
		NewProcedural(cfg),
	}
	return NewWithBackends(cfg, logger, backends...)
}

// NewWithBackends builds a renderer over an explicit backend chain (used in tests).
func NewWithBackends(cfg *config.Config, logger *slog.Logger, backends ...Backend) *Renderer {
	return &Renderer{
		backends: backends,
		width:    cfg.Render.Width,
		height:   cfg.Render.Height,
		maxDim:   cfg.Render.MaxDimension,
		logger:   logging.NewComponentLogger(logger, "render"),
	}
}

// Render tries each backend in priority order until one produces a valid
// image of the target dimensions, then normalizes the result. When every
// backend fails the returned error wraps services.ErrRenderUnavailable and
// lists each backend's last error; retry policy for that case belongs to the
// caller, not to the renderer.
func (r *Renderer) Render(ctx context.Context, card Card) (*Result, error) {
	logger := logging.WithContext(ctx, r.logger)
	if len(r.backends) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "render", "backend chain", "no render backends configured", nil)
	}

	var attempts []BackendError
	for _, backend := range r.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := backend.Render(ctx, card)
		if err == nil {
			err = r.checkDimensions(raw)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			attempts = append(attempts, BackendError{Backend: backend.Name(), Err: err})
			logger.Warn("render backend failed, falling through",
				logging.String(logging.FieldBackend, backend.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "render_backend_failed"),
			)
			continue
		}

		optimized, err := normalizeImage(raw, r.maxDim)
		if err != nil {
			attempts = append(attempts, BackendError{Backend: backend.Name(), Err: fmt.Errorf("normalize output: %w", err)})
			continue
		}
		logger.Info("card rendered",
			logging.String(logging.FieldBackend, backend.Name()),
			logging.Int("bytes", len(optimized)),
		)
		return &Result{Image: optimized, Backend: backend.Name(), Width: r.width, Height: r.height}, nil
	}

	return nil, &UnavailableError{Attempts: attempts}
}

func (r *Renderer) checkDimensions(raw []byte) error {
	cfgImg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	if cfgImg.Width != r.width || cfgImg.Height != r.height {
		return fmt.Errorf("unexpected output size %dx%d, want %dx%d", cfgImg.Width, cfgImg.Height, r.width, r.height)
	}
	return nil
}
