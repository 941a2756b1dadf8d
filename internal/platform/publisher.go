package platform

import (
	"context"
	"log/slog"
	"time"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/services"
)

// Publisher uploads rendered story images through the shared session. The
// platform does not tolerate concurrent writes from one account, so a
// single-slot semaphore serializes the network call; the slot is never held
// across a backoff sleep.
type Publisher struct {
	api     API
	session *Session
	logger  *slog.Logger
	slot    chan struct{}

	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewPublisher wires the publisher from configuration.
func NewPublisher(cfg *config.Config, api API, session *Session, logger *slog.Logger) *Publisher {
	return &Publisher{
		api:            api,
		session:        session,
		logger:         logging.NewComponentLogger(logger, "publisher"),
		slot:           make(chan struct{}, 1),
		maxAttempts:    cfg.Publisher.MaxAttempts,
		backoffInitial: time.Duration(cfg.Publisher.BackoffInitialSecs) * time.Second,
		backoffMax:     time.Duration(cfg.Publisher.BackoffMaxSecs) * time.Second,
		sleep:          sleepContext,
	}
}

// Publish uploads the image as a story and returns the platform media id.
// Transient and throttled failures retry with exponential backoff up to the
// attempt cap; a session-invalidating failure tears the session down and
// earns exactly one extra attempt after a fresh login. Exhaustion surfaces
// as services.ErrPublishFailed.
func (p *Publisher) Publish(ctx context.Context, image []byte, caption string) (string, error) {
	logger := logging.WithContext(ctx, p.logger)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		mediaID, err := p.attempt(ctx, image, caption)
		if err == nil {
			logger.Info("story published",
				logging.String("media_id", mediaID),
				logging.Int("attempt", attempt),
			)
			return mediaID, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err

		switch Classify(err) {
		case OutcomeTransient, OutcomeThrottled:
			if attempt == p.maxAttempts {
				break
			}
			delay := p.backoffDelay(attempt)
			logger.Warn("publish attempt failed, backing off",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
			)
			if err := p.sleep(ctx, delay); err != nil {
				return "", err
			}
			continue
		case OutcomeRecoverable, OutcomeVerification:
			return p.retryAfterRelogin(ctx, image, caption, err)
		default:
			return "", services.Wrap(services.ErrPublishFailed, "publish", "upload", "platform rejected upload", err)
		}
	}

	return "", services.Wrap(services.ErrPublishFailed, "publish", "upload", "retries exhausted", lastErr)
}

// retryAfterRelogin is the one extra attempt granted outside the backoff
// loop when the session itself was the problem.
func (p *Publisher) retryAfterRelogin(ctx context.Context, image []byte, caption string, cause error) (string, error) {
	logger := logging.WithContext(ctx, p.logger)
	logger.Warn("session invalidated during publish, attempting fresh login", logging.Error(cause))

	if err := p.session.Invalidate(); err != nil {
		return "", services.Wrap(services.ErrPublishFailed, "publish", "relogin", "discard invalid session", err)
	}
	mediaID, err := p.attempt(ctx, image, caption)
	if err != nil {
		return "", services.Wrap(services.ErrPublishFailed, "publish", "relogin", "upload failed after fresh login", err)
	}
	logger.Info("story published after fresh login", logging.String("media_id", mediaID))
	return mediaID, nil
}

// attempt holds the account slot for the duration of one network
// interaction: session readiness plus the upload itself.
func (p *Publisher) attempt(ctx context.Context, image []byte, caption string) (string, error) {
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.slot }()

	if err := p.session.EnsureReady(ctx); err != nil {
		return "", err
	}
	// A started upload runs to completion even if the caller cancels:
	// aborting mid-flight leaves the platform state ambiguous and risks a
	// duplicate post on retry. The client's own timeout still bounds it.
	mediaID, err := p.api.UploadStory(context.WithoutCancel(ctx), image, caption)
	if err != nil {
		return "", err
	}
	if mediaID == "" {
		return "", errNoResult
	}
	return mediaID, nil
}

func (p *Publisher) backoffDelay(attempt int) time.Duration {
	delay := p.backoffInitial
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if p.backoffMax > 0 && delay > p.backoffMax {
		delay = p.backoffMax
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
