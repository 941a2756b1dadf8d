package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/moderation"
	"spotd/internal/notifications"
	"spotd/internal/queue"
	"spotd/internal/render"
	"spotd/internal/services"
)

// MessageStore is the persistence surface the orchestrator needs.
type MessageStore interface {
	GetByID(ctx context.Context, id int64) (*queue.Message, error)
	UpdateStatus(ctx context.Context, id int64, status queue.Status, update queue.StatusUpdate) error
	SetModerationNote(ctx context.Context, id int64, note string) error
	ApprovedBetween(ctx context.Context, start, end time.Time, limit int) ([]*queue.Message, error)
}

// Renderer produces the story card for a message.
type Renderer interface {
	Render(ctx context.Context, card render.Card) (*render.Result, error)
}

// StoryPublisher uploads a rendered image and returns the platform media id.
type StoryPublisher interface {
	Publish(ctx context.Context, image []byte, caption string) (string, error)
}

// Result is the outcome of a single-message publish run.
type Result struct {
	MessageID int64
	Status    queue.Status
	MediaID   string
	Backend   string
	Err       string
}

// BatchFailure records one message that failed during a batch run.
type BatchFailure struct {
	MessageID int64
	Reason    string
}

// BatchSummary aggregates a daily batch run.
type BatchSummary struct {
	Succeeded []int64
	Failed    []BatchFailure
}

// Orchestrator drives messages through the publishing pipeline.
type Orchestrator struct {
	store     MessageStore
	renderer  Renderer
	publisher StoryPublisher
	notifier  notifications.Service
	logger    *slog.Logger

	policy       moderation.InconclusivePolicy
	account      string
	batchCaption string
	batchLimit   int

	storageRetries    int
	storageRetryDelay time.Duration
	sleep             func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the orchestrator from configuration and
// collaborators.
func NewOrchestrator(
	cfg *config.Config,
	store MessageStore,
	renderer Renderer,
	publisher StoryPublisher,
	notifier notifications.Service,
	logger *slog.Logger,
) (*Orchestrator, error) {
	policy, err := moderation.ParsePolicy(cfg.Moderation.OnInconclusive)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "init", "invalid moderation policy", err)
	}
	return &Orchestrator{
		store:             store,
		renderer:          renderer,
		publisher:         publisher,
		notifier:          notifier,
		logger:            logging.NewComponentLogger(logger, "orchestrator"),
		policy:            policy,
		account:           cfg.Platform.Username,
		batchCaption:      cfg.Daily.Caption,
		batchLimit:        cfg.Daily.MaxMessages,
		storageRetries:    cfg.Publisher.StorageRetryCount,
		storageRetryDelay: time.Duration(cfg.Publisher.StorageRetryDelayMS) * time.Millisecond,
		sleep:             sleepContext,
	}, nil
}

// ApplyModeration records a moderation decision for a pending message and
// transitions it according to the configured inconclusive policy.
func (o *Orchestrator) ApplyModeration(ctx context.Context, id int64, result moderation.Result) (queue.Status, error) {
	target, write := o.policy.StatusFor(result.Decision)
	if !write {
		// Hold policy: the message stays pending, only the note lands.
		if result.Reason != "" {
			if err := o.store.SetModerationNote(ctx, id, result.Reason); err != nil {
				return queue.StatusPending, err
			}
		}
		return queue.StatusPending, nil
	}
	update := queue.StatusUpdate{ModerationNote: result.Reason}
	if err := o.updateStatusWithRetry(ctx, id, target, update); err != nil {
		return "", err
	}
	o.logger.Info("moderation applied",
		logging.Int64(logging.FieldMessageID, id),
		logging.String("decision", string(result.Decision)),
		logging.String("status", string(target)),
	)
	return target, nil
}

// Approve transitions a pending or in-review message to approved. The
// daemon poll loop (or an explicit PublishNow) picks it up from there.
func (o *Orchestrator) Approve(ctx context.Context, id int64) error {
	return o.updateStatusWithRetry(ctx, id, queue.StatusApproved, queue.StatusUpdate{})
}

// Reject transitions a pending or in-review message to rejected.
func (o *Orchestrator) Reject(ctx context.Context, id int64) error {
	return o.updateStatusWithRetry(ctx, id, queue.StatusRejected, queue.StatusUpdate{})
}

// PublishNow runs the full render and upload flow for one approved message.
// Calling it on an already posted message is a no-op returning the existing
// media id without touching the platform.
func (o *Orchestrator) PublishNow(ctx context.Context, id int64) (*Result, error) {
	ctx = services.WithMessageID(ctx, id)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return o.publishOne(ctx, id, "")
}

func (o *Orchestrator) publishOne(ctx context.Context, id int64, caption string) (*Result, error) {
	logger := logging.WithContext(ctx, o.logger)

	msg, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "publish", "load", "load message", err)
	}
	if msg == nil {
		return nil, services.Wrap(services.ErrNotFound, "publish", "load", fmt.Sprintf("message %d", id), nil)
	}
	if msg.Status == queue.StatusPosted {
		logger.Info("message already posted, skipping", logging.String("media_id", msg.MediaID))
		return &Result{MessageID: id, Status: queue.StatusPosted, MediaID: msg.MediaID}, nil
	}
	if msg.Status != queue.StatusApproved {
		return nil, services.Wrap(services.ErrValidation, "publish", "load",
			fmt.Sprintf("message %d is %s, not %s", id, msg.Status, queue.StatusApproved), nil)
	}

	renderCtx := services.WithStage(ctx, "render")
	rendered, err := o.renderer.Render(renderCtx, render.Card{MessageID: msg.ID, Text: msg.Text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		reason := services.Reason(err)
		if failErr := o.markFailed(ctx, id, reason); failErr != nil {
			return nil, failErr
		}
		logger.Error("render failed, message marked failed", logging.Error(err))
		_ = o.notifier.NotifyPublishFailed(ctx, id, reason)
		return &Result{MessageID: id, Status: queue.StatusFailed, Err: reason}, nil
	}

	publishCtx := services.WithStage(ctx, "publish")
	mediaID, err := o.publisher.Publish(publishCtx, rendered.Image, caption)
	if err != nil {
		if ctx.Err() != nil && !started(err) {
			return nil, ctx.Err()
		}
		reason := services.Reason(err)
		if failErr := o.markFailed(ctx, id, reason); failErr != nil {
			return nil, failErr
		}
		logger.Error("publish failed, message marked failed",
			logging.String(logging.FieldBackend, rendered.Backend),
			logging.Error(err),
		)
		_ = o.notifier.NotifyPublishFailed(ctx, id, reason)
		if errors.Is(err, services.ErrVerificationRequired) {
			_ = o.notifier.NotifyVerificationRequired(ctx, o.account, "")
		}
		return &Result{MessageID: id, Status: queue.StatusFailed, Backend: rendered.Backend, Err: reason}, nil
	}

	postedAt := time.Now().UTC()
	update := queue.StatusUpdate{MediaID: mediaID, PostedAt: &postedAt}
	if err := o.updateStatusWithRetry(ctx, id, queue.StatusPosted, update); err != nil {
		return nil, err
	}
	logger.Info("message posted",
		logging.String("media_id", mediaID),
		logging.String(logging.FieldBackend, rendered.Backend),
	)
	_ = o.notifier.NotifyStoryPosted(ctx, id, mediaID)
	return &Result{MessageID: id, Status: queue.StatusPosted, MediaID: mediaID, Backend: rendered.Backend}, nil
}

// RunDailyBatch publishes every approved message in the window
// sequentially. One message's failure never aborts the rest; cancellation
// is honored between messages, not mid-publish.
func (o *Orchestrator) RunDailyBatch(ctx context.Context, windowStart, windowEnd time.Time) (*BatchSummary, error) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.logger)
	batchStart := time.Now()

	messages, err := o.store.ApprovedBetween(ctx, windowStart, windowEnd, o.batchLimit)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "batch", "list", "list approved messages", err)
	}
	logger.Info("daily batch started", logging.Int("messages", len(messages)))

	summary := &BatchSummary{}
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			logger.Warn("daily batch interrupted",
				logging.Int("succeeded", len(summary.Succeeded)),
				logging.Int("failed", len(summary.Failed)),
			)
			return summary, err
		}
		msgCtx := services.WithMessageID(ctx, msg.ID)
		result, err := o.publishOne(msgCtx, msg.ID, o.batchCaption)
		switch {
		case err != nil:
			summary.Failed = append(summary.Failed, BatchFailure{MessageID: msg.ID, Reason: services.Reason(err)})
		case result.Status == queue.StatusPosted:
			summary.Succeeded = append(summary.Succeeded, msg.ID)
		default:
			summary.Failed = append(summary.Failed, BatchFailure{MessageID: msg.ID, Reason: result.Err})
		}
	}

	logger.Info("daily batch finished",
		logging.Int("succeeded", len(summary.Succeeded)),
		logging.Int("failed", len(summary.Failed)),
		logging.Duration("elapsed", time.Since(batchStart)),
	)
	_ = o.notifier.NotifyBatchCompleted(ctx, len(summary.Succeeded), len(summary.Failed), time.Since(batchStart))
	return summary, nil
}

func (o *Orchestrator) markFailed(ctx context.Context, id int64, reason string) error {
	return o.updateStatusWithRetry(ctx, id, queue.StatusFailed, queue.StatusUpdate{ErrorReason: reason})
}

// updateStatusWithRetry retries transient storage failures a bounded number
// of times. Exhaustion raises an operational alert instead of silently
// leaving the message in a stale state.
func (o *Orchestrator) updateStatusWithRetry(ctx context.Context, id int64, status queue.Status, update queue.StatusUpdate) error {
	attempts := o.storageRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := o.store.UpdateStatus(ctx, id, status, update)
		if err == nil {
			return nil
		}
		if errors.Is(err, queue.ErrInvalidTransition) || errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrValidation) {
			return err
		}
		lastErr = err
		if attempt < attempts-1 {
			if sleepErr := o.sleep(ctx, o.storageRetryDelay); sleepErr != nil {
				return sleepErr
			}
		}
	}

	detail := fmt.Sprintf("set status %s: %v", status, lastErr)
	o.logger.Error("status write kept failing",
		logging.Int64(logging.FieldMessageID, id),
		logging.String("status", string(status)),
		logging.Error(lastErr),
	)
	_ = o.notifier.NotifyStorageInconsistency(ctx, id, detail)
	return services.Wrap(services.ErrStorage, "publish", "update status", "retries exhausted", lastErr)
}

// started reports whether a publish error happened after an upload attempt
// began; those surface as publish failures, not cancellations.
func started(err error) bool {
	return errors.Is(err, services.ErrPublishFailed)
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
