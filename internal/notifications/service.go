package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"spotd/internal/config"
)

const userAgent = "spotd/0.1.0"

// Service defines the alert surface exposed to pipeline components.
type Service interface {
	NotifyStoryPosted(ctx context.Context, messageID int64, mediaID string) error
	NotifyPublishFailed(ctx context.Context, messageID int64, reason string) error
	NotifyVerificationRequired(ctx context.Context, account, method string) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	NotifyStorageInconsistency(ctx context.Context, messageID int64, detail string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		publishes: cfg.Notifications.Publishes,
		batches:   cfg.Notifications.Batches,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	publishes bool
	batches   bool
	errors    bool
}

func (n *ntfyService) NotifyStoryPosted(ctx context.Context, messageID int64, mediaID string) error {
	if !n.publishes {
		return nil
	}
	data := payload{
		title:   "spotd - Posted",
		message: fmt.Sprintf("Spot #%d published (media %s)", messageID, strings.TrimSpace(mediaID)),
		tags:    []string{"spotd", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishFailed(ctx context.Context, messageID int64, reason string) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "spotd - Publish Failed",
		message:  fmt.Sprintf("Spot #%d failed: %s", messageID, strings.TrimSpace(reason)),
		tags:     []string{"spotd", "publish", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyVerificationRequired(ctx context.Context, account, method string) error {
	method = strings.TrimSpace(method)
	if method == "" {
		method = "unknown"
	}
	data := payload{
		title:    "spotd - Verification Required",
		message:  fmt.Sprintf("Account %s needs a verification code via %s", strings.TrimSpace(account), method),
		tags:     []string{"spotd", "session", "challenge"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	if !n.batches {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "spotd - Batch Complete"
		message = fmt.Sprintf("Daily batch complete: %d posted in %s", succeeded, durationText)
	} else {
		title = "spotd - Batch Complete (with errors)"
		message = fmt.Sprintf("Daily batch complete: %d posted, %d failed in %s", succeeded, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"spotd", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStorageInconsistency(ctx context.Context, messageID int64, detail string) error {
	data := payload{
		title:    "spotd - Storage Inconsistency",
		message:  fmt.Sprintf("Status write for spot #%d kept failing: %s\nManual check required", messageID, strings.TrimSpace(detail)),
		tags:     []string{"spotd", "storage", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "spotd - Error",
		message:  builder.String(),
		tags:     []string{"spotd", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "spotd - Test",
		message:  "Notification system test",
		tags:     []string{"spotd", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStoryPosted(context.Context, int64, string) error              { return nil }
func (noopService) NotifyPublishFailed(context.Context, int64, string) error            { return nil }
func (noopService) NotifyVerificationRequired(context.Context, string, string) error    { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyStorageInconsistency(context.Context, int64, string) error     { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
