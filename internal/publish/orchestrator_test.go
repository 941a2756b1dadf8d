package publish_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/font/basicfont"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/moderation"
	"spotd/internal/publish"
	"spotd/internal/queue"
	"spotd/internal/render"
	"spotd/internal/services"
	"spotd/internal/testsupport"
)

const sampleText = "Saw someone return a lost wallet at the station today, respect."

type stubRenderer struct {
	err     error
	backend string
	calls   int
}

func (r *stubRenderer) Render(ctx context.Context, card render.Card) (*render.Result, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	backend := r.backend
	if backend == "" {
		backend = "stub"
	}
	return &render.Result{Image: []byte("png-bytes"), Backend: backend}, nil
}

// stubPublisher consumes one scripted outcome per call; an exhausted script
// keeps returning the last entry.
type stubPublisher struct {
	mu     sync.Mutex
	script []publishOutcome
	calls  int
	onCall func(call int)
}

type publishOutcome struct {
	mediaID string
	err     error
}

func (p *stubPublisher) Publish(ctx context.Context, image []byte, caption string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	if len(p.script) == 0 {
		return "media-1", nil
	}
	next := p.script[0]
	if len(p.script) > 1 {
		p.script = p.script[1:]
	}
	return next.mediaID, next.err
}

// notifierRecorder counts every notification by kind.
type notifierRecorder struct {
	mu               sync.Mutex
	posted           []int64
	failed           []int64
	verification     int
	batches          int
	inconsistencies  int
	lastFailedReason string
}

func (n *notifierRecorder) NotifyStoryPosted(ctx context.Context, messageID int64, mediaID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posted = append(n.posted, messageID)
	return nil
}

func (n *notifierRecorder) NotifyPublishFailed(ctx context.Context, messageID int64, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, messageID)
	n.lastFailedReason = reason
	return nil
}

func (n *notifierRecorder) NotifyVerificationRequired(ctx context.Context, account, method string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification++
	return nil
}

func (n *notifierRecorder) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches++
	return nil
}

func (n *notifierRecorder) NotifyStorageInconsistency(ctx context.Context, messageID int64, detail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inconsistencies++
	return nil
}

func (n *notifierRecorder) NotifyError(ctx context.Context, err error, detail string) error { return nil }

func (n *notifierRecorder) TestNotification(ctx context.Context) error { return nil }

type fixture struct {
	cfg       *config.Config
	store     *queue.Store
	renderer  *stubRenderer
	publisher *stubPublisher
	notifier  *notifierRecorder
	orch      *publish.Orchestrator
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	renderer := &stubRenderer{}
	publisher := &stubPublisher{}
	notifier := &notifierRecorder{}
	orch, err := publish.NewOrchestrator(cfg, store, renderer, publisher, notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return &fixture{cfg: cfg, store: store, renderer: renderer, publisher: publisher, notifier: notifier, orch: orch}
}

func TestPublishNowPostsApprovedMessage(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewApprovedMessage(t, f.store, sampleText)
	f.publisher.script = []publishOutcome{{mediaID: "media-77"}}

	result, err := f.orch.PublishNow(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("PublishNow: %v", err)
	}
	if result.Status != queue.StatusPosted || result.MediaID != "media-77" {
		t.Fatalf("result = %+v, want posted with media-77", result)
	}

	stored, err := f.store.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusPosted {
		t.Fatalf("stored status = %s, want %s", stored.Status, queue.StatusPosted)
	}
	if stored.MediaID != "media-77" || stored.PostedAt == nil {
		t.Fatalf("stored = %+v, want media id and posted timestamp", stored)
	}
	if len(f.notifier.posted) != 1 || f.notifier.posted[0] != msg.ID {
		t.Fatalf("posted notifications = %v, want [%d]", f.notifier.posted, msg.ID)
	}
}

func TestPublishNowFallsBackToProcedural(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewApprovedMessage(t, f.store, sampleText)

	faces := render.Faces{
		Brand:  basicfont.Face7x13,
		Body:   basicfont.Face7x13,
		Badge:  basicfont.Face7x13,
		Footer: basicfont.Face7x13,
	}
	renderer := render.NewWithBackends(f.cfg, logging.NewNop(),
		&failingBackend{name: "wkhtmltoimage"},
		&failingBackend{name: "chromium"},
		render.NewProceduralWithFaces(f.cfg, faces),
	)
	orch, err := publish.NewOrchestrator(f.cfg, f.store, renderer, f.publisher, f.notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	result, err := orch.PublishNow(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("PublishNow: %v", err)
	}
	if result.Backend != "procedural" {
		t.Fatalf("backend = %q, want procedural after both external backends fail", result.Backend)
	}
	if result.Status != queue.StatusPosted {
		t.Fatalf("status = %s, want %s", result.Status, queue.StatusPosted)
	}
}

type failingBackend struct {
	name string
}

func (b *failingBackend) Name() string { return b.name }

func (b *failingBackend) Render(ctx context.Context, card render.Card) ([]byte, error) {
	return nil, errors.New("binary exited with status 127")
}

func TestPublishNowMarksFailedOnPublishExhaustion(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewApprovedMessage(t, f.store, sampleText)
	f.publisher.script = []publishOutcome{{
		err: services.Wrap(services.ErrPublishFailed, "publish", "upload", "retries exhausted", errors.New("503")),
	}}

	result, err := f.orch.PublishNow(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("PublishNow: %v", err)
	}
	if result.Status != queue.StatusFailed || result.Err == "" {
		t.Fatalf("result = %+v, want failed with reason", result)
	}

	stored, err := f.store.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusFailed {
		t.Fatalf("stored status = %s, want %s", stored.Status, queue.StatusFailed)
	}
	if stored.ErrorReason == "" {
		t.Fatal("expected error reason recorded")
	}
	if stored.MediaID != "" || stored.PostedAt != nil {
		t.Fatalf("stored = %+v, want no media id or posted timestamp on failure", stored)
	}
	if len(f.notifier.failed) != 1 {
		t.Fatalf("failed notifications = %v, want one", f.notifier.failed)
	}
}

func TestPublishNowMarksFailedOnRenderFailure(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewApprovedMessage(t, f.store, sampleText)
	f.renderer.err = services.Wrap(services.ErrRenderUnavailable, "render", "render", "all backends failed", nil)

	result, err := f.orch.PublishNow(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("PublishNow: %v", err)
	}
	if result.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want %s", result.Status, queue.StatusFailed)
	}
	if f.publisher.calls != 0 {
		t.Fatalf("publisher calls = %d, want 0 when rendering failed", f.publisher.calls)
	}
}

func TestPublishNowIdempotentOnPostedMessage(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewApprovedMessage(t, f.store, sampleText)

	if _, err := f.orch.PublishNow(context.Background(), msg.ID); err != nil {
		t.Fatalf("first PublishNow: %v", err)
	}
	result, err := f.orch.PublishNow(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("second PublishNow: %v", err)
	}
	if result.Status != queue.StatusPosted || result.MediaID == "" {
		t.Fatalf("result = %+v, want existing media id", result)
	}
	if f.publisher.calls != 1 {
		t.Fatalf("publisher calls = %d, want 1 (no duplicate upload)", f.publisher.calls)
	}
}

func TestPublishNowRejectsNonApprovedMessage(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewMessage(t, f.store, sampleText)

	_, err := f.orch.PublishNow(context.Background(), msg.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for a pending message", err)
	}
}

func TestPublishNowUnknownMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.PublishNow(context.Background(), 9999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPublishNowNotifiesVerificationRequired(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewApprovedMessage(t, f.store, sampleText)
	f.publisher.script = []publishOutcome{{
		err: services.Wrap(services.ErrVerificationRequired, "session", "challenge", "verification code needed via method email", nil),
	}}

	result, err := f.orch.PublishNow(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("PublishNow: %v", err)
	}
	if result.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want %s", result.Status, queue.StatusFailed)
	}
	if f.notifier.verification != 1 {
		t.Fatalf("verification notifications = %d, want 1", f.notifier.verification)
	}
}

// brokenStatusStore fails every status write with a transient storage error.
type brokenStatusStore struct {
	publish.MessageStore
	updates int
}

func (s *brokenStatusStore) UpdateStatus(ctx context.Context, id int64, status queue.Status, update queue.StatusUpdate) error {
	s.updates++
	return errors.New("database is locked")
}

func TestStorageRetryExhaustionRaisesAlert(t *testing.T) {
	f := newFixture(t)
	msg := testsupport.NewApprovedMessage(t, f.store, sampleText)

	broken := &brokenStatusStore{MessageStore: f.store}
	orch, err := publish.NewOrchestrator(f.cfg, broken, f.renderer, f.publisher, f.notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	_, err = orch.PublishNow(context.Background(), msg.ID)
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage after retries", err)
	}
	if want := f.cfg.Publisher.StorageRetryCount + 1; broken.updates != want {
		t.Fatalf("update attempts = %d, want %d", broken.updates, want)
	}
	if f.notifier.inconsistencies != 1 {
		t.Fatalf("inconsistency notifications = %d, want 1", f.notifier.inconsistencies)
	}
}

func TestApplyModerationWithReviewPolicy(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		decision moderation.Decision
		want     queue.Status
	}{
		{moderation.DecisionApprove, queue.StatusApproved},
		{moderation.DecisionReject, queue.StatusRejected},
		{moderation.DecisionInconclusive, queue.StatusReview},
	}
	for _, tc := range cases {
		msg := testsupport.NewMessage(t, f.store, sampleText)
		status, err := f.orch.ApplyModeration(context.Background(), msg.ID, moderation.Result{
			Decision: tc.decision,
			Reason:   "automated check",
		})
		if err != nil {
			t.Fatalf("ApplyModeration(%s): %v", tc.decision, err)
		}
		if status != tc.want {
			t.Fatalf("ApplyModeration(%s) = %s, want %s", tc.decision, status, tc.want)
		}
		stored, err := f.store.GetByID(context.Background(), msg.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Status != tc.want {
			t.Fatalf("stored status = %s, want %s", stored.Status, tc.want)
		}
	}
}

func TestApplyModerationHoldPolicyKeepsPending(t *testing.T) {
	f := newFixture(t, testsupport.WithInconclusivePolicy("hold"))
	msg := testsupport.NewMessage(t, f.store, sampleText)

	status, err := f.orch.ApplyModeration(context.Background(), msg.ID, moderation.Result{
		Decision: moderation.DecisionInconclusive,
		Reason:   "needs a human look",
	})
	if err != nil {
		t.Fatalf("ApplyModeration: %v", err)
	}
	if status != queue.StatusPending {
		t.Fatalf("status = %s, want %s", status, queue.StatusPending)
	}

	stored, err := f.store.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusPending {
		t.Fatalf("stored status = %s, want still pending", stored.Status)
	}
	if stored.ModerationNote != "needs a human look" {
		t.Fatalf("moderation note = %q, want recorded reason", stored.ModerationNote)
	}
}

func TestRunDailyBatchContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	first := testsupport.NewApprovedMessage(t, f.store, sampleText+" one")
	second := testsupport.NewApprovedMessage(t, f.store, sampleText+" two")
	third := testsupport.NewApprovedMessage(t, f.store, sampleText+" three")
	f.publisher.script = []publishOutcome{
		{mediaID: "media-1"},
		{err: services.Wrap(services.ErrPublishFailed, "publish", "upload", "retries exhausted", errors.New("503"))},
		{mediaID: "media-3"},
	}

	windowStart := time.Now().UTC().Add(-time.Hour)
	windowEnd := time.Now().UTC().Add(time.Hour)
	summary, err := f.orch.RunDailyBatch(context.Background(), windowStart, windowEnd)
	if err != nil {
		t.Fatalf("RunDailyBatch: %v", err)
	}
	if len(summary.Succeeded) != 2 {
		t.Fatalf("succeeded = %v, want messages %d and %d", summary.Succeeded, first.ID, third.ID)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].MessageID != second.ID {
		t.Fatalf("failed = %+v, want message %d", summary.Failed, second.ID)
	}
	if summary.Failed[0].Reason == "" {
		t.Fatal("expected failure reason recorded")
	}
	if f.notifier.batches != 1 {
		t.Fatalf("batch notifications = %d, want 1", f.notifier.batches)
	}
}

func TestRunDailyBatchStopsBetweenMessagesOnCancel(t *testing.T) {
	f := newFixture(t)
	testsupport.NewApprovedMessage(t, f.store, sampleText+" one")
	testsupport.NewApprovedMessage(t, f.store, sampleText+" two")
	testsupport.NewApprovedMessage(t, f.store, sampleText+" three")

	ctx, cancel := context.WithCancel(context.Background())
	f.publisher.onCall = func(call int) {
		if call == 1 {
			cancel()
		}
	}

	windowStart := time.Now().UTC().Add(-time.Hour)
	windowEnd := time.Now().UTC().Add(time.Hour)
	summary, err := f.orch.RunDailyBatch(ctx, windowStart, windowEnd)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	total := len(summary.Succeeded) + len(summary.Failed)
	if total != 1 {
		t.Fatalf("processed %d messages, want the in-flight one only", total)
	}
}
