package platform

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/services"
	"spotd/internal/testsupport"
)

func newTestPublisher(t *testing.T, cfg *config.Config, api API) (*Publisher, *memSessionStore) {
	t.Helper()
	store := newMemSessionStore()
	session := NewSession(cfg, api, store, NewChallengeStore(0), logging.NewNop())
	publisher := NewPublisher(cfg, api, session, logging.NewNop())
	publisher.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return publisher, store
}

var testImage = []byte("png-bytes")

func TestPublishReturnsMediaID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{}
	publisher, _ := newTestPublisher(t, cfg, api)

	mediaID, err := publisher.Publish(context.Background(), testImage, "spotted")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if mediaID != "media-1" {
		t.Fatalf("mediaID = %q, want media-1", mediaID)
	}
	if api.uploadCalls != 1 {
		t.Fatalf("uploadCalls = %d, want 1", api.uploadCalls)
	}
}

func TestPublishBacksOffOnTransientFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadScript: []uploadResult{
		{err: &apiError{StatusCode: 503, Message: "unavailable"}},
		{err: &throttledError{}},
		{mediaID: "media-3"},
	}}
	publisher, _ := newTestPublisher(t, cfg, api)

	var delays []time.Duration
	publisher.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	mediaID, err := publisher.Publish(context.Background(), testImage, "spotted")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if mediaID != "media-3" {
		t.Fatalf("mediaID = %q, want media-3", mediaID)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", delays, want)
		}
	}
}

func TestPublishExhaustsRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadErr: &apiError{StatusCode: 503, Message: "unavailable"}}
	publisher, _ := newTestPublisher(t, cfg, api)

	_, err := publisher.Publish(context.Background(), testImage, "spotted")
	if !errors.Is(err, services.ErrPublishFailed) {
		t.Fatalf("err = %v, want ErrPublishFailed", err)
	}
	if api.uploadCalls != cfg.Publisher.MaxAttempts {
		t.Fatalf("uploadCalls = %d, want %d", api.uploadCalls, cfg.Publisher.MaxAttempts)
	}
}

func TestPublishEmptyResultRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadScript: []uploadResult{
		{mediaID: ""},
		{mediaID: "media-2"},
	}}
	publisher, _ := newTestPublisher(t, cfg, api)

	mediaID, err := publisher.Publish(context.Background(), testImage, "spotted")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if mediaID != "media-2" {
		t.Fatalf("mediaID = %q, want media-2", mediaID)
	}
	if api.uploadCalls != 2 {
		t.Fatalf("uploadCalls = %d, want 2", api.uploadCalls)
	}
}

func TestPublishFatalFailsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadErr: &apiError{StatusCode: 400, Message: "rejected"}}
	publisher, _ := newTestPublisher(t, cfg, api)

	var slept bool
	publisher.sleep = func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}

	_, err := publisher.Publish(context.Background(), testImage, "spotted")
	if !errors.Is(err, services.ErrPublishFailed) {
		t.Fatalf("err = %v, want ErrPublishFailed", err)
	}
	if api.uploadCalls != 1 {
		t.Fatalf("uploadCalls = %d, want 1", api.uploadCalls)
	}
	if slept {
		t.Fatal("fatal failure must not back off")
	}
}

func TestPublishReloginGrantsOneExtraAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadScript: []uploadResult{
		{err: &loginRequiredError{}},
		{mediaID: "media-2"},
	}}
	publisher, store := newTestPublisher(t, cfg, api)

	mediaID, err := publisher.Publish(context.Background(), testImage, "spotted")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if mediaID != "media-2" {
		t.Fatalf("mediaID = %q, want media-2", mediaID)
	}
	if api.uploadCalls != 2 {
		t.Fatalf("uploadCalls = %d, want 2", api.uploadCalls)
	}
	if store.deletes != 1 {
		t.Fatalf("store.deletes = %d, want cached session discarded once", store.deletes)
	}
	// Initial EnsureReady logs in once, the relogin a second time.
	if api.loginCalls != 2 {
		t.Fatalf("loginCalls = %d, want 2", api.loginCalls)
	}
}

func TestPublishReloginFailureSurfaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadErr: &loginRequiredError{}}
	publisher, _ := newTestPublisher(t, cfg, api)

	_, err := publisher.Publish(context.Background(), testImage, "spotted")
	if !errors.Is(err, services.ErrPublishFailed) {
		t.Fatalf("err = %v, want ErrPublishFailed", err)
	}
	// One upload before the relogin, one after, never more.
	if api.uploadCalls != 2 {
		t.Fatalf("uploadCalls = %d, want 2", api.uploadCalls)
	}
}

func TestPublishCancelledContextStopsRetrying(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadErr: &apiError{StatusCode: 503, Message: "unavailable"}}
	publisher, _ := newTestPublisher(t, cfg, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := publisher.Publish(ctx, testImage, "spotted")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if api.uploadCalls > 1 {
		t.Fatalf("uploadCalls = %d, want no retries after cancellation", api.uploadCalls)
	}
}

func TestPublishReleasesSlotDuringBackoff(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &fakeAPI{uploadScript: []uploadResult{
		{err: &throttledError{}},
		{mediaID: "media-2"},
	}}
	publisher, _ := newTestPublisher(t, cfg, api)

	publisher.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case publisher.slot <- struct{}{}:
			<-publisher.slot
		default:
			t.Error("account slot held during backoff sleep")
		}
		return nil
	}

	if _, err := publisher.Publish(context.Background(), testImage, "spotted"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

// overlapAPI flags any concurrent entry into UploadStory.
type overlapAPI struct {
	*fakeAPI
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (o *overlapAPI) UploadStory(ctx context.Context, image []byte, caption string) (string, error) {
	if o.inFlight.Add(1) > 1 {
		o.overlap.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	o.inFlight.Add(-1)
	return o.fakeAPI.UploadStory(ctx, image, caption)
}

func TestPublishSerializesConcurrentCallers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	api := &overlapAPI{fakeAPI: &fakeAPI{}}
	publisher, _ := newTestPublisher(t, cfg, api)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := publisher.Publish(context.Background(), testImage, "spotted"); err != nil {
				t.Errorf("Publish: %v", err)
			}
		}()
	}
	wg.Wait()

	if api.overlap.Load() {
		t.Fatal("expected uploads serialized through the account slot")
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	publisher := &Publisher{backoffInitial: 5 * time.Second, backoffMax: 40 * time.Second}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 40 * time.Second}
	for i, expected := range want {
		if got := publisher.backoffDelay(i + 1); got != expected {
			t.Fatalf("backoffDelay(%d) = %v, want %v", i+1, got, expected)
		}
	}
}
