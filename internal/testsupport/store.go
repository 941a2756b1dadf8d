package testsupport

import (
	"context"
	"testing"

	"spotd/internal/config"
	"spotd/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewMessage creates a pending message for tests using the provided store.
func NewMessage(t testing.TB, store *queue.Store, text string) *queue.Message {
	t.Helper()

	msg, err := store.Add(context.Background(), text, "test-token")
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return msg
}

// NewApprovedMessage creates a message already transitioned to approved.
func NewApprovedMessage(t testing.TB, store *queue.Store, text string) *queue.Message {
	t.Helper()

	msg := NewMessage(t, store, text)
	if err := store.UpdateStatus(context.Background(), msg.ID, queue.StatusApproved, queue.StatusUpdate{}); err != nil {
		t.Fatalf("approve message: %v", err)
	}
	msg.Status = queue.StatusApproved
	return msg
}
