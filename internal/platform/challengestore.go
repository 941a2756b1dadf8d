package platform

import (
	"sync"
	"time"
)

// ChallengeState records a pending verification challenge for one account.
type ChallengeState struct {
	APIPath   string
	Method    string
	Methods   []string
	CreatedAt time.Time
}

// ChallengeStore tracks pending verification challenges with TTL eviction.
// Entries expire instead of lingering: the platform invalidates challenge
// codes after a while, and acting on a stale one locks the account flow.
type ChallengeStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]ChallengeState
	now     func() time.Time
}

// NewChallengeStore builds a store with the given entry lifetime.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ChallengeStore{
		ttl:     ttl,
		entries: make(map[string]ChallengeState),
		now:     time.Now,
	}
}

// Put records a pending challenge for the account, replacing any prior one.
func (s *ChallengeStore) Put(account string, state ChallengeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = s.now()
	}
	s.entries[account] = state
	s.sweepLocked()
}

// Get returns the pending challenge for the account if one exists and has
// not expired.
func (s *ChallengeStore) Get(account string) (ChallengeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	state, ok := s.entries[account]
	return state, ok
}

// Clear removes the account's pending challenge.
func (s *ChallengeStore) Clear(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, account)
}

func (s *ChallengeStore) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for account, state := range s.entries {
		if state.CreatedAt.Before(cutoff) {
			delete(s.entries, account)
		}
	}
}
