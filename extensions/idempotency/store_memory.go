package idempotency

import (
	"context"
	"sync"
	"time"

	fisher "github.com/socialpay/fisher"
)

// InMemoryStore keeps confirm outcomes in process memory.
//
// Suitable for single-instance deployments; pending proposals live in memory
// too, so nothing is lost that the service itself would remember.
type InMemoryStore struct {
	mu       sync.Mutex
	results  map[string]fisher.ConfirmOutcome
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryStore creates a store that keeps settled outcomes for ttl.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		results:  make(map[string]fisher.ConfirmOutcome),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// CheckAndMark atomically checks the cache and marks the key as in-flight if needed.
func (s *InMemoryStore) CheckAndMark(key string) (ConfirmStatus, *fisher.ConfirmOutcome, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome, ok := s.getLocked(key); ok {
		return StatusCached, &outcome, nil
	}

	if done, exists := s.inFlight[key]; exists {
		return StatusInFlight, nil, done
	}

	done := make(chan struct{})
	s.inFlight[key] = done
	return StatusNotFound, nil, done
}

// WaitForResult waits for an in-flight confirm to finish.
func (s *InMemoryStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (*fisher.ConfirmOutcome, error) {
	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if outcome, ok := s.getLocked(key); ok {
			return &outcome, nil
		}
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// getLocked returns an unexpired cached outcome. Must be called with lock held.
func (s *InMemoryStore) getLocked(key string) (fisher.ConfirmOutcome, bool) {
	expiry, exists := s.expiry[key]
	if !exists {
		return fisher.ConfirmOutcome{}, false
	}
	if !s.now().Before(expiry) {
		delete(s.results, key)
		delete(s.expiry, key)
		return fisher.ConfirmOutcome{}, false
	}
	return s.results[key], true
}

// Complete caches outcome and signals waiters.
func (s *InMemoryStore) Complete(key string, outcome fisher.ConfirmOutcome, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = outcome
	s.expiry[key] = s.now().Add(s.ttl)
	delete(s.inFlight, key)
	close(done)

	s.cleanupExpiredLocked()
}

// Fail clears the in-flight marker without caching.
func (s *InMemoryStore) Fail(key string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	close(done)
}

// Len returns the number of cached outcomes, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiry := range s.expiry {
		if !now.Before(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}

var _ ConfirmStore = (*InMemoryStore)(nil)
