package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/mintbox/core"
)

type sessionEntry struct {
	token     string
	expiresAt time.Time
}

// MemorySessionStore is an in-memory implementation of the SessionStore interface.
// Expired entries are treated as absent and dropped lazily.
type MemorySessionStore struct {
	sessions map[string]sessionEntry
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]sessionEntry),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for entry expiry
func (s *MemorySessionStore) WithClock(now func() time.Time) *MemorySessionStore {
	s.now = now
	return s
}

// Put stores the refresh token for address, replacing any previous one
func (s *MemorySessionStore) Put(ctx context.Context, address, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[core.NormalizeAddress(address)] = sessionEntry{
		token:     token,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Get returns the live refresh token for address
func (s *MemorySessionStore) Get(ctx context.Context, address string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.NormalizeAddress(address)
	entry, ok := s.sessions[key]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, key)
		return "", false, nil
	}
	return entry.token, true, nil
}

// Delete removes the entry for address and reports how many were removed
func (s *MemorySessionStore) Delete(ctx context.Context, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.NormalizeAddress(address)
	entry, ok := s.sessions[key]
	if !ok {
		return 0, nil
	}
	delete(s.sessions, key)
	if !s.now().Before(entry.expiresAt) {
		return 0, nil
	}
	return 1, nil
}
