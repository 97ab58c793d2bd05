package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshStore remembers which refresh tokens are still usable. Tokens are
// identified by their jti and bound to a subject.
type RefreshStore interface {
	Store(ctx context.Context, subject, tokenID string, expiresAt time.Time) error
	Exists(ctx context.Context, subject, tokenID string) (bool, error)
	Revoke(ctx context.Context, subject, tokenID string) error
}

type refreshEntry struct {
	subject   string
	expiresAt time.Time
}

// MemoryRefreshStore is a process local RefreshStore. Expired entries are
// dropped on access and swept on every Store.
type MemoryRefreshStore struct {
	mu      sync.Mutex
	entries map[string]refreshEntry
	now     func() time.Time
}

// NewMemoryRefreshStore returns an empty store.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{
		entries: make(map[string]refreshEntry),
		now:     time.Now,
	}
}

// WithClock overrides the time used to expire entries.
func (s *MemoryRefreshStore) WithClock(now func() time.Time) *MemoryRefreshStore {
	if now != nil {
		s.mu.Lock()
		s.now = now
		s.mu.Unlock()
	}
	return s
}

// Store records tokenID for subject until expiresAt.
func (s *MemoryRefreshStore) Store(_ context.Context, subject, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	s.entries[tokenID] = refreshEntry{subject: subject, expiresAt: expiresAt}
	return nil
}

func (s *MemoryRefreshStore) sweep(now time.Time) {
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Exists reports whether tokenID is known, unexpired and bound to subject.
func (s *MemoryRefreshStore) Exists(_ context.Context, subject, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, tokenID)
		return false, nil
	}
	return entry.subject == subject, nil
}

// Revoke forgets tokenID. Revoking an unknown token is not an error.
func (s *MemoryRefreshStore) Revoke(_ context.Context, subject, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[tokenID]; ok && entry.subject == subject {
		delete(s.entries, tokenID)
	}
	return nil
}

// Len returns the number of tracked tokens.
func (s *MemoryRefreshStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
