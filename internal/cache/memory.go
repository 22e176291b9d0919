package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process cache with the same expire-on-read semantics
// as the Redis store. Used when Redis is unreachable at startup so the
// service keeps serving, and as the test double.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	now func() time.Time // overridable in tests
}

type memoryEntry struct {
	entry     *Entry
	expiresAt time.Time
}

// NewMemory creates an empty in-process cache store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key.String())
		return nil, nil // expired entry is a miss
	}
	return e.entry, nil
}

func (s *MemoryStore) Put(_ context.Context, key Key, entry *Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key.String()] = memoryEntry{
		entry:     entry,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key.String())
	return nil
}
