package dedupe

import (
	"context"
	"sync"
	"time"
)

// memoryEntry wraps an entry with expiry information
type memoryEntry struct {
	entry     *Entry
	expiresAt time.Time
}

// memoryStore implements Store in process memory.
// WARNING: This is NOT distributed-safe and should only be used for
// single-process runs and tests.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() Store {
	s := &memoryStore{
		entries: make(map[string]*memoryEntry),
	}
	go s.cleanup()
	return s
}

// cleanup periodically removes expired entries
func (s *memoryStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for key, me := range s.entries {
			if now.After(me.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// Load retrieves an entry by key
func (s *memoryStore) Load(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	me, exists := s.entries[key]
	if !exists || time.Now().After(me.expiresAt) {
		return nil, nil
	}

	// Copy so callers cannot mutate stored state
	entry := *me.entry
	return &entry, nil
}

// TryBegin atomically claims the key
func (s *memoryStore) TryBegin(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if me, exists := s.entries[key]; exists && time.Now().Before(me.expiresAt) {
		return false, nil
	}

	now := time.Now()
	s.entries[key] = &memoryEntry{
		entry: &Entry{
			Key:       key,
			State:     StateInFlight,
			CreatedAt: now,
			UpdatedAt: now,
		},
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// SaveResult records a completed fetch
func (s *memoryStore) SaveResult(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry := &Entry{
		Key:       key,
		State:     StateDone,
		Result:    result,
		UpdatedAt: now,
	}
	if me, exists := s.entries[key]; exists {
		entry.CreatedAt = me.entry.CreatedAt
	} else {
		entry.CreatedAt = now
	}
	s.entries[key] = &memoryEntry{entry: entry, expiresAt: now.Add(ttl)}
	return nil
}

// SaveError records a failed fetch
func (s *memoryStore) SaveError(ctx context.Context, key string, errMsg string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry := &Entry{
		Key:       key,
		State:     StateFailed,
		ErrorMsg:  errMsg,
		UpdatedAt: now,
	}
	if me, exists := s.entries[key]; exists {
		entry.CreatedAt = me.entry.CreatedAt
	} else {
		entry.CreatedAt = now
	}
	s.entries[key] = &memoryEntry{entry: entry, expiresAt: now.Add(ttl)}
	return nil
}
