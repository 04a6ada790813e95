package rate

import (
	"context"
	"sync"
	"time"
)

const defaultEntryTTL = 24 * time.Hour

// MemoryStorage keeps limiter state in a map. Suitable for the API
// limiter on a single instance and for tests; per-resource crawl
// limits shared across instances use RedisStorage.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]*memoryEntry
	done chan struct{}
	wg   sync.WaitGroup
}

type memoryEntry struct {
	state     *State
	expiresAt time.Time
}

// NewMemoryStorage creates the storage and starts its expiry sweeper.
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{
		data: make(map[string]*memoryEntry),
		done: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.sweepLoop()

	return s
}

// copyState duplicates state so callers never share the stored value.
func copyState(state *State) *State {
	out := &State{
		Tokens:      state.Tokens,
		LastUpdate:  state.LastUpdate,
		Counter:     state.Counter,
		WindowStart: state.WindowStart,
	}
	if state.Timestamps != nil {
		out.Timestamps = make([]time.Time, len(state.Timestamps))
		copy(out.Timestamps, state.Timestamps)
	}
	return out
}

// Get returns the current state for key, or nil if absent or expired.
func (s *MemoryStorage) Get(ctx context.Context, key string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, nil
	}

	return copyState(entry.state), nil
}

// Set stores a copy of state under key with the given TTL.
func (s *MemoryStorage) Set(ctx context.Context, key string, state *State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if ttl <= 0 {
		expiresAt = time.Now().Add(defaultEntryTTL)
	}

	s.data[key] = &memoryEntry{
		state:     copyState(state),
		expiresAt: expiresAt,
	}

	return nil
}

// Increment atomically adds n to the counter for key, creating the
// entry if needed, and extends the TTL.
func (s *MemoryStorage) Increment(ctx context.Context, key string, n int, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.data[key]
	if !exists || time.Now().After(entry.expiresAt) {
		expiresAt := time.Now().Add(ttl)
		if ttl <= 0 {
			expiresAt = time.Now().Add(defaultEntryTTL)
		}

		s.data[key] = &memoryEntry{
			state: &State{
				Counter:    int64(n),
				LastUpdate: time.Now(),
			},
			expiresAt: expiresAt,
		}
		return int64(n), nil
	}

	entry.state.Counter += int64(n)
	entry.state.LastUpdate = time.Now()

	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	return entry.state.Counter, nil
}

// Delete removes the state for key.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close stops the sweeper.
func (s *MemoryStorage) Close() error {
	close(s.done)
	s.wg.Wait()
	return nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStorage) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.data {
		if now.After(entry.expiresAt) {
			delete(s.data, key)
		}
	}
}

// Len reports the number of live entries. Used by tests.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
