package answercache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/weather-copilot/internal/domain/weather"
)

type cachedEntry struct {
	payload   weather.CachedAnswer
	expiresAt time.Time
}

// MemoryStore is an in-memory answer cache for tests/dev.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]cachedEntry
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]cachedEntry)}
}

// Get implements weather.AnswerStore.
func (s *MemoryStore) Get(_ context.Context, key string) (weather.CachedAnswer, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return weather.CachedAnswer{}, false, nil
	}
	if hasExpired(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return weather.CachedAnswer{}, false, nil
	}
	return entry.payload, true, nil
}

// Save caches the answer with optional TTL.
func (s *MemoryStore) Save(_ context.Context, key string, answer weather.CachedAnswer, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.entries[key] = cachedEntry{payload: answer, expiresAt: exp}
	return nil
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ weather.AnswerStore = (*MemoryStore)(nil)
