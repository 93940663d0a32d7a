package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process WindowStore. Suitable for a single
// instance; horizontally scaled deployments should use the Redis store so
// quotas stay global.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

func (s *MemoryStore) Slide(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.prune(key, now, window)
	if len(kept) >= max {
		s.windows[key] = kept
		return false, len(kept), nil
	}

	kept = append(kept, now)
	s.windows[key] = kept
	return true, len(kept), nil
}

func (s *MemoryStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.prune(key, now, window)
	if len(kept) == 0 {
		delete(s.windows, key)
	} else {
		s.windows[key] = kept
	}
	return len(kept), nil
}

// prune must be called with the mutex held.
func (s *MemoryStore) prune(key string, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	stamps := s.windows[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
