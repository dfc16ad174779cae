package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local WindowStore used when redis is not
// configured.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]memoryWindow),
		now:     time.Now,
	}
}

func (s *MemoryStore) IncrementWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = memoryWindow{expiresAt: now.Add(window)}
	}
	w.count++
	s.windows[key] = w
	return w.count, w.expiresAt.Sub(now), nil
}

func (s *MemoryStore) WindowState(_ context.Context, key string) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		return 0, 0, nil
	}
	return w.count, w.expiresAt.Sub(now), nil
}

// Expire drops windows that have closed.
func (s *MemoryStore) Expire(_ context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}
