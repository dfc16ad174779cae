package session

import (
	"context"
	"sync"
	"time"
)

// Store keeps one transient conversation record per actor.
type Store[T any] interface {
	Get(ctx context.Context, actorID string) (T, bool, error)
	Set(ctx context.Context, actorID string, value T) error
	Delete(ctx context.Context, actorID string) error
	Expire(ctx context.Context, now time.Time) (int, error)
}

type memoryEntry[T any] struct {
	value     T
	touchedAt time.Time
}

// Memory is a process-local Store. Entries untouched for longer than ttl are
// invisible to Get and removed by Expire.
type Memory[T any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory[T any](ttl time.Duration) *Memory[T] {
	return &Memory[T]{
		entries: make(map[string]memoryEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory[T]) Get(_ context.Context, actorID string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	entry, ok := m.entries[actorID]
	if !ok {
		return zero, false, nil
	}
	if m.stale(entry, m.now()) {
		delete(m.entries, actorID)
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory[T]) Set(_ context.Context, actorID string, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[actorID] = memoryEntry[T]{value: value, touchedAt: m.now()}
	return nil
}

func (m *Memory[T]) Delete(_ context.Context, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, actorID)
	return nil
}

func (m *Memory[T]) Expire(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for actorID, entry := range m.entries {
		if m.stale(entry, now) {
			delete(m.entries, actorID)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory[T]) stale(entry memoryEntry[T], now time.Time) bool {
	return m.ttl > 0 && now.Sub(entry.touchedAt) > m.ttl
}
