package dedup

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store. Expired marks are ignored on read and
// dropped by Expire.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Memory) Claim(_ context.Context, scope, id string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := scope + ":" + id
	now := m.now()
	if expiresAt, ok := m.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	m.entries[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Seen(_ context.Context, scope, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.entries[scope+":"+id]
	return ok && m.now().Before(expiresAt), nil
}

func (m *Memory) Mark(_ context.Context, scope, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[scope+":"+id] = m.now().Add(ttl)
	return nil
}

func (m *Memory) Expire(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, expiresAt := range m.entries {
		if !now.Before(expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}
