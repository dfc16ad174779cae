package payments

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/GK-FY/bulk/internal/domain/model"
)

var ErrPendingExists = errors.New("pending payment entry already exists")

// PendingStore holds the uncredited checkouts. Take must remove and return
// the entry in one atomic step so that only one caller ever receives it.
type PendingStore interface {
	Put(ctx context.Context, entry model.PendingEntry) error
	Take(ctx context.Context, checkoutID string) (model.PendingEntry, bool, error)
	Has(ctx context.Context, checkoutID string) (bool, error)
}

type MemoryPending struct {
	mu      sync.Mutex
	entries map[string]model.PendingEntry
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{entries: make(map[string]model.PendingEntry)}
}

func (m *MemoryPending) Put(_ context.Context, entry model.PendingEntry) error {
	id := strings.TrimSpace(entry.CheckoutID)
	if id == "" {
		return errors.New("checkout id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; ok {
		return ErrPendingExists
	}
	entry.CheckoutID = id
	m.entries[id] = entry
	return nil
}

func (m *MemoryPending) Take(_ context.Context, checkoutID string) (model.PendingEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[checkoutID]
	if ok {
		delete(m.entries, checkoutID)
	}
	return entry, ok, nil
}

func (m *MemoryPending) Has(_ context.Context, checkoutID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[checkoutID]
	return ok, nil
}

func (m *MemoryPending) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
