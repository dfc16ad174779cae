package session

import (
	"context"
	"testing"
	"time"
)

type testSession struct {
	Stage string
}

func TestMemoryGetSetDelete(t *testing.T) {
	store := NewMemory[testSession](time.Minute)
	ctx := context.Background()

	if _, ok, _ := store.Get(ctx, "1"); ok {
		t.Fatalf("expected no session")
	}
	_ = store.Set(ctx, "1", testSession{Stage: "awaitRegister"})

	got, ok, err := store.Get(ctx, "1")
	if err != nil || !ok || got.Stage != "awaitRegister" {
		t.Fatalf("unexpected session: %+v ok=%v err=%v", got, ok, err)
	}

	_ = store.Delete(ctx, "1")
	if _, ok, _ := store.Get(ctx, "1"); ok {
		t.Fatalf("session must be gone after delete")
	}
}

func TestMemoryExpireRemovesIdleSessions(t *testing.T) {
	store := NewMemory[testSession](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, "idle", testSession{Stage: "topupAmount"})
	now = now.Add(50 * time.Second)
	_ = store.Set(ctx, "active", testSession{Stage: "composeBroadcast"})

	removed, err := store.Expire(ctx, now.Add(20*time.Second))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if removed != 1 {
		t.Fatalf("unexpected removed count: %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("unexpected remaining sessions: %d", store.Len())
	}
}

func TestMemoryGetHidesStaleSession(t *testing.T) {
	store := NewMemory[testSession](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, "1", testSession{Stage: "topupAmount"})
	now = now.Add(2 * time.Minute)

	if _, ok, _ := store.Get(ctx, "1"); ok {
		t.Fatalf("stale session must not be returned")
	}
}
