package dedup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGuardClaimsEventOnceWithinTTL(t *testing.T) {
	store := NewMemory()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	guard := NewGuard(store, 60*time.Second, nil)
	ctx := context.Background()

	if !guard.ClaimEvent(ctx, "evt-1") {
		t.Fatalf("first claim must succeed")
	}
	if guard.ClaimEvent(ctx, "evt-1") {
		t.Fatalf("second claim within ttl must be rejected")
	}
	if !guard.ClaimReply(ctx, "evt-1") {
		t.Fatalf("reply marks are separate from event marks")
	}

	now = now.Add(61 * time.Second)
	if guard.SeenEvent(ctx, "evt-1") {
		t.Fatalf("event mark must expire after ttl")
	}
	if !guard.ClaimEvent(ctx, "evt-1") {
		t.Fatalf("claim after expiry must succeed")
	}
}

func TestGuardSeenAndMark(t *testing.T) {
	guard := NewGuard(NewMemory(), time.Minute, nil)
	ctx := context.Background()

	if guard.SeenReply(ctx, "r-1") {
		t.Fatalf("unexpected seen reply")
	}
	guard.MarkReply(ctx, "r-1")
	if !guard.SeenReply(ctx, "r-1") {
		t.Fatalf("expected reply to be seen after mark")
	}
}

func TestMemoryExpireDropsStaleEntries(t *testing.T) {
	store := NewMemory()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Mark(ctx, "event", "a", time.Second)
	_ = store.Mark(ctx, "event", "b", time.Hour)

	removed, err := store.Expire(ctx, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if removed != 1 {
		t.Fatalf("unexpected removed count: %d", removed)
	}
}

type failingStore struct{}

func (failingStore) Claim(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("down")
}

func (failingStore) Seen(context.Context, string, string) (bool, error) {
	return false, errors.New("down")
}

func (failingStore) Mark(context.Context, string, string, time.Duration) error {
	return errors.New("down")
}

func TestGuardLetsEventsThroughWhenStoreFails(t *testing.T) {
	guard := NewGuard(failingStore{}, time.Minute, nil)

	if !guard.ClaimEvent(context.Background(), "evt-1") {
		t.Fatalf("store failure must not drop the event")
	}
}
