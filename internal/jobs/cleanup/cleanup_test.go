package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GK-FY/bulk/internal/services/dedup"
	"github.com/GK-FY/bulk/internal/services/session"
)

func TestRunExpiresStaleSessionsAndDedupMarks(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemory[string](time.Minute)
	if err := sessions.Set(ctx, "actor-1", "stage"); err != nil {
		t.Fatalf("set session: %v", err)
	}
	marks := dedup.NewMemory()
	if _, err := marks.Claim(ctx, "event", "e-1", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	job := New(nil)
	job.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	job.Attach("sessions", sessions)
	job.Attach("dedup", marks)

	if err := job.Run(ctx); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected sessions to be swept, %d left", sessions.Len())
	}
	seen, _ := marks.Seen(ctx, "event", "e-1")
	if seen {
		t.Fatalf("expected dedup mark to be swept")
	}
}

func TestRunContinuesAfterFailingTarget(t *testing.T) {
	calls := 0
	job := New(nil)
	job.Attach("broken", ExpireFunc(func(context.Context, time.Time) (int, error) {
		return 0, errors.New("boom")
	}))
	job.Attach("healthy", ExpireFunc(func(context.Context, time.Time) (int, error) {
		calls++
		return 1, nil
	}))

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected the first failure to be reported")
	}
	if calls != 1 {
		t.Fatalf("healthy target must still run, calls=%d", calls)
	}
}
