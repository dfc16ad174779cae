package botapp

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/infra/metrics"
	"github.com/GK-FY/bulk/internal/services/dedup"
)

type sentLog struct {
	mu    sync.Mutex
	texts map[string][]string
}

func newSentLog() *sentLog {
	return &sentLog{texts: make(map[string][]string)}
}

func (s *sentLog) send(_ context.Context, actorID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[actorID] = append(s.texts[actorID], text)
	return nil
}

func (s *sentLog) get(actorID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts[actorID]...)
}

func echo(_ context.Context, event model.InboundEvent) ([]model.OutboundMessage, error) {
	return []model.OutboundMessage{{ActorID: event.ActorID, Text: event.Text}}, nil
}

func newTestRouter(handle eventHandler, sent *sentLog, m *metrics.Metrics) *router {
	guard := dedup.NewGuard(dedup.NewMemory(), time.Minute, nil)
	return newRouter(handle, sent.send, guard, m, nil)
}

func TestRouterKeepsPerActorOrder(t *testing.T) {
	sent := newSentLog()
	r := newTestRouter(echo, sent, nil)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		for _, actor := range []string{"a", "b"} {
			r.Dispatch(ctx, model.InboundEvent{
				EventID: fmt.Sprintf("%s-%d", actor, i),
				ActorID: actor,
				Text:    strconv.Itoa(i),
			})
		}
	}
	r.Wait()

	for _, actor := range []string{"a", "b"} {
		got := sent.get(actor)
		if len(got) != 50 {
			t.Fatalf("actor %s: expected 50 replies, got %d", actor, len(got))
		}
		for i, text := range got {
			if text != strconv.Itoa(i) {
				t.Fatalf("actor %s: reply %d out of order: %q", actor, i, text)
			}
		}
	}
}

func TestRouterDropsRedeliveredEvent(t *testing.T) {
	sent := newSentLog()
	m := metrics.New()

	var mu sync.Mutex
	calls := 0
	handle := func(ctx context.Context, event model.InboundEvent) ([]model.OutboundMessage, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return echo(ctx, event)
	}
	r := newTestRouter(handle, sent, m)

	event := model.InboundEvent{EventID: "42", ActorID: "a", Text: "1"}
	r.Dispatch(context.Background(), event)
	r.Wait()
	r.Dispatch(context.Background(), event)
	r.Wait()

	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
	if got := sent.get("a"); len(got) != 1 {
		t.Fatalf("expected one reply, got %v", got)
	}
	if got := testutil.ToFloat64(m.InboundEvents.WithLabelValues("duplicate")); got != 1 {
		t.Fatalf("expected one duplicate, got %v", got)
	}
}

func TestRouterSuppressesRepeatedReplies(t *testing.T) {
	sent := newSentLog()
	m := metrics.New()
	guard := dedup.NewGuard(dedup.NewMemory(), time.Minute, nil)
	r := newRouter(echo, sent.send, guard, m, nil)

	guard.ClaimReply(context.Background(), "7:0")
	r.process(context.Background(), model.InboundEvent{EventID: "7", ActorID: "a", Text: "hi"})

	if got := sent.get("a"); len(got) != 0 {
		t.Fatalf("expected reply to be suppressed, got %v", got)
	}
	if got := testutil.ToFloat64(m.RepliesSuppressed); got != 1 {
		t.Fatalf("expected one suppressed reply, got %v", got)
	}
}

func TestRouterRecoversFromPanic(t *testing.T) {
	sent := newSentLog()
	m := metrics.New()
	handle := func(ctx context.Context, event model.InboundEvent) ([]model.OutboundMessage, error) {
		if event.Text == "boom" {
			panic("boom")
		}
		return echo(ctx, event)
	}
	r := newTestRouter(handle, sent, m)

	ctx := context.Background()
	r.Dispatch(ctx, model.InboundEvent{EventID: "1", ActorID: "a", Text: "boom"})
	r.Dispatch(ctx, model.InboundEvent{EventID: "2", ActorID: "a", Text: "after"})
	r.Wait()

	got := sent.get("a")
	if len(got) != 1 || got[0] != "after" {
		t.Fatalf("expected the next event to be handled, got %v", got)
	}
	if failed := testutil.ToFloat64(m.InboundEvents.WithLabelValues("failed")); failed != 1 {
		t.Fatalf("expected one failed event, got %v", failed)
	}
}

func TestRouterRepliesOnHandlerError(t *testing.T) {
	sent := newSentLog()
	handle := func(context.Context, model.InboundEvent) ([]model.OutboundMessage, error) {
		return nil, fmt.Errorf("store down")
	}
	r := newTestRouter(handle, sent, nil)

	r.Dispatch(context.Background(), model.InboundEvent{EventID: "1", ActorID: "a", Text: "3"})
	r.Wait()

	got := sent.get("a")
	if len(got) != 1 || got[0] != failureReply {
		t.Fatalf("expected failure reply, got %v", got)
	}
}
