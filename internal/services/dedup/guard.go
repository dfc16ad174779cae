package dedup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	scopeEvent = "event"
	scopeReply = "reply"
)

type Store interface {
	Claim(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	Seen(ctx context.Context, scope, id string) (bool, error)
	Mark(ctx context.Context, scope, id string, ttl time.Duration) error
}

// Guard suppresses repeated processing of inbound events and repeated
// replies. Marks expire on their own after ttl.
type Guard struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewGuard(store Store, ttl time.Duration, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Guard{store: store, ttl: ttl, logger: logger}
}

func (g *Guard) SeenEvent(ctx context.Context, eventID string) bool {
	return g.seen(ctx, scopeEvent, eventID)
}

func (g *Guard) MarkEvent(ctx context.Context, eventID string) {
	g.mark(ctx, scopeEvent, eventID)
}

func (g *Guard) SeenReply(ctx context.Context, replyID string) bool {
	return g.seen(ctx, scopeReply, replyID)
}

func (g *Guard) MarkReply(ctx context.Context, replyID string) {
	g.mark(ctx, scopeReply, replyID)
}

// ClaimEvent reports whether eventID is new and marks it in the same step.
func (g *Guard) ClaimEvent(ctx context.Context, eventID string) bool {
	return g.claim(ctx, scopeEvent, eventID)
}

func (g *Guard) ClaimReply(ctx context.Context, replyID string) bool {
	return g.claim(ctx, scopeReply, replyID)
}

// Store failures fail open.
func (g *Guard) claim(ctx context.Context, scope, id string) bool {
	if g == nil || g.store == nil || id == "" {
		return true
	}
	ok, err := g.store.Claim(ctx, scope, id, g.ttl)
	if err != nil {
		g.logger.Warn("dedup claim failed", zap.String("scope", scope), zap.String("id", id), zap.Error(err))
		return true
	}
	return ok
}

func (g *Guard) seen(ctx context.Context, scope, id string) bool {
	if g == nil || g.store == nil || id == "" {
		return false
	}
	ok, err := g.store.Seen(ctx, scope, id)
	if err != nil {
		g.logger.Warn("dedup lookup failed", zap.String("scope", scope), zap.String("id", id), zap.Error(err))
		return false
	}
	return ok
}

func (g *Guard) mark(ctx context.Context, scope, id string) {
	if g == nil || g.store == nil || id == "" {
		return
	}
	if err := g.store.Mark(ctx, scope, id, g.ttl); err != nil {
		g.logger.Warn("dedup mark failed", zap.String("scope", scope), zap.String("id", id), zap.Error(err))
	}
}
