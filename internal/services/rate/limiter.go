package rate

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidActor = errors.New("invalid actor id")
	ErrNoStore      = errors.New("rate limiter store is nil")
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// quota is one fixed window on payment initiations. Every attempt is
// counted, including refused ones, so hammering the menu does not open the
// window early.
type quota struct {
	name  string
	span  time.Duration
	limit int64
}

func (q quota) key(actorID string) string {
	return "topup:" + q.name + ":" + actorID
}

// Limiter caps how often one actor may start a gateway top-up. Limits of
// zero or less are not enforced.
type Limiter struct {
	store  WindowStore
	quotas []quota
}

func NewLimiter(store WindowStore, perMinute, perHour int) *Limiter {
	l := &Limiter{store: store}
	for _, q := range []quota{
		{name: "min", span: time.Minute, limit: int64(perMinute)},
		{name: "hour", span: time.Hour, limit: int64(perHour)},
	} {
		if q.limit > 0 {
			l.quotas = append(l.quotas, q)
		}
	}
	return l
}

// AllowTopUp counts one initiation attempt against every window. When any
// window is over its limit the attempt is refused and retryAfter holds the
// seconds until the longest blocking window closes.
func (l *Limiter) AllowTopUp(ctx context.Context, actorID string) (int64, bool, error) {
	actorID, err := l.prepare(actorID)
	if err != nil {
		return 0, false, err
	}

	var wait int64
	for _, q := range l.quotas {
		count, ttl, err := l.store.IncrementWindow(ctx, q.key(actorID), q.span)
		if err != nil {
			return 0, false, err
		}
		if count > q.limit {
			wait = max(wait, ceilSeconds(ttl))
		}
	}
	return wait, wait == 0, nil
}

// RetryAfterTopUp reports how long the next attempt would be refused for,
// without counting one.
func (l *Limiter) RetryAfterTopUp(ctx context.Context, actorID string) (int64, error) {
	actorID, err := l.prepare(actorID)
	if err != nil {
		return 0, err
	}

	var wait int64
	for _, q := range l.quotas {
		count, ttl, err := l.store.WindowState(ctx, q.key(actorID))
		if err != nil {
			return 0, err
		}
		if count >= q.limit {
			wait = max(wait, ceilSeconds(ttl))
		}
	}
	return wait, nil
}

func (l *Limiter) prepare(actorID string) (string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", ErrInvalidActor
	}
	if l.store == nil {
		return "", ErrNoStore
	}
	return actorID, nil
}

// ceilSeconds rounds up so a caller told to wait never retries early.
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
