package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"

// SessionRepo keeps one JSON encoded conversation session per actor. Keys
// carry their own TTL so Expire has nothing to sweep.
type SessionRepo[T any] struct {
	client *goredis.Client
	scope  string
	ttl    time.Duration
}

func NewSessionRepo[T any](client *goredis.Client, scope string, ttl time.Duration) *SessionRepo[T] {
	return &SessionRepo[T]{client: client, scope: scope, ttl: ttl}
}

func (r *SessionRepo[T]) Get(ctx context.Context, actorID string) (T, bool, error) {
	var zero T
	if r.client == nil {
		return zero, false, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, r.key(actorID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get session: %w", err)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, fmt.Errorf("decode session: %w", err)
	}
	return out, true, nil
}

func (r *SessionRepo[T]) Set(ctx context.Context, actorID string, value T) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("actor id is required")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(actorID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *SessionRepo[T]) Delete(ctx context.Context, actorID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key(actorID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo[T]) Expire(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *SessionRepo[T]) key(actorID string) string {
	return sessionPrefix + r.scope + ":" + actorID
}
