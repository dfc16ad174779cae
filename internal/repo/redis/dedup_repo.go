package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const dedupPrefix = "dedup:"

type DedupRepo struct {
	client *goredis.Client
}

func NewDedupRepo(client *goredis.Client) *DedupRepo {
	return &DedupRepo{client: client}
}

// Claim marks id as seen and reports whether this call was the first one
// within ttl.
func (r *DedupRepo) Claim(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(id) == "" || ttl <= 0 {
		return false, fmt.Errorf("invalid dedup payload")
	}

	ok, err := r.client.SetNX(ctx, dedupKey(scope, id), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim dedup key: %w", err)
	}
	return ok, nil
}

func (r *DedupRepo) Seen(ctx context.Context, scope, id string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	n, err := r.client.Exists(ctx, dedupKey(scope, id)).Result()
	if err != nil {
		return false, fmt.Errorf("check dedup key: %w", err)
	}
	return n > 0, nil
}

func (r *DedupRepo) Mark(ctx context.Context, scope, id string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(id) == "" || ttl <= 0 {
		return fmt.Errorf("invalid dedup payload")
	}

	if err := r.client.Set(ctx, dedupKey(scope, id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("mark dedup key: %w", err)
	}
	return nil
}

func dedupKey(scope, id string) string {
	return dedupPrefix + scope + ":" + id
}
