package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const ratePrefix = "rate:"

type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

// IncrementWindow counts one hit in a fixed window that starts with the first
// hit. It returns the count so far and the time left in the window.
func (r *RateRepo) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid rate window payload")
	}

	pipe := r.client.TxPipeline()
	pipe.SetNX(ctx, ratePrefix+key, 0, window)
	incr := pipe.Incr(ctx, ratePrefix+key)
	ttl := pipe.PTTL(ctx, ratePrefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("increment rate window: %w", err)
	}

	left := ttl.Val()
	if left < 0 {
		left = 0
	}
	return incr.Val(), left, nil
}

func (r *RateRepo) WindowState(ctx context.Context, key string) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return 0, 0, fmt.Errorf("rate key is required")
	}

	count, err := r.client.Get(ctx, ratePrefix+key).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get rate window: %w", err)
	}

	left, err := r.client.PTTL(ctx, ratePrefix+key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read rate window ttl: %w", err)
	}
	if left < 0 {
		left = 0
	}
	return count, left, nil
}
