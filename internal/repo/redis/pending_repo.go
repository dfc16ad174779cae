package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/GK-FY/bulk/internal/domain/model"
)

const pendingPrefix = "pending_payment:"

var ErrPendingExists = errors.New("pending payment entry already exists")

// PendingRepo stores pending payment entries. Take uses GETDEL so the check
// and the removal are one server-side step.
type PendingRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPendingRepo(client *goredis.Client, ttl time.Duration) *PendingRepo {
	return &PendingRepo{client: client, ttl: ttl}
}

func (r *PendingRepo) Put(ctx context.Context, entry model.PendingEntry) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(entry.CheckoutID) == "" {
		return fmt.Errorf("checkout id is required")
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode pending entry: %w", err)
	}
	ok, err := r.client.SetNX(ctx, pendingKey(entry.CheckoutID), raw, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("put pending entry: %w", err)
	}
	if !ok {
		return ErrPendingExists
	}
	return nil
}

func (r *PendingRepo) Take(ctx context.Context, checkoutID string) (model.PendingEntry, bool, error) {
	if r.client == nil {
		return model.PendingEntry{}, false, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.GetDel(ctx, pendingKey(checkoutID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.PendingEntry{}, false, nil
	}
	if err != nil {
		return model.PendingEntry{}, false, fmt.Errorf("take pending entry: %w", err)
	}

	var entry model.PendingEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.PendingEntry{}, false, fmt.Errorf("decode pending entry: %w", err)
	}
	return entry, true, nil
}

func (r *PendingRepo) Has(ctx context.Context, checkoutID string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	n, err := r.client.Exists(ctx, pendingKey(checkoutID)).Result()
	if err != nil {
		return false, fmt.Errorf("check pending entry: %w", err)
	}
	return n > 0, nil
}

func pendingKey(checkoutID string) string {
	return pendingPrefix + checkoutID
}
