// Package cache wraps Redis for the one thing the checkout service caches:
// idempotency records. A storefront that retries POST /orders after a
// network blip sends the same Idempotency-Key header, and the handler
// replays the committed result instead of placing a second order.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency records outlive any realistic client retry window.
const idempotencyTTL = 24 * time.Hour

// PlacementRecord is what gets replayed for a repeated idempotency key.
type PlacementRecord struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Subtotal    int64  `json:"subtotal"`
	Discount    int64  `json:"discount"`
	Total       int64  `json:"total"`
}

type Cache interface {
	// StorePlacement records the committed result under the idempotency key.
	StorePlacement(ctx context.Context, key string, rec PlacementRecord) error

	// LookupPlacement returns the stored record and true when the key has
	// been seen before. A miss is (zero, false, nil).
	LookupPlacement(ctx context.Context, key string) (PlacementRecord, bool, error)
}

type redisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(addr, namespace string) Cache {
	return &redisCache{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		namespace: namespace,
	}
}

func (r *redisCache) StorePlacement(ctx context.Context, key string, rec PlacementRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: marshal placement record: %w", err)
	}
	return r.client.Set(ctx, r.key(key), payload, idempotencyTTL).Err()
}

func (r *redisCache) LookupPlacement(ctx context.Context, key string) (PlacementRecord, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return PlacementRecord{}, false, nil
	}
	if err != nil {
		return PlacementRecord{}, false, err
	}

	var rec PlacementRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return PlacementRecord{}, false, fmt.Errorf("cache: unmarshal placement record: %w", err)
	}
	return rec, true, nil
}

func (r *redisCache) key(k string) string {
	return fmt.Sprintf("%s:idempotency:%s", r.namespace, k)
}
