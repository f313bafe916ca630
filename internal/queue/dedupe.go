package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultDeliveryTTL = 24 * time.Hour

// Deduplicator remembers webhook delivery IDs so redelivered hooks are dropped.
type Deduplicator interface {
	// FirstSeen reports whether deliveryID had not been seen before, marking it seen.
	FirstSeen(ctx context.Context, deliveryID string) (bool, error)
	// Forget clears deliveryID so a redelivery after a failure is processed.
	Forget(ctx context.Context, deliveryID string) error
}

type redisDeduplicator struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduplicator(client redis.Cmdable, ttl time.Duration) Deduplicator {
	if ttl <= 0 {
		ttl = DefaultDeliveryTTL
	}
	return &redisDeduplicator{client: client, ttl: ttl}
}

func (d *redisDeduplicator) FirstSeen(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, DeliveryKey(deliveryID), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("marking delivery %s: %w", deliveryID, err)
	}
	return ok, nil
}

func (d *redisDeduplicator) Forget(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return nil
	}
	if err := d.client.Del(ctx, DeliveryKey(deliveryID)).Err(); err != nil {
		return fmt.Errorf("forgetting delivery %s: %w", deliveryID, err)
	}
	return nil
}

type noopDeduplicator struct{}

// NewNoopDeduplicator treats every delivery as new.
func NewNoopDeduplicator() Deduplicator {
	return noopDeduplicator{}
}

func (noopDeduplicator) FirstSeen(context.Context, string) (bool, error) {
	return true, nil
}

func (noopDeduplicator) Forget(context.Context, string) error {
	return nil
}
