package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// StatusCache keeps a short-lived copy of order statuses so status polls do
// not hit Postgres. The database stays the source of truth.
type StatusCache struct{ C *redis.Client }

func (s *StatusCache) SetStatus(ctx context.Context, orderID, status string) error {
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	return s.C.Set(ctx, key, status, TTLStatusCache).Err()
}

// GetStatus returns "" without error on a cache miss.
func (s *StatusCache) GetStatus(ctx context.Context, orderID string) (string, error) {
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	v, err := s.C.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// Dedup is a first-seen marker for at-least-once inputs (webhook retries,
// redelivered events). SetOnce reports true the first time a key is seen.
// Callers that must survive a crash between processing and marking use
// Seen/Mark instead and mark only after the durable write succeeded.
type Dedup struct{ C *redis.Client }

func (d *Dedup) SetOnce(ctx context.Context, key string) (bool, error) {
	return d.C.SetNX(ctx, key, "1", TTLDedup).Result()
}

func (d *Dedup) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.C.Exists(ctx, key).Result()
	return n > 0, err
}

func (d *Dedup) Mark(ctx context.Context, key string) error {
	return d.C.Set(ctx, key, "1", TTLDedup).Err()
}
