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

// Cache adalah fast-path best effort di atas Redis. DB tetap jadi kebenaran;
// semua error di sini boleh diabaikan oleh pemanggil.
type Cache struct{ R *redis.Client }

// SeenEvent reports whether a provider callback id was already processed.
func (c *Cache) SeenEvent(ctx context.Context, provider, id string) bool {
	n, err := c.R.Exists(ctx, fmt.Sprintf(KeyDedup, provider, id)).Result()
	return err == nil && n > 0
}

func (c *Cache) MarkEvent(ctx context.Context, provider, id string) {
	_ = c.R.Set(ctx, fmt.Sprintf(KeyDedup, provider, id), "1", TTLDedup).Err()
}

func (c *Cache) SetOrderStatus(ctx context.Context, orderID, status string) {
	_ = c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), status, TTLStatusCache).Err()
}

func (c *Cache) OrderStatus(ctx context.Context, orderID string) (string, bool) {
	s, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}
