package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is a fixed-window attempt counter: the first hit in a window sets
// the expiry, later hits only increment.
type Counter struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// Hit is the outcome of one increment.
type Hit struct {
	Count      int64
	Exceeded   bool          // Count > limit
	RetryAfter time.Duration // remaining window, set when Exceeded
}

func NewCounter(rdb *redis.Client, prefix string, limit int64, window time.Duration) *Counter {
	return &Counter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (c *Counter) key(k string) string { return c.prefix + ":" + k }

// Limit is the number of hits allowed per window.
func (c *Counter) Limit() int64 { return c.limit }

// Window is the counter window.
func (c *Counter) Window() time.Duration { return c.window }

// Hit increments the counter for k.
func (c *Counter) Hit(ctx context.Context, k string) (Hit, error) {
	key := c.key(k)

	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Hit{}, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, c.window).Err(); err != nil {
			return Hit{}, err
		}
	}

	hit := Hit{Count: n, Exceeded: n > c.limit}
	if !hit.Exceeded {
		return hit, nil
	}

	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return Hit{}, err
	}
	if ttl < 0 {
		// The expiry after the first hit was lost; start a fresh window.
		if err := c.rdb.Expire(ctx, key, c.window).Err(); err != nil {
			return Hit{}, err
		}
		ttl = c.window
	}
	hit.RetryAfter = ttl
	return hit, nil
}

// Reset clears the counter for k.
func (c *Counter) Reset(ctx context.Context, k string) error {
	return c.rdb.Del(ctx, c.key(k)).Err()
}
