// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Limiter is a fixed-window counter in Redis: at most limit events per key
// within each window, starting at the key's first event.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

func New(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: int64(limit), window: window}
}

// Allow records one event for key and reports whether it is within the limit.
// The counter is created with its TTL and incremented in one MULTI, so a key
// never exists without an expiry.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit incr %s: %w", k, err)
	}
	return incr.Val() <= l.limit, nil
}

// Remaining returns how many events key may still record in its window.
func (l *Limiter) Remaining(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Get(ctx, keyPrefix+key).Int64()
	if err == redis.Nil {
		return l.limit, nil
	}
	if err != nil {
		return 0, err
	}
	if count >= l.limit {
		return 0, nil
	}
	return l.limit - count, nil
}
