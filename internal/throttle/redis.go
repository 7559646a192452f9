package throttle

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter in Redis. The window state lives in
// the shared store, so every gateway replica enforces one combined limit per
// client.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		cfg = DefaultConfig()
	}
	return &RedisLimiter{client: client, cfg: cfg}
}

// Allow increments the caller's window counter and compares it against the
// limit. INCR and EXPIRE run in one pipeline round-trip; the expiry is set
// only when the counter was just created, so the window does not slide.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	storeKey := KeyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, storeKey)
	pipe.ExpireNX(ctx, storeKey, l.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle incr: %w", err)
	}

	return incr.Val() <= int64(l.cfg.Limit), nil
}
