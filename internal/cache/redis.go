package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/youssefhesham2000/Catalog-Service/pkg/breaker"
)

var cacheRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "response_cache_requests_total",
		Help: "Response cache lookups by outcome (hit, stale, miss, error)",
	},
	[]string{"result"},
)

// envelope is the stored shape of a cache entry. ExpiresAt is the soft
// expiry; the Redis TTL is soft TTL plus the stale grace window, so an entry
// past ExpiresAt but still present can be served when the backend is down.
type envelope struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// RedisCache is the Redis-backed ResponseCache. Every round-trip goes
// through the cache circuit breaker so a dead Redis degrades to fast misses
// instead of per-request connection timeouts.
type RedisCache struct {
	client     *redis.Client
	staleGrace time.Duration
	breaker    *breaker.Breaker[[]byte]
	logger     *slog.Logger
}

// NewRedisCache creates a Redis-backed response cache. staleGrace extends
// the physical TTL beyond the soft TTL to keep stale-on-error candidates
// around.
func NewRedisCache(client *redis.Client, staleGrace time.Duration, brk breaker.Config, logger *slog.Logger) *RedisCache {
	if brk.Name == "" {
		brk = breaker.DefaultConfig("cache")
	}
	return &RedisCache{
		client:     client,
		staleGrace: staleGrace,
		breaker:    breaker.New[[]byte](brk, logger),
		logger:     logger,
	}
}

// Get retrieves an entry. A missing key is (nil, nil); a present entry past
// its soft expiry comes back with Stale=true.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}
		return data, nil
	})
	if err != nil {
		cacheRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if data == nil {
		cacheRequests.WithLabelValues("miss").Inc()
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// A corrupt entry is dropped and treated as a miss.
		c.logger.WarnContext(ctx, "dropping corrupt cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		_ = c.Delete(ctx, key)
		cacheRequests.WithLabelValues("miss").Inc()
		return nil, nil
	}

	entry := &Entry{Payload: env.Payload, Stale: time.Now().After(env.ExpiresAt)}
	if entry.Stale {
		cacheRequests.WithLabelValues("stale").Inc()
	} else {
		cacheRequests.WithLabelValues("hit").Inc()
	}
	return entry, nil
}

// Set stores a payload under the given soft TTL.
func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	data, err := json.Marshal(envelope{
		Payload:   payload,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("marshal cache envelope: %w", err)
	}

	_, err = c.breaker.Execute(func() ([]byte, error) {
		if err := c.client.Set(ctx, key, data, ttl+c.staleGrace).Err(); err != nil {
			return nil, fmt.Errorf("redis set: %w", err)
		}
		return nil, nil
	})
	return err
}

// Delete removes a single entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	_, err := c.breaker.Execute(func() ([]byte, error) {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("redis del: %w", err)
		}
		return nil, nil
	})
	return err
}

// DeletePattern removes all keys matching a glob pattern using SCAN, so a
// purge never blocks Redis the way KEYS would.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	_, err := c.breaker.Execute(func() ([]byte, error) {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) >= 100 {
				if err := c.client.Del(ctx, batch...).Err(); err != nil {
					return nil, fmt.Errorf("redis del batch: %w", err)
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		if len(batch) > 0 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return nil, fmt.Errorf("redis del batch: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

// Ping reports whether the Redis server is reachable, bypassing the breaker
// so health probes see the real backend state.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
