// Package throttle provides distributed request rate limiting keyed by
// client identity.
package throttle

import (
	"context"
	"time"
)

// KeyPrefix namespaces limiter state in the shared store.
const KeyPrefix = "throttle:"

// Config holds the rate limit parameters: Limit requests per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig allows 100 requests per 60-second window.
func DefaultConfig() Config {
	return Config{Limit: 100, Window: time.Minute}
}

// Limiter decides whether a request identified by key may proceed. An error
// means the limiter backend failed; callers fail open so a degraded store
// never blocks traffic.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
