// Package cache provides the response cache in front of the search pipeline:
// canonical cache keys, a storage-agnostic interface, and the Redis-backed
// implementation with stale-on-error support.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is a cached response payload. Stale means the entry outlived its soft
// TTL but is still within the stale grace window; callers serve it only when
// the backend that would refresh it is failing.
type Entry struct {
	Payload json.RawMessage
	Stale   bool
}

// ResponseCache stores serialized response payloads keyed by canonical query
// keys. A miss is reported as (nil, nil); errors mean the cache backend
// itself failed and are absorbed by callers (log + treat as miss).
type ResponseCache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// DeletePattern removes all keys matching a glob pattern, e.g. "search:*".
	// Used by the event-driven invalidation path.
	DeletePattern(ctx context.Context, pattern string) error
}
