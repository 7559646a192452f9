package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// client tracks one caller's token bucket.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is an in-process token-bucket limiter for development and
// tests. It approximates the fixed-window semantics of the Redis limiter
// with a refill rate of Limit/Window and a burst of Limit. Stale entries are
// evicted by a background sweep.
type MemoryLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter creates an in-memory limiter. Close stops its sweep
// goroutine.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		cfg = DefaultConfig()
	}
	l := &MemoryLimiter{
		clients: make(map[string]*client),
		rps:     rate.Limit(float64(cfg.Limit) / cfg.Window.Seconds()),
		burst:   cfg.Limit,
		ttl:     3 * cfg.Window,
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Close stops the background sweep. Safe to call more than once; the limiter
// keeps serving Allow afterwards, it just stops evicting idle clients.
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow consumes one token from the caller's bucket. It never fails.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()

	return c.limiter.Allow(), nil
}

// sweep evicts clients not seen within the TTL until Close is called.
func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-l.ttl)
			l.mu.Lock()
			for key, c := range l.clients {
				if c.lastSeen.Before(cutoff) {
					delete(l.clients, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
