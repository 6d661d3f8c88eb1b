package cache

import (
	"sync"
	"time"
)

// DefaultTTL applies when a cache is constructed with a non-positive lifetime.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is an in-process cache whose entries expire after a fixed lifetime.
// It is safe for concurrent use.
type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]entry[V]
}

// Option customises cache construction.
type Option[V any] func(*TTL[V])

// WithClock overrides the time source, primarily for tests.
func WithClock[V any](clock func() time.Time) Option[V] {
	return func(c *TTL[V]) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewTTL constructs an empty cache with the provided entry lifetime.
func NewTTL[V any](ttl time.Duration, opts ...Option[V]) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTL[V]{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key when present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	now := c.clock().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !now.Before(item.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return item.value, true
}

// Set stores value under key, replacing any previous entry and resetting its lifetime.
func (c *TTL[V]) Set(key string, value V) {
	now := c.clock().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
	c.sweepLocked(now)
}

// Delete removes key from the cache.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len reports the number of live entries.
func (c *TTL[V]) Len() int {
	now := c.clock().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(now)
	return len(c.entries)
}

func (c *TTL[V]) sweepLocked(now time.Time) {
	for key, item := range c.entries {
		if !now.Before(item.expiresAt) {
			delete(c.entries, key)
		}
	}
}
