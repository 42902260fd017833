// Package cache provides a simple in-memory TTL cache. Expiry is lazy, on
// read: the working set is bounded by the number of distinct clients viewed
// per TTL window, so no background sweep is needed.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with a fixed TTL. There is no
// invalidation API: upstream writes by other actors are only reflected after
// expiry, an accepted staleness bound.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	now   func() time.Time
}

// New creates an in-memory cache with the given TTL, fixed for the life of
// the process.
func New[T any](ttl time.Duration) *InMemory[T] {
	return &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a value. Returns false if absent or expired; an expired
// entry is dropped on the way out.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if ok && c.now().Before(e.expiresAt) {
		return e.value, true
	}
	if ok {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
	}
	var zero T
	return zero, false
}

// Set stores a value with the configured TTL. Last write wins.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}
