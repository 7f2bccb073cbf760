package cache

import (
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// RWMutexTTLCache is a RWMutexCache whose entries stop being visible after a TTL.
// A TTL of zero or less disables caching: Put does not store anything.
type RWMutexTTLCache[K comparable, V any] struct {
	data       *RWMutexCache[K, entry[V]]
	DefaultTTL time.Duration
	// Now is the clock used for expiry, time.Now when nil.
	Now func() time.Time
}

func NewRWMutexTTLCache[K comparable, V any](defaultTTL time.Duration) *RWMutexTTLCache[K, V] {
	return &RWMutexTTLCache[K, V]{
		data:       NewRWMutexCache[K, entry[V]](),
		DefaultTTL: defaultTTL,
	}
}

func (c *RWMutexTTLCache[K, V]) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *RWMutexTTLCache[K, V]) live(x entry[V], found bool) (V, bool) {
	if found && !x.expiresAt.After(c.now()) {
		return x.value, false
	}
	return x.value, found
}

func (c *RWMutexTTLCache[K, V]) Get(key K) (V, bool) {
	x, found := c.data.Get(key)
	if v, ok := c.live(x, found); ok {
		return v, true
	}
	var zero V
	return zero, false
}

func (c *RWMutexTTLCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) (V, bool) {
	var zero V
	if ttl <= 0 {
		return zero, false
	}
	x, found := c.data.Put(key, entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	})
	if v, ok := c.live(x, found); ok {
		return v, true
	}
	return zero, false
}

func (c *RWMutexTTLCache[K, V]) Put(key K, value V) (V, bool) {
	return c.PutWithTTL(key, value, c.DefaultTTL)
}

func (c *RWMutexTTLCache[K, V]) Delete(key K) (V, bool) {
	x, found := c.data.Delete(key)
	if v, ok := c.live(x, found); ok {
		return v, true
	}
	var zero V
	return zero, false
}

// Purge drops expired entries and returns how many were removed.
func (c *RWMutexTTLCache[K, V]) Purge() int {
	now := c.now()
	return c.data.Prune(func(_ K, x entry[V]) bool {
		return !x.expiresAt.After(now)
	})
}
