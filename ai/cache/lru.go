// Package cache provides a small generic LRU used to memoize pure
// computations (embedding vectors, policy preference snapshots).
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a fixed-capacity least-recently-used cache with optional TTL.
// A zero TTL disables expiration.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[K]*list.Element
	order    *list.List
}

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// NewLRU creates an LRU with the given capacity and TTL.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		capacity = 256
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached value and whether it was present and unexpired.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	entry := el.Value.(*lruEntry[K, V])
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

// Put stores a value, evicting the least recently used entry when full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*lruEntry[K, V])
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry[K, V]).key)
		}
	}

	c.entries[key] = c.order.PushFront(&lruEntry[K, V]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Len returns the number of live entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
