// Package cache provides generic, thread-safe LRU caches with metrics.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Cache is a generic thread-safe LRU cache with built-in metrics.
type Cache[K comparable, V any] struct {
	lru      *lru.Cache[K, V]
	capacity int

	// set while Delete/Clear run so removals are not counted as evictions
	silent atomic.Bool

	// Metrics (lock-free using atomics)
	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
	sets   atomic.Uint64
}

// New creates a new Cache with the specified capacity.
// When the cache is full, the least recently used item is evicted.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache[K, V]{capacity: capacity}
	inner, err := lru.NewWithEvict[K, V](capacity, func(K, V) {
		if !c.silent.Load() {
			c.evicts.Add(1)
		}
	})
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	c.lru = inner
	return c
}

// Get retrieves a value from the cache and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set adds or updates a value in the cache.
func (c *Cache[K, V]) Set(key K, value V) {
	c.sets.Add(1)
	c.lru.Add(key, value)
}

// Delete removes an item from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.silent.Store(true)
	defer c.silent.Store(false)
	c.lru.Remove(key)
}

// Len returns the current number of items in the cache.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Clear removes all items from the cache.
func (c *Cache[K, V]) Clear() {
	c.silent.Store(true)
	defer c.silent.Store(false)
	c.lru.Purge()
}

// Stats holds cache statistics.
type Stats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
	Evicts   uint64
	Sets     uint64
	HitRate  float64
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:     c.lru.Len(),
		Capacity: c.capacity,
		Hits:     hits,
		Misses:   misses,
		Evicts:   c.evicts.Load(),
		Sets:     c.sets.Load(),
		HitRate:  hitRate,
	}
}
