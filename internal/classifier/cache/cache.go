// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cache provides the bounded classification cache.
// Entries are keyed by the normalized query text and evicted in insertion
// order (FIFO) under capacity pressure, which keeps the hot path free of
// recency bookkeeping.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry represents a cached classification result.
type Entry struct {
	// Key is the normalized query text.
	Key string

	// Domains holds the detected domains.
	Domains []string

	// Complexity is the normalized complexity score.
	Complexity float64

	// Reasoning is the human-readable classification trace.
	Reasoning string

	// Timestamp is when the entry was created.
	Timestamp time.Time

	// element is the FIFO list element (for eviction).
	element *list.Element
}

// Metrics tracks cache performance statistics.
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// ClassificationCache is a bounded FIFO cache for classification results.
// All operations are safe for concurrent use.
type ClassificationCache struct {
	capacity int
	entries  map[string]*Entry
	fifo     *list.List // front = oldest
	mu       sync.RWMutex
	metrics  Metrics
}

// New creates a classification cache with the given capacity.
// Capacities <= 0 fall back to 1000.
func New(capacity int) *ClassificationCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ClassificationCache{
		capacity: capacity,
		entries:  make(map[string]*Entry),
		fifo:     list.New(),
	}
}

// Lookup returns the cached entry for a normalized key, if present.
// A hit does not change eviction order.
func (c *ClassificationCache) Lookup(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok {
		c.metrics.Hits++
		return entry, true
	}
	c.metrics.Misses++
	return nil, false
}

// Store inserts a classification result. Classification is deterministic
// per key, so a duplicate insert is dropped; entries handed out by Lookup
// are never mutated afterwards. At capacity, the oldest entry is evicted
// before insertion.
func (c *ClassificationCache) Store(key string, domains []string, complexity float64, reasoning string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	entry := &Entry{
		Key:        key,
		Domains:    domains,
		Complexity: complexity,
		Reasoning:  reasoning,
		Timestamp:  time.Now(),
	}
	entry.element = c.fifo.PushBack(entry)
	c.entries[key] = entry
	c.metrics.Size = len(c.entries)
}

// evictOldest removes the entry at the front of the FIFO list.
// Must be called with the lock held.
func (c *ClassificationCache) evictOldest() {
	oldest := c.fifo.Front()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*Entry)
	delete(c.entries, entry.Key)
	c.fifo.Remove(oldest)
	c.metrics.Evictions++
	c.metrics.Size = len(c.entries)
}

// Clear removes all entries.
func (c *ClassificationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.fifo = list.New()
	c.metrics.Size = 0
}

// Size returns the current number of cached entries.
func (c *ClassificationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Capacity returns the configured capacity bound.
func (c *ClassificationCache) Capacity() int {
	return c.capacity
}

// GetMetrics returns a snapshot of the cache metrics.
func (c *ClassificationCache) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.metrics
	m.Size = len(c.entries)
	return m
}

// HitRate returns the cache hit rate in [0,1].
func (c *ClassificationCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.metrics.Hits + c.metrics.Misses
	if total == 0 {
		return 0.0
	}
	return float64(c.metrics.Hits) / float64(total)
}
