// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/tomtom215/innkeeper/internal/metrics"
)

// DefaultCleanupInterval is how often Serve sweeps expired entries.
const DefaultCleanupInterval = time.Minute

// entry is a cached value with its expiry.
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Cache is a thread-safe TTL cache bounded by entry count. A key is
// written once: SetIfAbsent keeps the first value stored under a key until
// it expires or is evicted, and hands that value back to later writers.
// When full, the least recently used entry is evicted.
type Cache struct {
	name string

	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[string]*list.Element
	order      *list.List // front is most recently used
	stats      Stats
	now        func() time.Time
	interval   time.Duration
}

// Stats tracks cache performance.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// New creates a cache. name labels its metrics. maxEntries <= 0 means
// unbounded.
func New(name string, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		name:       name,
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
		interval:   DefaultCleanupInterval,
	}
}

// SetCleanupInterval changes how often Serve sweeps. Non-positive values
// are ignored.
func (c *Cache) SetCleanupInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Get returns the live value stored under key.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.miss()
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.remove(el)
		c.evicted(1)
		c.miss()
		return nil, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	metrics.RecordCacheHit(c.name)
	return e.value, true
}

// SetIfAbsent stores value under key with the default TTL unless a live
// value is already there. It returns the value that ends up cached and
// whether this call stored it.
func (c *Cache) SetIfAbsent(key string, value interface{}) (interface{}, bool) {
	return c.SetIfAbsentWithTTL(key, value, c.ttl)
}

// SetIfAbsentWithTTL is SetIfAbsent with a per-entry TTL. ttl <= 0 uses the
// default.
func (c *Cache) SetIfAbsentWithTTL(key string, value interface{}, ttl time.Duration) (interface{}, bool) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		if !now.After(e.expiresAt) {
			c.order.MoveToFront(el)
			return e.value, false
		}
		c.remove(el)
		c.evicted(1)
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiresAt: now.Add(ttl)})
	evictions := 0
	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		c.remove(c.order.Back())
		evictions++
	}
	c.evicted(evictions)
	c.sized()
	return value, true
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
		c.evicted(1)
		c.sized()
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.evicted(n)
	c.sized()
}

// Len returns the number of entries, expired ones not yet swept included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetStats returns a snapshot of the statistics.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.TotalKeys = int64(len(c.items))
	return s
}

// HitRate returns the hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	s := c.GetStats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// CleanupExpired removes expired entries and returns how many were removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry).expiresAt) {
			c.remove(el)
			removed++
		}
		el = prev
	}
	c.stats.LastCleanup = now
	c.evicted(removed)
	c.sized()
	return removed
}

// Serve sweeps expired entries every cleanup interval until ctx is
// canceled. It implements suture.Service.
func (c *Cache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.CleanupExpired()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (c *Cache) String() string {
	return "cache-cleanup-" + c.name
}

// Internal methods (must be called with lock held)

func (c *Cache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

func (c *Cache) miss() {
	c.stats.Misses++
	metrics.RecordCacheMiss(c.name)
}

func (c *Cache) evicted(n int) {
	if n == 0 {
		return
	}
	c.stats.Evictions += int64(n)
	metrics.RecordCacheEviction(c.name, n)
}

func (c *Cache) sized() {
	metrics.UpdateCacheSize(c.name, len(c.items))
}
