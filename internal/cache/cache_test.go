// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration, max int) (*Cache, *fakeNow) {
	clock := &fakeNow{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	c := New("test", ttl, max)
	c.now = clock.now
	return c, clock
}

func TestCacheBasicOperations(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(time.Minute, 0)

	if _, ok := c.Get("key1"); ok {
		t.Error("Expected key1 to not exist")
	}
	if v, stored := c.SetIfAbsent("key1", "value1"); !stored || v != "value1" {
		t.Errorf("SetIfAbsent = (%v, %v)", v, stored)
	}
	value, ok := c.Get("key1")
	if !ok || value != "value1" {
		t.Errorf("Get = (%v, %v), want value1", value, ok)
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.TotalKeys != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if c.HitRate() != 50 {
		t.Errorf("HitRate = %v, want 50", c.HitRate())
	}
}

func TestCacheFirstWriterWins(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(time.Minute, 0)

	c.SetIfAbsent("k", "first")
	v, stored := c.SetIfAbsent("k", "second")
	if stored || v != "first" {
		t.Errorf("second writer got (%v, %v), want (first, false)", v, stored)
	}
	if got, _ := c.Get("k"); got != "first" {
		t.Errorf("Get = %v, want first", got)
	}
}

func TestCacheConcurrentWritersConverge(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(time.Minute, 0)

	const writers = 32
	results := make([]interface{}, writers)
	var wins sync.WaitGroup
	var storedCount int
	var mu sync.Mutex
	for i := 0; i < writers; i++ {
		wins.Add(1)
		go func() {
			defer wins.Done()
			v, stored := c.SetIfAbsent("shared", i)
			results[i] = v
			if stored {
				mu.Lock()
				storedCount++
				mu.Unlock()
			}
		}()
	}
	wins.Wait()

	if storedCount != 1 {
		t.Errorf("%d writers stored, want exactly 1", storedCount)
	}
	for i := 1; i < writers; i++ {
		if results[i] != results[0] {
			t.Fatalf("writers saw different values: %v vs %v", results[i], results[0])
		}
	}
}

func TestCacheExpiration(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(100*time.Millisecond, 0)

	c.SetIfAbsent("key1", "value1")
	c.SetIfAbsentWithTTL("long", "value", time.Hour)
	clock.advance(150 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Error("Expected key1 to be expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("per-entry TTL should outlive the default")
	}

	// An expired key accepts a new first writer.
	c.SetIfAbsent("again", "old")
	clock.advance(time.Second)
	if v, stored := c.SetIfAbsent("again", "new"); !stored || v != "new" {
		t.Errorf("SetIfAbsent over expired = (%v, %v)", v, stored)
	}
}

func TestCacheLRUEviction(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(time.Minute, 3)

	for i := 0; i < 3; i++ {
		c.SetIfAbsent(fmt.Sprintf("k%d", i), i)
	}
	c.Get("k0") // k1 is now least recently used
	c.SetIfAbsent("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
	if c.GetStats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.GetStats().Evictions)
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(time.Minute, 0)

	c.SetIfAbsent("a", 1)
	c.SetIfAbsent("b", 2)
	c.Delete("a")
	c.Delete("missing")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	if c.GetStats().Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", c.GetStats().Evictions)
	}
}

func TestCacheCleanupExpired(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(time.Minute, 0)

	c.SetIfAbsent("old1", 1)
	c.SetIfAbsent("old2", 2)
	clock.advance(30 * time.Second)
	c.SetIfAbsent("fresh", 3)
	clock.advance(45 * time.Second)

	if n := c.CleanupExpired(); n != 2 {
		t.Errorf("CleanupExpired = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if !c.GetStats().LastCleanup.Equal(clock.now()) {
		t.Error("LastCleanup not updated")
	}
}

func TestCacheServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(time.Minute, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if c.String() != "cache-cleanup-test" {
		t.Errorf("String = %q", c.String())
	}
}
