// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package cache provides the thread-safe result cache of the reporting engine.

Results are keyed by the canonical hash of a QuerySpec and the refresh nonce
of the cycle that requested it. Keys are write-once: concurrent requests for
the same key converge on the first value stored instead of racing, so the
cache needs no coordination beyond its own mutex.

# Features

  - Per-entry TTL with lazy expiration on Get and periodic sweeps
  - Least-recently-used eviction once MaxEntries is reached
  - Hit, miss, eviction and size metrics labelled by cache name

# Usage

	c := cache.New("results", 5*time.Minute, 10000)
	if v, ok := c.Get(key); ok {
	    return v.(*models.QueryResult), nil
	}
	v, _ := c.SetIfAbsent(key, result)

Run the cache as a suture service to sweep expired entries in the
background.
*/
package cache
