// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package planner

import (
	"time"

	"github.com/tomtom215/innkeeper/internal/spec"
)

// Bucket arithmetic runs in UTC, matching date_trunc over warehouse
// timestamps.

func truncate(t time.Time, bucket string) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch bucket {
	case spec.BucketHour:
		return t.Truncate(time.Hour)
	case spec.BucketDay:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case spec.BucketWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case spec.BucketMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case spec.BucketQuarter:
		q := (int(m) - 1) / 3 * 3
		return time.Date(y, time.Month(q+1), 1, 0, 0, 0, 0, time.UTC)
	case spec.BucketYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func nextBucket(t time.Time, bucket string) time.Time {
	switch bucket {
	case spec.BucketHour:
		return t.Add(time.Hour)
	case spec.BucketDay:
		return t.AddDate(0, 0, 1)
	case spec.BucketWeek:
		return t.AddDate(0, 0, 7)
	case spec.BucketMonth:
		return t.AddDate(0, 1, 0)
	case spec.BucketQuarter:
		return t.AddDate(0, 3, 0)
	case spec.BucketYear:
		return t.AddDate(1, 0, 0)
	}
	return t.Add(time.Hour)
}

// enumerateBuckets lists bucket starts from truncate(from) while the start
// is not after to. It stops early and reports false past max buckets.
func enumerateBuckets(from, to time.Time, bucket string, max int) ([]time.Time, bool) {
	var out []time.Time
	for b := truncate(from, bucket); !b.After(to); b = nextBucket(b, bucket) {
		if max > 0 && len(out) >= max {
			return out, false
		}
		out = append(out, b)
	}
	return out, true
}

// countBuckets is enumerateBuckets without the allocation.
func countBuckets(from, to time.Time, bucket string) int {
	start := truncate(from, bucket)
	if start.After(to) {
		return 0
	}
	return bucketOrdinal(start, truncate(to, bucket), bucket) + 1
}

// bucketOrdinal is the number of whole buckets between two bucket starts.
func bucketOrdinal(start, t time.Time, bucket string) int {
	start, t = start.UTC(), t.UTC()
	months := (t.Year()-start.Year())*12 + int(t.Month()) - int(start.Month())
	switch bucket {
	case spec.BucketHour:
		return int(t.Sub(start) / time.Hour)
	case spec.BucketDay:
		return int(t.Sub(start) / (24 * time.Hour))
	case spec.BucketWeek:
		return int(t.Sub(start) / (7 * 24 * time.Hour))
	case spec.BucketMonth:
		return months
	case spec.BucketQuarter:
		return months / 3
	case spec.BucketYear:
		return t.Year() - start.Year()
	}
	return 0
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return spec.ParseInstant(t)
	}
	return time.Time{}, false
}
