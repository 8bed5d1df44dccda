// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordWarehouseQuery tests warehouse query metric recording
func TestRecordWarehouseQuery(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		duration time.Duration
		err      error
	}{
		{name: "successful plan query", kind: "plan", duration: 10 * time.Millisecond},
		{name: "failed comparison query", kind: "comparison", duration: 2 * time.Second, err: errors.New("connection refused")},
		{name: "long error is truncated", kind: "plan", duration: time.Millisecond,
			err: errors.New(strings.Repeat("x", 120))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.CollectAndCount(WarehouseQueryErrors)
			RecordWarehouseQuery(tt.kind, tt.duration, tt.err)
			after := testutil.CollectAndCount(WarehouseQueryErrors)
			if tt.err == nil && after != before {
				t.Errorf("success changed error series: %d -> %d", before, after)
			}
		})
	}

	if got := testutil.ToFloat64(WarehouseQueryErrors.WithLabelValues("plan", strings.Repeat("x", 50))); got != 1 {
		t.Errorf("truncated error series = %v, want 1", got)
	}
}

// TestRecordJobTransition verifies active gauges follow the lifecycle
func TestRecordJobTransition(t *testing.T) {
	queued := testutil.ToFloat64(JobsActive.WithLabelValues("queued"))
	running := testutil.ToFloat64(JobsActive.WithLabelValues("running"))
	completed := testutil.ToFloat64(JobTransitions.WithLabelValues("completed"))

	RecordJobTransition("", "queued")
	if got := testutil.ToFloat64(JobsActive.WithLabelValues("queued")); got != queued+1 {
		t.Errorf("queued gauge = %v, want %v", got, queued+1)
	}

	RecordJobTransition("queued", "running")
	RecordJobTransition("running", "completed")

	if got := testutil.ToFloat64(JobsActive.WithLabelValues("queued")); got != queued {
		t.Errorf("queued gauge = %v, want %v", got, queued)
	}
	if got := testutil.ToFloat64(JobsActive.WithLabelValues("running")); got != running {
		t.Errorf("running gauge = %v, want %v", got, running)
	}
	if got := testutil.ToFloat64(JobTransitions.WithLabelValues("completed")); got != completed+1 {
		t.Errorf("completed transitions = %v, want %v", got, completed+1)
	}
}

// TestRecordBulkBatch verifies per-item outcome counters
func TestRecordBulkBatch(t *testing.T) {
	ok := testutil.ToFloat64(BulkItems.WithLabelValues("success"))
	failed := testutil.ToFloat64(BulkItems.WithLabelValues("error"))

	RecordBulkBatch(5, 2)

	if got := testutil.ToFloat64(BulkItems.WithLabelValues("success")); got != ok+3 {
		t.Errorf("success = %v, want %v", got, ok+3)
	}
	if got := testutil.ToFloat64(BulkItems.WithLabelValues("error")); got != failed+2 {
		t.Errorf("error = %v, want %v", got, failed+2)
	}
}

// TestResultLabels verifies ok/error labelling helpers
func TestResultLabels(t *testing.T) {
	before := testutil.ToFloat64(DerivedRecompiles.WithLabelValues("error"))
	RecordDerivedRecompile(false)
	if got := testutil.ToFloat64(DerivedRecompiles.WithLabelValues("error")); got != before+1 {
		t.Errorf("derived recompile errors = %v, want %v", got, before+1)
	}

	plansOK := testutil.ToFloat64(PlansTotal.WithLabelValues("ok"))
	RecordPlan(time.Millisecond, nil)
	if got := testutil.ToFloat64(PlansTotal.WithLabelValues("ok")); got != plansOK+1 {
		t.Errorf("plans ok = %v, want %v", got, plansOK+1)
	}
}

// TestCacheHelpers tests cache metric helpers
func TestCacheHelpers(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("results"))
	RecordCacheHit("results")
	RecordCacheMiss("results")
	UpdateCacheSize("results", 42)
	RecordCacheEviction("results", 3)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("results")); got != hits+1 {
		t.Errorf("hits = %v, want %v", got, hits+1)
	}
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("results")); got != 42 {
		t.Errorf("size = %v, want 42", got)
	}
}
