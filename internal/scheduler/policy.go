// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package scheduler

import "github.com/tomtom215/innkeeper/internal/planner"

// CostPolicy decides which plans are expensive enough to run as jobs.
// A zero threshold disables that criterion.
type CostPolicy struct {
	MaxRows    int64 `koanf:"max_rows"`
	MaxJoins   int   `koanf:"max_joins"`
	WindowRows int64 `koanf:"window_rows"`
}

// DefaultCostPolicy returns the default thresholds.
func DefaultCostPolicy() CostPolicy {
	return CostPolicy{
		MaxRows:    5_000_000,
		MaxJoins:   4,
		WindowRows: 250_000,
	}
}

// Expensive reports whether c crosses any threshold.
func (p CostPolicy) Expensive(c planner.Cost) bool {
	switch {
	case p.MaxRows > 0 && c.RowEstimate >= p.MaxRows:
		return true
	case p.MaxJoins > 0 && c.Joins >= p.MaxJoins:
		return true
	case p.WindowRows > 0 && c.WindowMetrics > 0 && c.RowEstimate >= p.WindowRows:
		return true
	}
	return false
}
