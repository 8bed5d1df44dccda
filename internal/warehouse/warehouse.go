// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package warehouse is the adapter to the SQL-capable store compiled plans
// run against. The engine only depends on Executor; DuckDB is the bundled
// implementation and BreakerExecutor guards any Executor with a circuit
// breaker.
package warehouse

import (
	"context"
	"errors"
)

// ErrUnavailable is returned while the warehouse circuit is open.
var ErrUnavailable = errors.New("warehouse unavailable")

// ResultSet is the tabular output of one statement. Rows are keyed by
// column name.
type ResultSet struct {
	Columns []string
	Rows    []map[string]interface{}
}

// Executor runs a parameterized statement and returns every row.
type Executor interface {
	Query(ctx context.Context, query string, args ...interface{}) (*ResultSet, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, query string, args ...interface{}) (*ResultSet, error)

// Query calls f.
func (f ExecutorFunc) Query(ctx context.Context, query string, args ...interface{}) (*ResultSet, error) {
	return f(ctx, query, args...)
}
