// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package warehouse

import (
	"context"
	"math/big"
	"testing"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/innkeeper/internal/catalog"
	"github.com/tomtom215/innkeeper/internal/planner"
	"github.com/tomtom215/innkeeper/internal/spec"
)

func setupTestWarehouse(t *testing.T) *DuckDB {
	t.Helper()

	db, err := Open(Config{Path: ":memory:", Threads: 1, MaxMemory: "256MB", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := db.Bootstrap(ctx, catalog.Default()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	seed := []struct {
		id, channel string
		revenue     float64
		at          time.Time
	}{
		{"b1", "web", 10, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"b2", "web", 5, time.Date(2024, 3, 1, 19, 30, 0, 0, time.UTC)},
		{"b3", "phone", 3, time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)},
	}
	for _, s := range seed {
		err := db.Exec(ctx, `INSERT INTO "bookings" ("id", "channel", "revenue", "service_date") VALUES (?, ?, ?, ?)`,
			s.id, s.channel, s.revenue, s.at)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db
}

func TestDuckDBRunsGroupedPlan(t *testing.T) {
	db := setupTestWarehouse(t)

	q := &spec.QuerySpec{
		Models:     []string{"bookings"},
		Dimensions: []spec.Dimension{{ModelID: "bookings", FieldID: "channel"}},
		Metrics: []spec.Metric{
			{ModelID: "bookings", FieldID: "revenue", Aggregation: spec.AggSum},
			{ModelID: "bookings", FieldID: "id", Aggregation: spec.AggCount},
		},
	}
	plan, err := planner.New(catalog.Default(), planner.Config{}).Plan(q, nil)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	rs, err := db.Query(context.Background(), plan.SQL, plan.Args...)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rs.Rows))
	}
	if rs.Rows[0]["channel"] != "web" || rs.Rows[0]["sum_revenue"] != 15.0 || rs.Rows[0]["count_id"] != int64(2) {
		t.Errorf("first row = %v", rs.Rows[0])
	}
	if len(rs.Columns) != 3 || rs.Columns[0] != "channel" {
		t.Errorf("columns = %v", rs.Columns)
	}
}

func TestDuckDBRunsBucketedPlanWithRange(t *testing.T) {
	db := setupTestWarehouse(t)

	q := &spec.QuerySpec{
		Models:  []string{"bookings"},
		Metrics: []spec.Metric{{ModelID: "bookings", FieldID: "revenue", Aggregation: spec.AggSum}},
		Time: &spec.TimeAxis{
			ModelID: "bookings",
			Field:   "service_date",
			Bucket:  spec.BucketDay,
			GapFill: spec.GapFillZero,
			Range: &spec.TimeRange{
				From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2024, 3, 3, 23, 59, 59, 999_000_000, time.UTC),
			},
		},
	}
	plan, err := planner.New(catalog.Default(), planner.Config{}).Plan(q, nil)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	rs, err := db.Query(context.Background(), plan.SQL, plan.Args...)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("warehouse rows = %v", rs.Rows)
	}

	rows, _ := plan.Finalize(rs.Rows, nil)
	want := []float64{15, 0, 3}
	if len(rows) != len(want) {
		t.Fatalf("finalized rows = %v", rows)
	}
	for i, w := range want {
		if rows[i]["sum_revenue"] != w {
			t.Errorf("day %d = %v, want %v", i+1, rows[i]["sum_revenue"], w)
		}
	}
}

func TestDuckDBQueryError(t *testing.T) {
	db := setupTestWarehouse(t)

	if _, err := db.Query(context.Background(), `SELECT * FROM "no_such_table"`); err == nil {
		t.Error("expected an error for a missing table")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	huge := new(big.Int).Lsh(big.NewInt(1), 80)
	tests := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"bytes", []byte("web"), "web"},
		{"small hugeint", big.NewInt(42), int64(42)},
		{"large hugeint", huge, float64(1 << 80)},
		{"decimal", duckdb.Decimal{Width: 10, Scale: 2, Value: big.NewInt(150)}, 1.5},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := normalize(tt.in); got != tt.want {
				t.Errorf("normalize(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}

	local := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
	if got := normalize(local).(time.Time); got.Location() != time.UTC || !got.Equal(local) {
		t.Errorf("time not normalized to UTC: %v", got)
	}
}
