// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package planner

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/innkeeper/internal/catalog"
	"github.com/tomtom215/innkeeper/internal/derived"
	"github.com/tomtom215/innkeeper/internal/spec"
)

func newPlanner() *Planner {
	return New(catalog.Default(), Config{})
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(d int) time.Time {
	return day(d).Add(24*time.Hour - time.Millisecond)
}

func revenueByChannel() *spec.QuerySpec {
	return &spec.QuerySpec{
		Models:     []string{"bookings"},
		Dimensions: []spec.Dimension{{ModelID: "bookings", FieldID: "channel"}},
		Metrics:    []spec.Metric{{ModelID: "bookings", FieldID: "revenue", Aggregation: spec.AggSum}},
	}
}

func dailyRevenue(from, to int) *spec.QuerySpec {
	return &spec.QuerySpec{
		Models:  []string{"bookings"},
		Metrics: []spec.Metric{{ModelID: "bookings", FieldID: "revenue", Aggregation: spec.AggSum}},
		Time: &spec.TimeAxis{
			ModelID: "bookings",
			Field:   "service_date",
			Bucket:  spec.BucketDay,
			Range:   &spec.TimeRange{From: day(from), To: endOfDay(to)},
		},
	}
}

func mustPlan(t *testing.T, q *spec.QuerySpec, defs map[string]*derived.Definition) *ExecutionPlan {
	t.Helper()
	plan, err := newPlanner().Plan(q, defs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return plan
}

func TestPlanGroupedMetric(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, revenueByChannel(), nil)

	want := `SELECT "bookings"."channel" AS "channel", SUM("bookings"."revenue") AS "sum_revenue" ` +
		`FROM "bookings" AS "bookings" GROUP BY "bookings"."channel" ORDER BY "sum_revenue" DESC, "channel" ASC`
	if plan.SQL != want {
		t.Errorf("SQL =\n%s\nwant\n%s", plan.SQL, want)
	}
	if !reflect.DeepEqual(plan.GroupBy, []string{"channel"}) {
		t.Errorf("GroupBy = %v", plan.GroupBy)
	}
	if len(plan.Columns) != 2 || plan.Columns[0].Type != "string" || plan.Columns[1].Type != "number" {
		t.Errorf("Columns = %+v", plan.Columns)
	}
	if plan.Cost.RowEstimate != 2_500_000 || plan.Cost.Joins != 0 {
		t.Errorf("Cost = %+v", plan.Cost)
	}
	if plan.Hash == "" {
		t.Error("Hash is empty")
	}
}

func TestPlanJoinOrderFromAnchor(t *testing.T) {
	t.Parallel()

	q := &spec.QuerySpec{
		Models: []string{"bookings", "venues", "reviews"},
		Joins: []spec.Join{
			{ID: "rv", LeftModel: "reviews", LeftField: "venue_id", RightModel: "venues", RightField: "id"},
			{ID: "bv", LeftModel: "venues", LeftField: "id", RightModel: "bookings", RightField: "venue_id", JoinType: "left"},
		},
		Dimensions: []spec.Dimension{{ModelID: "venues", FieldID: "city"}},
		Metrics:    []spec.Metric{{ModelID: "reviews", FieldID: "rating", Aggregation: spec.AggAvg}},
	}
	plan := mustPlan(t, q, nil)

	if !reflect.DeepEqual(plan.JoinOrder, []string{"bv", "rv"}) {
		t.Errorf("JoinOrder = %v", plan.JoinOrder)
	}
	for _, frag := range []string{
		`FROM "bookings" AS "bookings" RIGHT JOIN "venues" AS "venues" ON "bookings"."venue_id" = "venues"."id"`,
		`INNER JOIN "reviews" AS "reviews" ON "venues"."id" = "reviews"."venue_id"`,
	} {
		if !strings.Contains(plan.SQL, frag) {
			t.Errorf("SQL missing %q:\n%s", frag, plan.SQL)
		}
	}
	if plan.Cost.Joins != 2 || plan.Cost.RowEstimate != 2_500_000+200+300_000 {
		t.Errorf("Cost = %+v", plan.Cost)
	}
}

func TestPlanFilters(t *testing.T) {
	t.Parallel()

	q := revenueByChannel()
	q.Filters = []spec.Filter{
		{ModelID: "bookings", FieldID: "status", Operator: spec.OpEq, Value: "confirmed"},
		{ModelID: "bookings", FieldID: "channel", Operator: spec.OpIn, Value: []interface{}{"web", "phone"}, JoinWith: "or"},
		{MetricAlias: "sum_revenue", Operator: spec.OpGt, Value: 100.0},
	}
	plan := mustPlan(t, q, nil)

	where := `WHERE ("bookings"."status" = ? OR "bookings"."channel" IN (?, ?)) GROUP BY`
	if !strings.Contains(plan.SQL, where) {
		t.Errorf("SQL missing %q:\n%s", where, plan.SQL)
	}
	if !strings.Contains(plan.SQL, `HAVING SUM("bookings"."revenue") > ?`) {
		t.Errorf("SQL missing HAVING:\n%s", plan.SQL)
	}
	wantArgs := []interface{}{"confirmed", "web", "phone", 100.0}
	if !reflect.DeepEqual(plan.Args, wantArgs) {
		t.Errorf("Args = %v, want %v", plan.Args, wantArgs)
	}
}

func TestPlanFilterOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter spec.Filter
		sql    string
		args   int
	}{
		{"eq null", spec.Filter{ModelID: "bookings", FieldID: "channel", Operator: spec.OpEq}, `"bookings"."channel" IS NULL`, 0},
		{"neq", spec.Filter{ModelID: "bookings", FieldID: "channel", Operator: spec.OpNeq, Value: "web"}, `"bookings"."channel" <> ?`, 1},
		{"lte", spec.Filter{ModelID: "bookings", FieldID: "guest_count", Operator: spec.OpLte, Value: 8.0}, `"bookings"."guest_count" <= ?`, 1},
		{"not in", spec.Filter{ModelID: "bookings", FieldID: "status", Operator: spec.OpNotIn, Value: []string{"void"}}, `"bookings"."status" NOT IN (?)`, 1},
		{"empty in", spec.Filter{ModelID: "bookings", FieldID: "status", Operator: spec.OpIn, Value: []interface{}{}}, `WHERE FALSE`, 0},
		{"between", spec.Filter{ModelID: "bookings", FieldID: "guest_count", Operator: spec.OpBetween, Value: spec.RangeValue{From: 2, To: 6}}, `"bookings"."guest_count" BETWEEN ? AND ?`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := revenueByChannel()
			q.Filters = []spec.Filter{tt.filter}
			plan := mustPlan(t, q, nil)
			if !strings.Contains(plan.SQL, tt.sql) {
				t.Errorf("SQL missing %q:\n%s", tt.sql, plan.SQL)
			}
			if len(plan.Args) != tt.args {
				t.Errorf("len(Args) = %d, want %d", len(plan.Args), tt.args)
			}
		})
	}
}

func TestPlanTimestampFilterBindsTime(t *testing.T) {
	t.Parallel()

	q := revenueByChannel()
	q.Filters = []spec.Filter{{ModelID: "bookings", FieldID: "booked_at", Operator: spec.OpGte, Value: "2024-01-01"}}
	plan := mustPlan(t, q, nil)

	got, ok := plan.Args[0].(time.Time)
	if !ok || !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Args[0] = %#v, want 2024-01-01 as time.Time", plan.Args[0])
	}
}

func TestPlanTimeBucketAndWindow(t *testing.T) {
	t.Parallel()

	q := dailyRevenue(1, 31)
	q.Metrics[0].Window = &spec.Window{Type: spec.WindowRolling, Frame: 7}
	plan := mustPlan(t, q, nil)

	for _, frag := range []string{
		`date_trunc('day', "bookings"."service_date") AS "service_date_day"`,
		`SUM(SUM("bookings"."revenue")) OVER (ORDER BY date_trunc('day', "bookings"."service_date") ROWS BETWEEN 6 PRECEDING AND CURRENT ROW) AS "sum_revenue"`,
		`WHERE "bookings"."service_date" >= ? AND "bookings"."service_date" <= ?`,
		`ORDER BY "service_date_day" ASC`,
	} {
		if !strings.Contains(plan.SQL, frag) {
			t.Errorf("SQL missing %q:\n%s", frag, plan.SQL)
		}
	}
	if plan.TimeAlias != "service_date_day" || plan.Bucket != spec.BucketDay {
		t.Errorf("time = %q/%q", plan.TimeAlias, plan.Bucket)
	}
	if plan.Cost.WindowMetrics != 1 {
		t.Errorf("WindowMetrics = %d", plan.Cost.WindowMetrics)
	}
}

func TestPlanCumulativeWindowPartitions(t *testing.T) {
	t.Parallel()

	q := dailyRevenue(1, 31)
	q.Dimensions = []spec.Dimension{{ModelID: "bookings", FieldID: "channel"}}
	q.Metrics[0].Aggregation = spec.AggCount
	q.Metrics[0].Window = &spec.Window{Type: spec.WindowCumulative}
	plan := mustPlan(t, q, nil)

	want := `SUM(COUNT("bookings"."revenue")) OVER (PARTITION BY "bookings"."channel" ORDER BY date_trunc('day', "bookings"."service_date") ` +
		`ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)`
	if !strings.Contains(plan.SQL, want) {
		t.Errorf("SQL missing %q:\n%s", want, plan.SQL)
	}
}

func TestPlanDerivedFields(t *testing.T) {
	t.Parallel()

	defs := map[string]*derived.Definition{
		"channel_lc": {ID: "channel_lc", Kind: derived.KindRow, Expression: derived.Fn("lower", derived.Col("bookings", "channel"))},
		"spend_per_guest": {ID: "spend_per_guest", Kind: derived.KindAggregate, Expression: derived.Bin("/",
			derived.Fn("sum", derived.Col("bookings", "revenue")),
			derived.Fn("sum", derived.Col("bookings", "guest_count")))},
	}
	q := &spec.QuerySpec{
		Models:        []string{"bookings"},
		DerivedFields: []spec.DerivedFieldRef{{ID: "channel_lc"}, {ID: "spend_per_guest"}},
	}
	plan := mustPlan(t, q, defs)

	want := `SELECT LOWER("bookings"."channel") AS "channel_lc", ` +
		`(SUM("bookings"."revenue") / NULLIF(SUM("bookings"."guest_count"), 0)) AS "spend_per_guest" ` +
		`FROM "bookings" AS "bookings" GROUP BY LOWER("bookings"."channel") ORDER BY "spend_per_guest" DESC, "channel_lc" ASC`
	if plan.SQL != want {
		t.Errorf("SQL =\n%s\nwant\n%s", plan.SQL, want)
	}
	if len(plan.Metrics) != 1 || plan.Metrics[0].Aggregation != "" {
		t.Errorf("Metrics = %+v", plan.Metrics)
	}
	if plan.Columns[0].Type != "string" {
		t.Errorf("channel_lc type = %s", plan.Columns[0].Type)
	}
}

func TestPlanPostProcessingMovesPaging(t *testing.T) {
	t.Parallel()

	q := revenueByChannel()
	q.Limit, q.Offset = 10, 5
	plain := mustPlan(t, q, nil)
	if !strings.HasSuffix(plain.SQL, "LIMIT 10 OFFSET 5") || plain.PostLimit != 0 {
		t.Errorf("plain paging: SQL %q, post %d", plain.SQL, plain.PostLimit)
	}

	q.Dimensions[0].TopN = &spec.TopN{Limit: 3}
	ranked := mustPlan(t, q, nil)
	if strings.Contains(ranked.SQL, "LIMIT") || ranked.PostLimit != 10 || ranked.PostOffset != 5 {
		t.Errorf("topN paging: SQL %q, post %d/%d", ranked.SQL, ranked.PostLimit, ranked.PostOffset)
	}
	if ranked.TopN.RankBy != "sum_revenue" {
		t.Errorf("RankBy = %s", ranked.TopN.RankBy)
	}
}

func TestPlanErrors(t *testing.T) {
	t.Parallel()

	aggDef := map[string]*derived.Definition{
		"avg_spend": {ID: "avg_spend", Kind: derived.KindAggregate, Expression: derived.Fn("avg", derived.Col("bookings", "revenue"))},
		"guests":    {ID: "guests", Kind: derived.KindRow, Expression: derived.Col("bookings", "guest_count")},
	}

	tests := []struct {
		name   string
		mutate func(q *spec.QuerySpec)
		cfg    Config
	}{
		{"window without bucket", func(q *spec.QuerySpec) {
			q.Time = &spec.TimeAxis{ModelID: "bookings", Field: "service_date"}
			q.Metrics[0].Window = &spec.Window{Type: spec.WindowCumulative}
		}, Config{}},
		{"rolling without frame", func(q *spec.QuerySpec) {
			q.Time = &spec.TimeAxis{ModelID: "bookings", Field: "service_date", Bucket: spec.BucketDay}
			q.Metrics[0].Window = &spec.Window{Type: spec.WindowRolling}
		}, Config{}},
		{"gap fill without range", func(q *spec.QuerySpec) {
			q.Time = &spec.TimeAxis{ModelID: "bookings", Field: "service_date", Bucket: spec.BucketDay, GapFill: spec.GapFillZero}
		}, Config{}},
		{"too many buckets", func(q *spec.QuerySpec) {
			q.Time = &spec.TimeAxis{ModelID: "bookings", Field: "service_date", Bucket: spec.BucketDay, GapFill: spec.GapFillZero,
				Range: &spec.TimeRange{From: day(1), To: endOfDay(31)}}
		}, Config{MaxBuckets: 10}},
		{"two topN", func(q *spec.QuerySpec) {
			q.Dimensions[0].TopN = &spec.TopN{Limit: 3}
			q.Dimensions = append(q.Dimensions, spec.Dimension{ModelID: "bookings", FieldID: "status", TopN: &spec.TopN{Limit: 2}})
		}, Config{}},
		{"topN without metric", func(q *spec.QuerySpec) {
			q.Metrics = nil
			q.Dimensions[0].TopN = &spec.TopN{Limit: 3}
		}, Config{}},
		{"unknown orderBy", func(q *spec.QuerySpec) {
			q.OrderBy = []spec.OrderBy{{Field: "nope"}}
		}, Config{}},
		{"aggregate derived as dimension", func(q *spec.QuerySpec) {
			q.DerivedFields = []spec.DerivedFieldRef{{ID: "avg_spend", Role: "dimension"}}
		}, Config{}},
		{"row derived as metric", func(q *spec.QuerySpec) {
			q.DerivedFields = []spec.DerivedFieldRef{{ID: "guests", Role: "metric"}}
		}, Config{}},
		{"unresolved derived", func(q *spec.QuerySpec) {
			q.DerivedFields = []spec.DerivedFieldRef{{ID: "missing"}}
		}, Config{}},
		{"filter on windowed metric", func(q *spec.QuerySpec) {
			q.Time = &spec.TimeAxis{ModelID: "bookings", Field: "service_date", Bucket: spec.BucketDay}
			q.Metrics[0].Window = &spec.Window{Type: spec.WindowCumulative}
			q.Filters = []spec.Filter{{MetricAlias: "sum_revenue", Operator: spec.OpGt, Value: 1}}
		}, Config{}},
		{"unreachable model", func(q *spec.QuerySpec) {
			q.Models = append(q.Models, "staff")
		}, Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := revenueByChannel()
			tt.mutate(q)
			_, err := New(catalog.Default(), tt.cfg).Plan(q, aggDef)
			var pe *PlanError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *PlanError", err)
			}
			if pe.Kind() != KindPlan {
				t.Errorf("Kind() = %s", pe.Kind())
			}
		})
	}
}

func TestPlanHashIsStable(t *testing.T) {
	t.Parallel()

	a := mustPlan(t, revenueByChannel(), nil)
	b := mustPlan(t, revenueByChannel(), nil)
	if a.Hash != b.Hash {
		t.Errorf("identical specs hashed differently: %s vs %s", a.Hash, b.Hash)
	}

	q := revenueByChannel()
	q.Limit = 5
	if c := mustPlan(t, q, nil); c.Hash == a.Hash {
		t.Error("limit change did not change the hash")
	}
}

func TestPlanComparisons(t *testing.T) {
	t.Parallel()

	q := dailyRevenue(10, 16)
	q.Comparisons = []spec.Comparison{{Mode: "previous"}, {Mode: "yoy", Label: "Last Year"}}
	plan := mustPlan(t, q, nil)

	if len(plan.Comparisons) != 2 {
		t.Fatalf("got %d comparisons", len(plan.Comparisons))
	}
	prev := plan.Comparisons[0]
	if !prev.Range.From.Equal(day(3)) || !prev.Range.To.Equal(endOfDay(9)) {
		t.Errorf("previous range = %+v", prev.Range)
	}
	if got, _ := prev.Plan.Args[0].(time.Time); !got.Equal(day(3)) {
		t.Errorf("sub-plan range arg = %v", prev.Plan.Args[0])
	}

	var names []string
	for _, c := range plan.Columns {
		names = append(names, c.Name)
	}
	want := []string{"service_date_day", "sum_revenue", "sum_revenue_previous", "sum_revenue_last_year"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("columns = %v, want %v", names, want)
	}

	q.Time.Range = nil
	if _, err := newPlanner().Plan(q, nil); err == nil {
		t.Error("comparison without a range should fail")
	}
}

func TestPlanExplain(t *testing.T) {
	t.Parallel()

	q := revenueByChannel()
	q.Dimensions[0].TopN = &spec.TopN{Limit: 3, IncludeOthers: true}
	plan := mustPlan(t, q, nil)

	joined := strings.Join(plan.Explain, "\n")
	for _, want := range []string{"from bookings", "group by channel", "metric sum_revenue = sum", "post: top 3 channel by sum_revenue with Others"} {
		if !strings.Contains(joined, want) {
			t.Errorf("explain missing %q:\n%s", want, joined)
		}
	}
}
