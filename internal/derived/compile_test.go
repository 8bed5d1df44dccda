// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package derived

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/innkeeper/internal/spec"
)

var (
	joinBV = spec.Join{ID: "bv", LeftModel: "bookings", LeftField: "venue_id", RightModel: "venues", RightField: "id"}
	joinRV = spec.Join{ID: "rv", LeftModel: "reviews", LeftField: "venue_id", RightModel: "venues", RightField: "id"}
	joinSV = spec.Join{ID: "sv", LeftModel: "shifts", LeftField: "venue_id", RightModel: "venues", RightField: "id"}

	hotelGraph = Graph{
		Models: []string{"bookings", "venues", "reviews", "shifts"},
		Joins:  []spec.Join{joinBV, joinRV, joinSV},
	}
)

func TestCompileDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		expr       *Expr
		wantModels []string
		wantJoins  []string
		wantAgg    bool
	}{
		{
			name:       "single model",
			expr:       Bin("/", Col("bookings", "revenue"), Col("bookings", "guest_count")),
			wantModels: []string{"bookings"},
			wantJoins:  []string{},
		},
		{
			name:       "literal operand",
			expr:       Bin("-", Col("reviews", "rating"), Lit(3.0)),
			wantModels: []string{"reviews"},
			wantJoins:  []string{},
		},
		{
			name:       "two hops",
			expr:       Bin("*", Col("bookings", "revenue"), Col("reviews", "rating")),
			wantModels: []string{"bookings", "reviews"},
			wantJoins:  []string{"bv", "rv"},
		},
		{
			name:       "aggregate across three models",
			expr:       Bin("/", Fn("sum", Col("bookings", "revenue")), Fn("sum", Bin("+", Col("shifts", "labour_cost"), Col("venues", "seats")))),
			wantModels: []string{"bookings", "shifts", "venues"},
			wantJoins:  []string{"bv", "sv"},
			wantAgg:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Compile(tt.expr, hotelGraph, nil)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if !reflect.DeepEqual(res.ReferencedModels, tt.wantModels) {
				t.Errorf("models = %v, want %v", res.ReferencedModels, tt.wantModels)
			}
			gotJoins := make([]string, len(res.JoinDependencies))
			for i, d := range res.JoinDependencies {
				gotJoins[i] = d.JoinID
			}
			if !reflect.DeepEqual(gotJoins, tt.wantJoins) {
				t.Errorf("joins = %v, want %v", gotJoins, tt.wantJoins)
			}
			if res.Aggregate != tt.wantAgg {
				t.Errorf("aggregate = %v", res.Aggregate)
			}
			for _, m := range res.ReferencedModels {
				if !hotelGraph.HasModel(m) {
					t.Errorf("referenced model %s outside graph", m)
				}
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	disconnected := Graph{Models: []string{"bookings", "staff"}}

	tests := []struct {
		name  string
		expr  *Expr
		graph Graph
	}{
		{"literal zero divisor", Bin("/", Col("bookings", "revenue"), Lit(0.0)), hotelGraph},
		{"integer zero divisor", Bin("/", Col("bookings", "revenue"), Lit(0)), hotelGraph},
		{"model outside graph", Col("ingredients", "unit_cost"), hotelGraph},
		{"no join path", Bin("+", Col("bookings", "revenue"), Col("staff", "id")), disconnected},
		{"unknown function", Fn("median", Col("bookings", "revenue")), hotelGraph},
		{"bad arity", Fn("nullif", Col("bookings", "revenue")), hotelGraph},
		{"nested aggregate", Fn("sum", Fn("avg", Col("bookings", "revenue"))), hotelGraph},
		{"unknown operator", Bin("^", Col("bookings", "revenue"), Lit(2.0)), hotelGraph},
		{"missing operand", &Expr{Type: NodeBinary, Op: "+", Left: Col("bookings", "revenue")}, hotelGraph},
		{"missing unary operand", &Expr{Type: NodeUnary, Op: "-"}, hotelGraph},
		{"null date_trunc unit", Fn("date_trunc", nil, Col("bookings", "booked_at")), hotelGraph},
		{"null aggregate argument", Fn("sum", nil), hotelGraph},
		{"null nested argument", Fn("coalesce", Col("bookings", "revenue"), nil), hotelGraph},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compile(tt.expr, tt.graph, nil)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("expected CompileError, got %v", err)
			}
		})
	}
}

func TestCompileColumnDivisorAllowed(t *testing.T) {
	t.Parallel()

	if _, err := Compile(Bin("/", Lit(1.0), Col("bookings", "guest_count")), hotelGraph, nil); err != nil {
		t.Fatalf("column divisor should compile: %v", err)
	}
}

func TestCompiledSQLHashCanonical(t *testing.T) {
	t.Parallel()

	hash := func(e *Expr) string {
		res, err := Compile(e, hotelGraph, nil)
		if err != nil {
			t.Fatal(err)
		}
		return res.CompiledSQLHash
	}

	a := Bin("+", Col("bookings", "revenue"), Bin("*", Col("bookings", "guest_count"), Lit(2.0)))
	b := Bin("+", Bin("*", Lit(2.0), Col("bookings", "guest_count")), Col("bookings", "revenue"))
	if hash(a) != hash(b) {
		t.Error("commutative reordering must not change the hash")
	}

	upper := Fn("SUM", Col("bookings", "revenue"))
	lower := Fn("sum", Col("bookings", "revenue"))
	if hash(upper) != hash(lower) {
		t.Error("function name case must not change the hash")
	}

	c := Bin("-", Col("bookings", "revenue"), Col("bookings", "guest_count"))
	d := Bin("-", Col("bookings", "guest_count"), Col("bookings", "revenue"))
	if hash(c) == hash(d) {
		t.Error("subtraction is not commutative")
	}
}

func TestCheckFresh(t *testing.T) {
	t.Parallel()

	def, err := CompileDefinition(&Definition{
		ID:         "rating_x_revenue",
		Kind:       KindRow,
		Expression: Bin("*", Col("bookings", "revenue"), Col("reviews", "rating")),
	}, hotelGraph, nil, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}

	if err := CheckFresh(def, hotelGraph); err != nil {
		t.Fatalf("fresh definition reported stale: %v", err)
	}

	extra := hotelGraph
	extra.Models = append(append([]string{}, hotelGraph.Models...), "staff")
	extra.Joins = append(append([]spec.Join{}, hotelGraph.Joins...),
		spec.Join{ID: "st", LeftModel: "shifts", LeftField: "staff_id", RightModel: "staff", RightField: "id"})
	if err := CheckFresh(def, extra); err != nil {
		t.Errorf("unrelated join must not make the field stale: %v", err)
	}

	removed := Graph{Models: hotelGraph.Models, Joins: []spec.Join{joinBV, joinSV}}
	retyped := Graph{Models: hotelGraph.Models, Joins: []spec.Join{joinBV, joinSV, joinRV}}
	retyped.Joins[2].JoinType = "left"

	for name, g := range map[string]Graph{"join removed": removed, "join retyped": retyped} {
		var se *StaleError
		if err := CheckFresh(def, g); !errors.As(err, &se) {
			t.Errorf("%s: expected StaleError, got %v", name, err)
		}
	}
}

func TestCompileDefinitionKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    Kind
		expr    *Expr
		wantErr bool
	}{
		{"row scalar", KindRow, Bin("/", Col("bookings", "revenue"), Col("bookings", "guest_count")), false},
		{"row with aggregate", KindRow, Fn("sum", Col("bookings", "revenue")), true},
		{"aggregate ratio", KindAggregate, Bin("/", Fn("sum", Col("bookings", "revenue")), Fn("count", Col("bookings", "id"))), false},
		{"aggregate without reduction", KindAggregate, Col("bookings", "revenue"), true},
		{"aggregate with bare column", KindAggregate, Bin("/", Fn("sum", Col("bookings", "revenue")), Col("bookings", "guest_count")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := CompileDefinition(&Definition{ID: "f", Kind: tt.kind, Expression: tt.expr}, hotelGraph, nil, time.Now())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	resolve := func(m, f string) (string, error) { return `"` + m + `"."` + f + `"`, nil }
	got, err := Render(Bin("/", Fn("count_distinct", Col("bookings", "id")), Fn("coalesce", Col("venues", "seats"), Lit("n/a's"))), resolve)
	if err != nil {
		t.Fatal(err)
	}
	want := `(COUNT(DISTINCT "bookings"."id") / NULLIF(COALESCE("venues"."seats", 'n/a''s'), 0))`
	if got != want {
		t.Errorf("Render = %s\nwant     %s", got, want)
	}
}
