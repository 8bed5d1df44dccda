// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package planner

import (
	"reflect"
	"strings"

	"github.com/tomtom215/innkeeper/internal/catalog"
	"github.com/tomtom215/innkeeper/internal/spec"
)

var comparisonOps = map[string]string{
	spec.OpGt:  ">",
	spec.OpGte: ">=",
	spec.OpLt:  "<",
	spec.OpLte: "<=",
}

// condition renders one filter against target as a parameterized predicate.
func condition(target string, f spec.Filter, typ catalog.FieldType) (string, []interface{}, error) {
	switch f.Operator {
	case spec.OpEq, spec.OpNeq:
		if f.Value == nil {
			if f.Operator == spec.OpEq {
				return target + " IS NULL", nil, nil
			}
			return target + " IS NOT NULL", nil, nil
		}
		op := " = ?"
		if f.Operator == spec.OpNeq {
			op = " <> ?"
		}
		return target + op, []interface{}{argValue(f.Value, typ)}, nil

	case spec.OpGt, spec.OpGte, spec.OpLt, spec.OpLte:
		return target + " " + comparisonOps[f.Operator] + " ?", []interface{}{argValue(f.Value, typ)}, nil

	case spec.OpIn, spec.OpNotIn:
		values, ok := toSlice(f.Value)
		if !ok {
			return "", nil, planErrorf("%s filter on %s needs a list value", f.Operator, target)
		}
		if len(values) == 0 {
			if f.Operator == spec.OpIn {
				return "FALSE", nil, nil
			}
			return "TRUE", nil, nil
		}
		args := make([]interface{}, len(values))
		for i, v := range values {
			args[i] = argValue(v, typ)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		kw := " IN ("
		if f.Operator == spec.OpNotIn {
			kw = " NOT IN ("
		}
		return target + kw + placeholders + ")", args, nil

	case spec.OpBetween:
		from, to, ok := spec.AsRange(f.Value)
		if !ok {
			return "", nil, planErrorf("between filter on %s needs from and to", target)
		}
		return target + " BETWEEN ? AND ?", []interface{}{argValue(from, typ), argValue(to, typ)}, nil
	}
	return "", nil, planErrorf("unknown operator %q", f.Operator)
}

// argValue parses timestamp strings so the driver binds a TIMESTAMP.
func argValue(v interface{}, typ catalog.FieldType) interface{} {
	if typ != catalog.TypeTimestamp {
		return v
	}
	if s, ok := v.(string); ok {
		if t, ok := spec.ParseInstant(s); ok {
			return t
		}
	}
	return v
}

func toSlice(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
