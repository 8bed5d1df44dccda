// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package spec

import (
	"fmt"
	"reflect"
	"time"

	"github.com/tomtom215/innkeeper/internal/validation"
)

// Catalog resolves model and field references. Implemented by catalog.Catalog.
type Catalog interface {
	HasModel(modelID string) bool
	HasField(modelID, fieldID string) bool
}

// DerivedInfo is what validation needs to know about a stored derived field.
type DerivedInfo struct {
	ID     string
	Kind   string
	Models []string
}

// DerivedLookup finds a derived field by id.
type DerivedLookup func(id string) (DerivedInfo, bool)

// Validate checks q and returns nil when it is valid. Struct shape is checked
// first; then, in order: (a) references resolve, (b) joins are loop-free and
// connect every model, (c) filter values match their operator, (d) windows
// and comparisons have a time axis, (e) derived fields only touch declared
// models. Output aliases must be unique.
func Validate(q *QuerySpec, cat Catalog, lookup DerivedLookup) ValidationErrors {
	if q == nil {
		return ValidationErrors{{Code: CodeInvalidShape, Message: "query spec is required"}}
	}

	var errs ValidationErrors
	add := func(code, path, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if shapeErr := validation.ValidateStruct(q); shapeErr != nil {
		for _, fe := range shapeErr.Errors() {
			add(CodeInvalidShape, fe.Path, "%s", fe.Message)
		}
		// References cannot be resolved reliably on a malformed spec.
		return errs
	}

	checkReferences(q, cat, add)
	checkJoins(q, cat, add)
	checkFilterValues(q, add)
	checkTimeRequirements(q, add)
	checkDerived(q, lookup, add)
	checkAliases(q, add)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

type addFunc func(code, path, format string, args ...interface{})

// checkRef reports undeclared models and unknown fields. Unknown models are
// reported once, against models[i].
func checkRef(q *QuerySpec, cat Catalog, ref FieldRef, path string, add addFunc) {
	if !q.DeclaresModel(ref.ModelID) {
		add(CodeModelNotDeclared, path, "model %q is not listed in models", ref.ModelID)
		return
	}
	if cat != nil && cat.HasModel(ref.ModelID) && !cat.HasField(ref.ModelID, ref.FieldID) {
		add(CodeUnknownField, path, "field %q does not exist on model %q", ref.FieldID, ref.ModelID)
	}
}

func checkReferences(q *QuerySpec, cat Catalog, add addFunc) {
	if cat != nil {
		for i, m := range q.Models {
			if !cat.HasModel(m) {
				add(CodeUnknownModel, fmt.Sprintf("models[%d]", i), "unknown model %q", m)
			}
		}
	}
	for i, s := range q.Select {
		checkRef(q, cat, s.Ref(), fmt.Sprintf("select[%d]", i), add)
	}
	for i, m := range q.Metrics {
		checkRef(q, cat, m.Ref(), fmt.Sprintf("metrics[%d]", i), add)
	}
	for i, d := range q.Dimensions {
		checkRef(q, cat, d.Ref(), fmt.Sprintf("dimensions[%d]", i), add)
	}

	metricAliases := make(map[string]bool, len(q.Metrics))
	for _, m := range q.Metrics {
		metricAliases[m.OutputAlias()] = true
	}
	derivedIDs := make(map[string]bool, len(q.DerivedFields))
	for _, d := range q.DerivedFields {
		derivedIDs[d.ID] = true
	}
	for i, f := range q.Filters {
		path := fmt.Sprintf("filters[%d]", i)
		switch {
		case f.MetricAlias != "":
			if !metricAliases[f.MetricAlias] {
				add(CodeUnknownMetricAlias, path, "filter targets unknown metric %q", f.MetricAlias)
			}
		case f.DerivedFieldID != "":
			if !derivedIDs[f.DerivedFieldID] {
				add(CodeUnknownDerivedField, path, "filter targets derived field %q which is not part of the query", f.DerivedFieldID)
			}
		default:
			checkRef(q, cat, f.Ref(), path, add)
		}
	}
	if q.Time != nil {
		checkRef(q, cat, q.Time.Ref(), "time", add)
	}
}

func checkJoins(q *QuerySpec, cat Catalog, add addFunc) {
	parent := make(map[string]string, len(q.Models))
	for _, m := range q.Models {
		parent[m] = m
	}
	var find func(string) string
	find = func(m string) string {
		if parent[m] != m {
			parent[m] = find(parent[m])
		}
		return parent[m]
	}

	seen := make(map[string]bool, len(q.Joins))
	for i, j := range q.Joins {
		path := fmt.Sprintf("joins[%d]", i)
		if seen[j.ID] {
			add(CodeDuplicateJoin, path, "duplicate join id %q", j.ID)
			continue
		}
		seen[j.ID] = true

		checkRef(q, cat, FieldRef{j.LeftModel, j.LeftField}, path+".left", add)
		checkRef(q, cat, FieldRef{j.RightModel, j.RightField}, path+".right", add)
		if !q.DeclaresModel(j.LeftModel) || !q.DeclaresModel(j.RightModel) {
			continue
		}
		if j.LeftModel == j.RightModel {
			add(CodeSelfJoin, path, "join %q connects model %q to itself", j.ID, j.LeftModel)
			continue
		}

		l, r := find(j.LeftModel), find(j.RightModel)
		if l == r {
			add(CodeJoinCycle, path, "join %q closes a loop between %q and %q", j.ID, j.LeftModel, j.RightModel)
			continue
		}
		parent[l] = r
	}

	root := find(q.Anchor())
	for i, m := range q.Models[1:] {
		if find(m) != root {
			add(CodeDisconnectedModel, fmt.Sprintf("models[%d]", i+1), "model %q is not reachable from %q through joins", m, q.Anchor())
		}
	}
}

func checkFilterValues(q *QuerySpec, add addFunc) {
	for i, f := range q.Filters {
		path := fmt.Sprintf("filters[%d].value", i)
		switch f.Operator {
		case OpBetween:
			from, to, ok := AsRange(f.Value)
			if !ok || isNil(from) || isNil(to) {
				add(CodeIncompleteRange, path, "between requires both from and to")
			}
		case OpIn, OpNotIn:
			n, ok := sequenceLen(f.Value)
			if !ok {
				add(CodeInvalidFilterValue, path, "%s requires an array value", f.Operator)
			} else if n == 0 {
				add(CodeInvalidFilterValue, path, "%s requires at least one value", f.Operator)
			}
		case OpEq, OpNeq:
			if !isScalar(f.Value) {
				add(CodeInvalidFilterValue, path, "%s requires a scalar value", f.Operator)
			}
		default:
			if isNil(f.Value) || !isScalar(f.Value) {
				add(CodeInvalidFilterValue, path, "%s requires a non-null scalar value", f.Operator)
			}
		}
	}
}

func checkTimeRequirements(q *QuerySpec, add addFunc) {
	hasTime := q.HasTimeDimension()
	for i, m := range q.Metrics {
		if m.Window == nil {
			continue
		}
		path := fmt.Sprintf("metrics[%d].window", i)
		if !hasTime {
			add(CodeWindowWithoutTime, path, "windowed metric %q requires a time axis", m.OutputAlias())
			continue
		}
		if m.Window.Type == WindowRolling && m.Window.Frame < 1 {
			add(CodeInvalidWindow, path, "rolling window requires frame >= 1")
		}
	}
	for i, c := range q.Comparisons {
		path := fmt.Sprintf("comparisons[%d]", i)
		if q.Time == nil || q.Time.Range == nil {
			add(CodeComparisonWithoutRange, path, "comparison %q requires time.range", c.Name())
			continue
		}
		if c.Mode == "custom" && (c.Range == nil || c.Range.From == "" || c.Range.To == "") {
			add(CodeIncompleteRange, path+".range", "custom comparison requires from and to")
		}
	}
}

func checkDerived(q *QuerySpec, lookup DerivedLookup, add addFunc) {
	seen := make(map[string]bool, len(q.DerivedFields))
	for i, ref := range q.DerivedFields {
		path := fmt.Sprintf("derivedFields[%d]", i)
		if seen[ref.ID] {
			add(CodeDuplicateDerivedField, path, "derived field %q listed twice", ref.ID)
			continue
		}
		seen[ref.ID] = true

		if lookup == nil {
			add(CodeUnknownDerivedField, path, "unknown derived field %q", ref.ID)
			continue
		}
		info, ok := lookup(ref.ID)
		if !ok {
			add(CodeUnknownDerivedField, path, "unknown derived field %q", ref.ID)
			continue
		}
		for _, m := range info.Models {
			if !q.DeclaresModel(m) {
				add(CodeDerivedModelNotDeclared, path, "derived field %q references model %q which is not listed in models", ref.ID, m)
			}
		}
	}
}

func checkAliases(q *QuerySpec, add addFunc) {
	seen := make(map[string]bool)
	claim := func(alias, path string) {
		if seen[alias] {
			add(CodeDuplicateAlias, path, "output column %q is produced twice", alias)
			return
		}
		seen[alias] = true
	}
	for i, s := range q.Select {
		claim(s.OutputAlias(), fmt.Sprintf("select[%d]", i))
	}
	if q.Time != nil && q.Time.Bucket != "" {
		claim(q.Time.OutputAlias(), "time")
	}
	for i, d := range q.Dimensions {
		claim(d.OutputAlias(), fmt.Sprintf("dimensions[%d]", i))
	}
	for i, m := range q.Metrics {
		claim(m.OutputAlias(), fmt.Sprintf("metrics[%d]", i))
	}
	for i, d := range q.DerivedFields {
		claim(d.OutputAlias(), fmt.Sprintf("derivedFields[%d]", i))
	}
}

// AsRange extracts from/to of a between value. It accepts RangeValue,
// *RangeValue and the map shape JSON decoding produces.
func AsRange(v interface{}) (from, to interface{}, ok bool) {
	switch r := v.(type) {
	case RangeValue:
		return r.From, r.To, true
	case *RangeValue:
		if r == nil {
			return nil, nil, false
		}
		return r.From, r.To, true
	case map[string]interface{}:
		return r["from"], r["to"], true
	case map[string]string:
		f, fok := r["from"]
		t, tok := r["to"]
		if !fok || !tok {
			return nil, nil, true
		}
		return f, t, true
	default:
		return nil, nil, false
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func isScalar(v interface{}) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(time.Time); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return false
	}
	return true
}

func sequenceLen(v interface{}) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return 0, false
	}
	return rv.Len(), true
}
