// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package spec defines the declarative QuerySpec consumed by the reporting
// engine, its validation rules, and its canonical structural hash.
//
// A QuerySpec never touches a data store: validation is pure and every
// reference is resolved against a Catalog supplied by the caller.
package spec

import (
	"strings"
	"time"
)

// Filter operators.
const (
	OpEq      = "eq"
	OpNeq     = "neq"
	OpGt      = "gt"
	OpGte     = "gte"
	OpLt      = "lt"
	OpLte     = "lte"
	OpIn      = "in"
	OpNotIn   = "not_in"
	OpBetween = "between"
)

// Metric aggregations.
const (
	AggSum           = "sum"
	AggAvg           = "avg"
	AggMin           = "min"
	AggMax           = "max"
	AggCount         = "count"
	AggCountDistinct = "count_distinct"
)

// Time bucket granularities.
const (
	BucketHour    = "hour"
	BucketDay     = "day"
	BucketWeek    = "week"
	BucketMonth   = "month"
	BucketQuarter = "quarter"
	BucketYear    = "year"
)

// Gap fill modes.
const (
	GapFillNone = "none"
	GapFillZero = "zero"
	GapFillNull = "null"
)

// Window types.
const (
	WindowRolling    = "rolling"
	WindowCumulative = "cumulative"
)

// FieldRef identifies a field of a model.
type FieldRef struct {
	ModelID string `json:"modelId"`
	FieldID string `json:"fieldId"`
}

func (r FieldRef) String() string {
	return r.ModelID + "." + r.FieldID
}

// QuerySpec describes what to compute.
type QuerySpec struct {
	Models        []string          `json:"models" validate:"required,min=1,unique,dive,identifier"`
	Select        []SelectField     `json:"select,omitempty" validate:"dive"`
	Metrics       []Metric          `json:"metrics,omitempty" validate:"dive"`
	Dimensions    []Dimension       `json:"dimensions,omitempty" validate:"dive"`
	Filters       []Filter          `json:"filters,omitempty" validate:"dive"`
	Joins         []Join            `json:"joins,omitempty" validate:"dive"`
	DerivedFields []DerivedFieldRef `json:"derivedFields,omitempty" validate:"dive"`
	Time          *TimeAxis         `json:"time,omitempty"`
	Comparisons   []Comparison      `json:"comparisons,omitempty" validate:"dive"`
	OrderBy       []OrderBy         `json:"orderBy,omitempty" validate:"dive"`
	Limit         int               `json:"limit,omitempty" validate:"gte=0,lte=100000"`
	Offset        int               `json:"offset,omitempty" validate:"gte=0"`
	Options       Options           `json:"options"`
}

// Anchor returns the root model joins are ordered from.
func (q *QuerySpec) Anchor() string {
	if len(q.Models) == 0 {
		return ""
	}
	return q.Models[0]
}

// DeclaresModel reports whether id is listed in Models.
func (q *QuerySpec) DeclaresModel(id string) bool {
	for _, m := range q.Models {
		if m == id {
			return true
		}
	}
	return false
}

// HasTimeDimension reports whether a time axis or a bucketed dimension exists.
func (q *QuerySpec) HasTimeDimension() bool {
	if q.Time != nil {
		return true
	}
	for _, d := range q.Dimensions {
		if d.Bucket != "" {
			return true
		}
	}
	return false
}

// SelectField is a raw column projection.
type SelectField struct {
	ModelID string `json:"modelId" validate:"required,identifier"`
	FieldID string `json:"fieldId" validate:"required,identifier"`
	Alias   string `json:"alias,omitempty" validate:"omitempty,identifier"`
}

// Ref returns the field reference.
func (s SelectField) Ref() FieldRef { return FieldRef{s.ModelID, s.FieldID} }

// OutputAlias returns the result column name.
func (s SelectField) OutputAlias() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.FieldID
}

// Metric is an aggregated measure.
type Metric struct {
	ModelID     string  `json:"modelId" validate:"required,identifier"`
	FieldID     string  `json:"fieldId" validate:"required,identifier"`
	Aggregation string  `json:"aggregation" validate:"required,oneof=sum avg min max count count_distinct"`
	Alias       string  `json:"alias,omitempty" validate:"omitempty,identifier"`
	Window      *Window `json:"window,omitempty"`
}

// Ref returns the field reference.
func (m Metric) Ref() FieldRef { return FieldRef{m.ModelID, m.FieldID} }

// OutputAlias returns the result column name.
func (m Metric) OutputAlias() string {
	if m.Alias != "" {
		return m.Alias
	}
	return m.Aggregation + "_" + m.FieldID
}

// Window turns a metric into a rolling or cumulative series over the time axis.
type Window struct {
	Type  string `json:"type" validate:"required,oneof=rolling cumulative"`
	Frame int    `json:"frame,omitempty" validate:"gte=0,lte=366"`
}

// Dimension is a grouping column.
type Dimension struct {
	ModelID string `json:"modelId" validate:"required,identifier"`
	FieldID string `json:"fieldId" validate:"required,identifier"`
	Alias   string `json:"alias,omitempty" validate:"omitempty,identifier"`
	Bucket  string `json:"bucket,omitempty" validate:"omitempty,oneof=hour day week month quarter year"`
	TopN    *TopN  `json:"topN,omitempty"`
}

// Ref returns the field reference.
func (d Dimension) Ref() FieldRef { return FieldRef{d.ModelID, d.FieldID} }

// OutputAlias returns the result column name.
func (d Dimension) OutputAlias() string {
	if d.Alias != "" {
		return d.Alias
	}
	if d.Bucket != "" {
		return d.FieldID + "_" + d.Bucket
	}
	return d.FieldID
}

// TopN keeps the highest ranked groups of a dimension.
type TopN struct {
	Limit         int  `json:"limit" validate:"gte=1,lte=1000"`
	IncludeOthers bool `json:"includeOthers,omitempty"`
}

// Filter restricts rows (or groups when it targets a metric or aggregate
// derived field).
type Filter struct {
	ModelID        string      `json:"modelId,omitempty" validate:"required_without_all=MetricAlias DerivedFieldID"`
	FieldID        string      `json:"fieldId,omitempty" validate:"required_without_all=MetricAlias DerivedFieldID"`
	Operator       string      `json:"operator" validate:"required,oneof=eq neq gt gte lt lte in not_in between"`
	Value          interface{} `json:"value"`
	JoinWith       string      `json:"joinWith,omitempty" validate:"omitempty,oneof=and or"`
	MetricAlias    string      `json:"metricAlias,omitempty"`
	DerivedFieldID string      `json:"derivedFieldId,omitempty"`
}

// Ref returns the field reference.
func (f Filter) Ref() FieldRef { return FieldRef{f.ModelID, f.FieldID} }

// IsAggregate reports whether the filter applies after aggregation.
func (f Filter) IsAggregate() bool {
	return f.MetricAlias != "" || f.DerivedFieldID != ""
}

// Conjunction returns "and" or "or".
func (f Filter) Conjunction() string {
	if strings.EqualFold(f.JoinWith, "or") {
		return "or"
	}
	return "and"
}

// RangeValue is the value of a between filter.
type RangeValue struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// Join connects two models.
type Join struct {
	ID         string `json:"id" validate:"required"`
	LeftModel  string `json:"leftModel" validate:"required,identifier"`
	LeftField  string `json:"leftField" validate:"required,identifier"`
	RightModel string `json:"rightModel" validate:"required,identifier"`
	RightField string `json:"rightField" validate:"required,identifier"`
	JoinType   string `json:"joinType,omitempty" validate:"omitempty,oneof=inner left right full"`
}

// Type returns the join type, defaulting to inner.
func (j Join) Type() string {
	if j.JoinType == "" {
		return "inner"
	}
	return j.JoinType
}

// Other returns the model on the opposite side of model.
func (j Join) Other(model string) string {
	if j.LeftModel == model {
		return j.RightModel
	}
	return j.LeftModel
}

// DerivedFieldRef pulls a stored derived field into the query.
type DerivedFieldRef struct {
	ID    string `json:"id" validate:"required"`
	Alias string `json:"alias,omitempty" validate:"omitempty,identifier"`
	Role  string `json:"role,omitempty" validate:"omitempty,oneof=dimension metric select"`
}

// OutputAlias returns the result column name.
func (d DerivedFieldRef) OutputAlias() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.ID
}

// TimeRange is an inclusive instant range.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TimeAxis designates the temporal column of the query.
type TimeAxis struct {
	ModelID string     `json:"modelId" validate:"required,identifier"`
	Field   string     `json:"field" validate:"required,identifier"`
	Range   *TimeRange `json:"range,omitempty"`
	Bucket  string     `json:"bucket,omitempty" validate:"omitempty,oneof=hour day week month quarter year"`
	GapFill string     `json:"gapFill,omitempty" validate:"omitempty,oneof=none zero null"`
}

// Ref returns the field reference.
func (t TimeAxis) Ref() FieldRef { return FieldRef{t.ModelID, t.Field} }

// OutputAlias returns the bucket column name.
func (t TimeAxis) OutputAlias() string {
	if t.Bucket == "" {
		return t.Field
	}
	return t.Field + "_" + t.Bucket
}

// CustomRange is an unparsed caller-supplied range.
type CustomRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Comparison requests a second window evaluated alongside the base range.
type Comparison struct {
	Mode  string       `json:"mode" validate:"required,oneof=previous wow mom yoy custom"`
	Label string       `json:"label,omitempty"`
	Range *CustomRange `json:"range,omitempty"`
}

// Name returns the label, defaulting to the mode.
func (c Comparison) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Mode
}

// OrderBy sorts by an output alias.
type OrderBy struct {
	Field     string `json:"field" validate:"required"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=asc desc"`
}

// Options tune execution without changing the result.
type Options struct {
	AllowAsync       bool   `json:"allowAsync,omitempty"`
	ForceAsync       bool   `json:"forceAsync,omitempty"`
	CacheTTLSeconds  int    `json:"cacheTtlSeconds,omitempty" validate:"gte=0,lte=86400"`
	TemplateID       string `json:"templateId,omitempty"`
	Explain          bool   `json:"explain,omitempty"`
	AnomalyDetection bool   `json:"anomalyDetection,omitempty"`
}
