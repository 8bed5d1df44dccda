// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// Column types as reported in result metadata.
const (
	typeNumber    = "number"
	typeString    = "string"
	typeTimestamp = "timestamp"
	typeBoolean   = "boolean"
)

// DefaultPageSize is the preview table page size when none is configured.
const DefaultPageSize = 25

// VisualPoint is one chart point.
type VisualPoint struct {
	Dimension  interface{} `json:"dimension"`
	Metric     *float64    `json:"metric"`
	Comparison *float64    `json:"comparison,omitempty"`
}

// SpotlightValue is the scalar of a spotlight card and its delta.
type SpotlightValue struct {
	Value      *float64 `json:"value"`
	Comparison *float64 `json:"comparison,omitempty"`
	Target     *float64 `json:"target,omitempty"`
	Delta      *float64 `json:"delta,omitempty"`
	DeltaPct   *float64 `json:"deltaPct,omitempty"`
	// Basis names what the delta is computed against: "comparison",
	// "target" or empty.
	Basis string `json:"basis,omitempty"`
}

// TableColumn is one preview table column.
type TableColumn struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// TablePage is one page of preview rows.
type TablePage struct {
	Columns    []TableColumn            `json:"columns"`
	Rows       []map[string]interface{} `json:"rows"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"pageSize"`
	TotalRows  int                      `json:"totalRows"`
	TotalPages int                      `json:"totalPages"`
}

// columnSet resolves configured aliases to result columns, claiming each
// column at most once.
type columnSet struct {
	cols    []models.Column
	claimed map[string]bool
}

func newColumnSet(res *models.QueryResult) *columnSet {
	return &columnSet{cols: resultColumns(res), claimed: make(map[string]bool)}
}

// byAlias claims the column named alias.
func (s *columnSet) byAlias(alias string) (string, bool) {
	if alias == "" {
		return "", false
	}
	for _, c := range s.cols {
		if c.Name == alias && !s.claimed[c.Name] {
			s.claimed[c.Name] = true
			return c.Name, true
		}
	}
	return "", false
}

// byType claims the first unclaimed column accepted by match.
func (s *columnSet) byType(match func(string) bool) (string, bool) {
	for _, c := range s.cols {
		if !s.claimed[c.Name] && match(c.Type) {
			s.claimed[c.Name] = true
			return c.Name, true
		}
	}
	return "", false
}

func isNumeric(t string) bool  { return t == typeNumber }
func isCategory(t string) bool { return t != typeNumber }

// resultColumns returns the server columns, or columns inferred from the
// first row ordered by name when the result carries none.
func resultColumns(res *models.QueryResult) []models.Column {
	if res == nil {
		return nil
	}
	if len(res.Columns) > 0 {
		return res.Columns
	}
	if len(res.Rows) == 0 {
		return nil
	}
	names := make([]string, 0, len(res.Rows[0]))
	for k := range res.Rows[0] {
		names = append(names, k)
	}
	sort.Strings(names)
	cols := make([]models.Column, len(names))
	for i, n := range names {
		cols[i] = models.Column{Name: n, Type: inferType(res.Rows[0][n])}
	}
	return cols
}

func inferType(v interface{}) string {
	switch v.(type) {
	case time.Time:
		return typeTimestamp
	case bool:
		return typeBoolean
	case string:
		return typeString
	}
	if _, ok := models.Number(v); ok {
		return typeNumber
	}
	return typeString
}

// MapVisual maps result rows into chart points. Configured aliases are
// claimed first; the dimension and metric then fall back to the first
// unclaimed column of the expected type. The comparison only falls back
// when an alias was configured. Rows with neither a numeric metric nor a
// comparison are dropped.
func MapVisual(cfg *VisualConfig, res *models.QueryResult) []VisualPoint {
	if cfg == nil {
		cfg = &VisualConfig{}
	}
	cols := newColumnSet(res)
	dim, hasDim := cols.byAlias(cfg.DimensionAlias)
	metric, hasMetric := cols.byAlias(cfg.MetricAlias)
	cmp, hasCmp := cols.byAlias(cfg.ComparisonAlias)
	if !hasDim {
		dim, hasDim = cols.byType(isCategory)
	}
	if !hasMetric {
		metric, hasMetric = cols.byType(isNumeric)
	}
	if !hasCmp && cfg.ComparisonAlias != "" {
		cmp, hasCmp = cols.byType(isNumeric)
	}

	points := make([]VisualPoint, 0, len(resultRows(res)))
	for _, r := range resultRows(res) {
		var p VisualPoint
		if hasDim {
			p.Dimension = r[dim]
		}
		if hasMetric {
			p.Metric = number(r[metric])
		}
		if hasCmp {
			p.Comparison = number(r[cmp])
		}
		if p.Metric == nil && p.Comparison == nil {
			continue
		}
		points = append(points, p)
	}
	return points
}

// MapSpotlight aggregates the metric column of primary per the configured
// aggregation and computes the delta against the comparison, taken from
// twin when present, then from the configured comparison column, else
// against the target.
func MapSpotlight(cfg *SpotlightConfig, primary, twin *models.QueryResult) *SpotlightValue {
	out := &SpotlightValue{}
	if cfg == nil {
		return out
	}
	cols := newColumnSet(primary)
	metric, ok := cols.byAlias(cfg.MetricAlias)
	if !ok {
		metric, ok = cols.byType(isNumeric)
	}
	if !ok {
		return out
	}
	out.Value = Aggregate(cfg.Aggregation, columnValues(primary, metric))

	switch {
	case twin != nil:
		twinCols := newColumnSet(twin)
		name, found := twinCols.byAlias(metric)
		if !found {
			name, found = twinCols.byType(isNumeric)
		}
		if found {
			out.Comparison = Aggregate(cfg.Aggregation, columnValues(twin, name))
		}
	case cfg.ComparisonAlias != "":
		if name, found := cols.byAlias(cfg.ComparisonAlias); found {
			out.Comparison = Aggregate(cfg.Aggregation, columnValues(primary, name))
		}
	}
	out.Target = cfg.Target

	base := out.Comparison
	out.Basis = "comparison"
	if base == nil {
		base = out.Target
		out.Basis = "target"
	}
	if base == nil || out.Value == nil {
		out.Basis = ""
		return out
	}
	delta := *out.Value - *base
	out.Delta = &delta
	if *base != 0 {
		pct := delta / math.Abs(*base) * 100
		out.DeltaPct = &pct
	}
	return out
}

// Aggregate folds values client side. Non-numeric values are ignored by
// the numeric aggregations; count and count_distinct count every non-nil
// value. It returns nil when nothing could be aggregated.
func Aggregate(agg string, values []interface{}) *float64 {
	var (
		acc   float64
		n     int
		seen  = make(map[string]bool)
		count int
	)
	for _, v := range values {
		if v == nil {
			continue
		}
		count++
		seen[distinctKey(v)] = true
		x, ok := models.Number(v)
		if !ok {
			continue
		}
		switch agg {
		case spec.AggMin:
			if n == 0 || x < acc {
				acc = x
			}
		case spec.AggMax:
			if n == 0 || x > acc {
				acc = x
			}
		default:
			acc += x
		}
		n++
	}

	var v float64
	switch agg {
	case spec.AggCount:
		v = float64(count)
	case spec.AggCountDistinct:
		v = float64(len(seen))
	case spec.AggAvg:
		if n == 0 {
			return nil
		}
		v = acc / float64(n)
	case spec.AggSum, spec.AggMin, spec.AggMax:
		if n == 0 {
			return nil
		}
		v = acc
	default:
		return nil
	}
	return &v
}

func distinctKey(v interface{}) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	if x, ok := models.Number(v); ok {
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// PageRows returns page (1-based, clamped) of the result rows. Column order
// comes from the server response with labels from cfg; without server
// columns the persisted cfg columns are used, then the row keys.
func PageRows(cfg *PreviewTableConfig, res *models.QueryResult, page int) *TablePage {
	if cfg == nil {
		cfg = &PreviewTableConfig{}
	}
	size := cfg.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	labels := make(map[string]string, len(cfg.Columns))
	for _, c := range cfg.Columns {
		labels[c.Name] = c.Label
	}
	label := func(name string) string {
		if l := labels[name]; l != "" {
			return l
		}
		return name
	}

	var cols []TableColumn
	switch {
	case res != nil && len(res.Columns) > 0:
		for _, c := range res.Columns {
			cols = append(cols, TableColumn{Name: c.Name, Label: label(c.Name), Type: c.Type})
		}
	case len(cfg.Columns) > 0:
		for _, c := range cfg.Columns {
			cols = append(cols, TableColumn{Name: c.Name, Label: label(c.Name)})
		}
	default:
		for _, c := range resultColumns(res) {
			cols = append(cols, TableColumn{Name: c.Name, Label: label(c.Name), Type: c.Type})
		}
	}

	rows := resultRows(res)
	total := len(rows)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	out := &TablePage{
		Columns:    cols,
		Rows:       make([]map[string]interface{}, 0, end-start),
		Page:       page,
		PageSize:   size,
		TotalRows:  total,
		TotalPages: pages,
	}
	for _, r := range rows[start:end] {
		row := make(map[string]interface{}, len(cols))
		for _, c := range cols {
			row[c.Name] = r[c.Name]
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func resultRows(res *models.QueryResult) []map[string]interface{} {
	if res == nil {
		return nil
	}
	return res.Rows
}

func columnValues(res *models.QueryResult, name string) []interface{} {
	rows := resultRows(res)
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r[name]
	}
	return out
}

func number(v interface{}) *float64 {
	x, ok := models.Number(v)
	if !ok {
		return nil
	}
	return &x
}
