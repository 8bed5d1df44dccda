// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package planner turns a validated QuerySpec and its resolved derived fields
// into an ExecutionPlan: one parameterized SQL statement plus the
// post-processing steps (gap fill, top-N collapse, comparison merge, paging,
// anomaly flags) applied to the rows it returns.
package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/innkeeper/internal/catalog"
	"github.com/tomtom215/innkeeper/internal/derived"
	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/period"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// OthersLabel is the dimension value of collapsed top-N remainders.
const OthersLabel = "Others"

// DefaultMaxBuckets bounds gap-fill enumeration.
const DefaultMaxBuckets = 100_000

// Schema resolves catalog references.
type Schema interface {
	Model(id string) (*catalog.Model, bool)
	Field(modelID, fieldID string) (catalog.Field, bool)
}

// Config tunes plan generation.
type Config struct {
	MaxBuckets int
	// Location is the calendar comparison windows are shifted in.
	Location *time.Location
}

// Planner builds execution plans against a schema.
type Planner struct {
	schema     Schema
	maxBuckets int
	loc        *time.Location
}

// New creates a Planner.
func New(schema Schema, cfg Config) *Planner {
	if cfg.MaxBuckets <= 0 {
		cfg.MaxBuckets = DefaultMaxBuckets
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Planner{schema: schema, maxBuckets: cfg.MaxBuckets, loc: cfg.Location}
}

// Cost is the input of the scheduler's expensive-plan heuristic.
type Cost struct {
	RowEstimate   int64 `json:"rowEstimate"`
	Joins         int   `json:"joins"`
	WindowMetrics int   `json:"windowMetrics"`
}

// MetricPlan describes one aggregated output column.
type MetricPlan struct {
	Alias string
	// Aggregation is empty for aggregate derived fields.
	Aggregation string
	Window      *spec.Window
}

// TopNPlan keeps the Limit highest ranked values of Alias by RankBy.
type TopNPlan struct {
	Alias         string
	Limit         int
	IncludeOthers bool
	RankBy        string
}

// SortKey orders result rows by an output alias.
type SortKey struct {
	Alias string
	Desc  bool
}

// ComparisonPlan is a sub-plan evaluated over a comparison window.
type ComparisonPlan struct {
	Name  string
	Mode  string
	Range spec.TimeRange
	Plan  *ExecutionPlan
}

// ExecutionPlan is everything needed to run a query and shape its rows.
type ExecutionPlan struct {
	Hash    string
	SQL     string
	Args    []interface{}
	Columns []models.Column

	JoinOrder []string
	GroupBy   []string
	// Keys are the grouping aliases other than the time bucket.
	Keys      []string
	TimeAlias string
	Bucket    string
	Range     *spec.TimeRange
	GapFill   string
	Metrics   []MetricPlan
	TopN      *TopNPlan
	OrderBy   []SortKey

	PostLimit  int
	PostOffset int

	Comparisons []ComparisonPlan
	Cost        Cost
	Explain     []string
	// ShowExplain asks for Explain in the result metadata.
	ShowExplain      bool
	AnomalyDetection bool
}

type item struct {
	alias string
	sql   string
	typ   string
	group bool
}

type builder struct {
	p    *Planner
	q    *spec.QuerySpec
	defs map[string]*derived.Definition
	plan *ExecutionPlan

	items    []item
	metrics  map[string]item
	timeExpr string
	args     []interface{}
}

// Plan builds the execution plan for q. defs must hold every derived field
// q references, already fresh against q's join graph.
func (p *Planner) Plan(q *spec.QuerySpec, defs map[string]*derived.Definition) (*ExecutionPlan, error) {
	plan, err := p.build(q, defs)
	if err != nil {
		return nil, err
	}

	if len(q.Comparisons) > 0 {
		if q.Time == nil || q.Time.Range == nil {
			return nil, planErrorf("comparisons need time.range")
		}
		base := period.Range{From: q.Time.Range.From.In(p.loc), To: q.Time.Range.To.In(p.loc)}
		for _, c := range q.Comparisons {
			r, ok := period.ResolveComparison(c.Mode, base, c.Range, p.loc)
			if !ok {
				return nil, planErrorf("comparison %q has no valid range", c.Name())
			}

			sub := q.Clone()
			sub.Comparisons = nil
			sub.Limit, sub.Offset = 0, 0
			sub.Options.AnomalyDetection = false
			sub = period.Apply(sub, q.Time.Ref(), r)

			subPlan, err := p.build(sub, defs)
			if err != nil {
				return nil, err
			}
			name := c.Name()
			plan.Comparisons = append(plan.Comparisons, ComparisonPlan{
				Name:  name,
				Mode:  c.Mode,
				Range: spec.TimeRange{From: r.From, To: r.To},
				Plan:  subPlan,
			})
			for _, m := range plan.Metrics {
				plan.Columns = append(plan.Columns, models.Column{Name: ComparisonAlias(m.Alias, name), Type: "number"})
			}
			plan.Explain = append(plan.Explain, fmt.Sprintf("compare %s: [%s, %s]", name,
				spec.FormatInstant(r.From), spec.FormatInstant(r.To)))
		}
	}

	plan.Hash = hashPlan(plan)
	return plan, nil
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// ComparisonAlias names the column holding metric's value in a comparison
// window.
func ComparisonAlias(metric, comparison string) string {
	return metric + "_" + strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(comparison), "_"), "_")
}

func (p *Planner) build(q *spec.QuerySpec, defs map[string]*derived.Definition) (*ExecutionPlan, error) {
	b := &builder{
		p:       p,
		q:       q,
		defs:    defs,
		plan:    &ExecutionPlan{AnomalyDetection: q.Options.AnomalyDetection, ShowExplain: q.Options.Explain},
		metrics: make(map[string]item),
	}

	from, err := b.from()
	if err != nil {
		return nil, err
	}
	if err := b.projections(); err != nil {
		return nil, err
	}
	if err := b.post(); err != nil {
		return nil, err
	}
	where, err := b.where()
	if err != nil {
		return nil, err
	}
	having, err := b.having()
	if err != nil {
		return nil, err
	}
	if err := b.orderBy(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	cols := make([]string, len(b.items))
	for i, it := range b.items {
		cols[i] = it.sql + " AS " + quote(it.alias)
	}
	sb.WriteString("SELECT " + strings.Join(cols, ", "))
	sb.WriteString(from)
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}
	if len(b.plan.GroupBy) > 0 {
		groups := make([]string, 0, len(b.items))
		for _, it := range b.items {
			if it.group {
				groups = append(groups, it.sql)
			}
		}
		sb.WriteString(" GROUP BY " + strings.Join(groups, ", "))
	}
	if having != "" {
		sb.WriteString(" HAVING " + having)
	}
	if len(b.plan.OrderBy) > 0 {
		keys := make([]string, len(b.plan.OrderBy))
		for i, k := range b.plan.OrderBy {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			keys[i] = quote(k.Alias) + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(keys, ", "))
	}

	needsPost := b.plan.TopN != nil || b.plan.GapFill == spec.GapFillZero
	if needsPost {
		b.plan.PostLimit, b.plan.PostOffset = q.Limit, q.Offset
	} else {
		if q.Limit > 0 {
			sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
		}
		if q.Offset > 0 {
			sb.WriteString(fmt.Sprintf(" OFFSET %d", q.Offset))
		}
	}

	b.plan.SQL = sb.String()
	b.plan.Args = b.args
	b.explain(where, having)
	return b.plan, nil
}

// from orders joins breadth first from the anchor model. A join reached
// from its right side has left and right join types swapped.
func (b *builder) from() (string, error) {
	anchor := b.q.Anchor()
	model, ok := b.p.schema.Model(anchor)
	if !ok {
		return "", planErrorf("unknown model %s", anchor)
	}

	joins := append([]spec.Join(nil), b.q.Joins...)
	sort.Slice(joins, func(i, k int) bool { return joins[i].ID < joins[k].ID })

	var sb strings.Builder
	sb.WriteString(" FROM " + quote(model.Table) + " AS " + quote(anchor))
	b.plan.Cost.RowEstimate = model.RowEstimate

	visited := map[string]bool{anchor: true}
	queue := []string{anchor}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, j := range joins {
			if j.LeftModel != cur && j.RightModel != cur {
				continue
			}
			next := j.Other(cur)
			if visited[next] {
				continue
			}
			m, ok := b.p.schema.Model(next)
			if !ok {
				return "", planErrorf("unknown model %s", next)
			}

			curField, nextField, typ := j.LeftField, j.RightField, j.Type()
			if j.LeftModel != cur {
				curField, nextField = j.RightField, j.LeftField
				typ = flipJoin(typ)
			}
			curCol, err := b.column(cur, curField)
			if err != nil {
				return "", err
			}
			nextCol, err := b.column(next, nextField)
			if err != nil {
				return "", err
			}

			sb.WriteString(" " + joinKeyword(typ) + " " + quote(m.Table) + " AS " + quote(next) +
				" ON " + curCol + " = " + nextCol)
			b.plan.JoinOrder = append(b.plan.JoinOrder, j.ID)
			b.plan.Cost.RowEstimate += m.RowEstimate
			visited[next] = true
			queue = append(queue, next)
		}
	}

	for _, id := range b.q.Models {
		if !visited[id] {
			return "", planErrorf("model %s is not reachable from %s", id, anchor)
		}
	}
	b.plan.Cost.Joins = len(b.plan.JoinOrder)
	return sb.String(), nil
}

func flipJoin(typ string) string {
	switch typ {
	case "left":
		return "right"
	case "right":
		return "left"
	}
	return typ
}

func joinKeyword(typ string) string {
	switch typ {
	case "left":
		return "LEFT JOIN"
	case "right":
		return "RIGHT JOIN"
	case "full":
		return "FULL OUTER JOIN"
	}
	return "INNER JOIN"
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (b *builder) column(modelID, fieldID string) (string, error) {
	f, ok := b.p.schema.Field(modelID, fieldID)
	if !ok {
		return "", planErrorf("unknown field %s.%s", modelID, fieldID)
	}
	return quote(modelID) + "." + quote(f.Column), nil
}

func (b *builder) fieldType(modelID, fieldID string) catalog.FieldType {
	f, _ := b.p.schema.Field(modelID, fieldID)
	return f.Type
}

func bucketSQL(bucket, col string) string {
	return "date_trunc('" + bucket + "', " + col + ")"
}

func (b *builder) projections() error {
	q := b.q

	if q.Time != nil && q.Time.Bucket != "" {
		col, err := b.column(q.Time.ModelID, q.Time.Field)
		if err != nil {
			return err
		}
		b.timeExpr = bucketSQL(q.Time.Bucket, col)
		b.plan.TimeAlias = q.Time.OutputAlias()
		b.plan.Bucket = q.Time.Bucket
		b.items = append(b.items, item{alias: b.plan.TimeAlias, sql: b.timeExpr, typ: string(catalog.TypeTimestamp), group: true})
	}
	if q.Time != nil {
		b.plan.Range = q.Time.Range
	}

	topN := 0
	for _, d := range q.Dimensions {
		col, err := b.column(d.ModelID, d.FieldID)
		if err != nil {
			return err
		}
		it := item{alias: d.OutputAlias(), sql: col, typ: string(b.fieldType(d.ModelID, d.FieldID)), group: true}
		if d.Bucket != "" {
			it.sql = bucketSQL(d.Bucket, col)
			it.typ = string(catalog.TypeTimestamp)
			if b.timeExpr == "" {
				b.timeExpr = it.sql
				b.plan.TimeAlias = it.alias
				b.plan.Bucket = d.Bucket
			}
		}
		if d.TopN != nil {
			topN++
			if d.Bucket != "" {
				return planErrorf("topN cannot rank time bucket %s", it.alias)
			}
			b.plan.TopN = &TopNPlan{Alias: it.alias, Limit: d.TopN.Limit, IncludeOthers: d.TopN.IncludeOthers}
		}
		b.items = append(b.items, it)
	}
	if topN > 1 {
		return planErrorf("at most one dimension may set topN")
	}

	for _, ref := range q.DerivedFields {
		def, ok := b.defs[ref.ID]
		if !ok {
			return planErrorf("derived field %s was not resolved", ref.ID)
		}
		sql, err := derived.Render(def.Expression, b.column)
		if err != nil {
			return planErrorf("derived field %s: %v", ref.ID, err)
		}
		role := ref.Role
		if role == "" {
			role = "dimension"
			if def.Kind == derived.KindAggregate {
				role = "metric"
			}
		}
		switch {
		case role == "metric" && def.Kind == derived.KindAggregate:
			it := item{alias: ref.OutputAlias(), sql: sql, typ: "number"}
			b.items = append(b.items, it)
			b.metrics[it.alias] = it
			b.plan.Metrics = append(b.plan.Metrics, MetricPlan{Alias: it.alias})
		case role == "metric":
			return planErrorf("row derived field %s cannot be used as a metric", ref.ID)
		case def.Kind == derived.KindAggregate:
			return planErrorf("aggregate derived field %s cannot be used as a %s", ref.ID, role)
		default:
			b.items = append(b.items, item{alias: ref.OutputAlias(), sql: sql, typ: b.exprType(def.Expression), group: role == "dimension"})
		}
	}

	for _, s := range q.Select {
		col, err := b.column(s.ModelID, s.FieldID)
		if err != nil {
			return err
		}
		b.items = append(b.items, item{alias: s.OutputAlias(), sql: col, typ: string(b.fieldType(s.ModelID, s.FieldID))})
	}

	for _, m := range q.Metrics {
		col, err := b.column(m.ModelID, m.FieldID)
		if err != nil {
			return err
		}
		sql := aggregateSQL(m.Aggregation, col)
		if m.Window != nil {
			if b.timeExpr == "" {
				return planErrorf("metric %s has a window but the query has no time bucket", m.OutputAlias())
			}
			sql, err = b.windowSQL(m, sql)
			if err != nil {
				return err
			}
			b.plan.Cost.WindowMetrics++
		}
		it := item{alias: m.OutputAlias(), sql: sql, typ: "number"}
		b.items = append(b.items, it)
		b.plan.Metrics = append(b.plan.Metrics, MetricPlan{Alias: it.alias, Aggregation: m.Aggregation, Window: m.Window})
		if m.Window == nil {
			b.metrics[it.alias] = it
		} else {
			b.metrics[it.alias] = item{alias: it.alias}
		}
	}

	aggregating := len(b.plan.Metrics) > 0
	for _, it := range b.items {
		if it.group {
			aggregating = true
		}
	}
	if aggregating {
		// Raw select columns become grouping keys once anything aggregates.
		for i := range b.items {
			if _, isMetric := b.metrics[b.items[i].alias]; isMetric {
				continue
			}
			b.items[i].group = true
		}
	}

	columns := make([]models.Column, len(b.items))
	for i, it := range b.items {
		columns[i] = models.Column{Name: it.alias, Type: it.typ}
		if it.group {
			b.plan.GroupBy = append(b.plan.GroupBy, it.alias)
			if it.alias != b.plan.TimeAlias {
				b.plan.Keys = append(b.plan.Keys, it.alias)
			}
		}
	}
	b.plan.Columns = columns
	return nil
}

func aggregateSQL(agg, col string) string {
	switch agg {
	case spec.AggCountDistinct:
		return "COUNT(DISTINCT " + col + ")"
	case spec.AggCount:
		return "COUNT(" + col + ")"
	default:
		return strings.ToUpper(agg) + "(" + col + ")"
	}
}

// windowSQL wraps an aggregate in a window over the time bucket, partitioned
// by every other grouping expression.
func (b *builder) windowSQL(m spec.Metric, inner string) (string, error) {
	outer := "SUM"
	switch m.Aggregation {
	case spec.AggAvg, spec.AggMin, spec.AggMax:
		outer = strings.ToUpper(m.Aggregation)
	}

	var frame string
	switch m.Window.Type {
	case spec.WindowCumulative:
		frame = "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"
	case spec.WindowRolling:
		if m.Window.Frame < 1 {
			return "", planErrorf("rolling window of %s needs a frame of at least 1", m.OutputAlias())
		}
		frame = fmt.Sprintf("ROWS BETWEEN %d PRECEDING AND CURRENT ROW", m.Window.Frame-1)
	default:
		return "", planErrorf("unknown window type %q", m.Window.Type)
	}

	var partition []string
	for _, it := range b.items {
		if _, isMetric := b.metrics[it.alias]; isMetric || it.sql == b.timeExpr {
			continue
		}
		partition = append(partition, it.sql)
	}
	over := "ORDER BY " + b.timeExpr + " " + frame
	if len(partition) > 0 {
		over = "PARTITION BY " + strings.Join(partition, ", ") + " " + over
	}
	return outer + "(" + inner + ") OVER (" + over + ")", nil
}

func (b *builder) exprType(e *derived.Expr) string {
	switch e.Type {
	case derived.NodeColumn:
		return string(b.fieldType(e.ModelID, e.FieldID))
	case derived.NodeLiteral:
		switch e.Value.(type) {
		case string:
			return string(catalog.TypeString)
		case bool:
			return string(catalog.TypeBoolean)
		}
		return string(catalog.TypeNumber)
	case derived.NodeBinary:
		switch strings.ToLower(e.Op) {
		case "+", "-", "*", "/", "%":
			return string(catalog.TypeNumber)
		}
		return string(catalog.TypeBoolean)
	case derived.NodeUnary:
		if strings.EqualFold(e.Op, "not") {
			return string(catalog.TypeBoolean)
		}
		return string(catalog.TypeNumber)
	case derived.NodeFunction:
		switch strings.ToLower(e.Name) {
		case "lower", "upper":
			return string(catalog.TypeString)
		case "date_trunc":
			return string(catalog.TypeTimestamp)
		case "coalesce", "nullif", "greatest", "least":
			if len(e.Args) > 0 {
				return b.exprType(e.Args[0])
			}
		}
		return string(catalog.TypeNumber)
	}
	return string(catalog.TypeString)
}

func (b *builder) post() error {
	q := b.q
	if q.Time != nil {
		b.plan.GapFill = q.Time.GapFill
	}
	if b.plan.GapFill == spec.GapFillZero {
		if q.Time.Bucket == "" || q.Time.Range == nil {
			return planErrorf("gapFill zero needs time.bucket and time.range")
		}
		if n := countBuckets(q.Time.Range.From, q.Time.Range.To, q.Time.Bucket); n > b.p.maxBuckets {
			return planErrorf("gap fill would produce %d %s buckets, limit is %d", n, q.Time.Bucket, b.p.maxBuckets)
		}
	}
	if b.plan.TopN != nil {
		if len(b.plan.Metrics) == 0 {
			return planErrorf("topN on %s needs a metric to rank by", b.plan.TopN.Alias)
		}
		b.plan.TopN.RankBy = b.plan.Metrics[0].Alias
	}
	return nil
}

// where combines the time range with every row-level filter. Filters chain
// left to right; each joinWith binds the filter to everything before it.
func (b *builder) where() (string, error) {
	var rangeCond string
	if r := b.plan.Range; r != nil {
		col, err := b.column(b.q.Time.ModelID, b.q.Time.Field)
		if err != nil {
			return "", err
		}
		rangeCond = col + " >= ? AND " + col + " <= ?"
		b.args = append(b.args, r.From, r.To)
	}

	var expr string
	for _, f := range b.q.Filters {
		var target string
		var typ catalog.FieldType
		switch {
		case f.MetricAlias != "":
			continue
		case f.DerivedFieldID != "":
			def, ok := b.defs[f.DerivedFieldID]
			if !ok {
				return "", planErrorf("derived field %s was not resolved", f.DerivedFieldID)
			}
			if def.Kind == derived.KindAggregate {
				continue
			}
			sql, err := derived.Render(def.Expression, b.column)
			if err != nil {
				return "", planErrorf("derived field %s: %v", def.ID, err)
			}
			target = sql
		default:
			col, err := b.column(f.ModelID, f.FieldID)
			if err != nil {
				return "", err
			}
			target, typ = col, b.fieldType(f.ModelID, f.FieldID)
		}

		cond, args, err := condition(target, f, typ)
		if err != nil {
			return "", err
		}
		b.args = append(b.args, args...)
		expr = chain(expr, cond, f.Conjunction())
	}

	switch {
	case rangeCond == "":
		return expr, nil
	case expr == "":
		return rangeCond, nil
	default:
		return rangeCond + " AND " + expr, nil
	}
}

func (b *builder) having() (string, error) {
	var expr string
	for _, f := range b.q.Filters {
		var target string
		switch {
		case f.MetricAlias != "":
			it, ok := b.metrics[f.MetricAlias]
			if !ok {
				return "", planErrorf("filter references unknown metric %s", f.MetricAlias)
			}
			if it.sql == "" {
				return "", planErrorf("cannot filter on windowed metric %s", f.MetricAlias)
			}
			target = it.sql
		case f.DerivedFieldID != "":
			def := b.defs[f.DerivedFieldID]
			if def == nil || def.Kind != derived.KindAggregate {
				continue
			}
			sql, err := derived.Render(def.Expression, b.column)
			if err != nil {
				return "", planErrorf("derived field %s: %v", def.ID, err)
			}
			target = sql
		default:
			continue
		}

		cond, args, err := condition(target, f, catalog.TypeNumber)
		if err != nil {
			return "", err
		}
		b.args = append(b.args, args...)
		expr = chain(expr, cond, f.Conjunction())
	}
	if expr != "" && len(b.plan.GroupBy) == 0 && len(b.plan.Metrics) == 0 {
		return "", planErrorf("aggregate filters need an aggregating query")
	}
	return expr, nil
}

func chain(acc, cond, conj string) string {
	if acc == "" {
		return cond
	}
	return "(" + acc + " " + strings.ToUpper(conj) + " " + cond + ")"
}

func (b *builder) orderBy() error {
	known := make(map[string]bool, len(b.items))
	for _, it := range b.items {
		known[it.alias] = true
	}

	if len(b.q.OrderBy) > 0 {
		for _, o := range b.q.OrderBy {
			if !known[o.Field] {
				return planErrorf("orderBy references unknown column %s", o.Field)
			}
			b.plan.OrderBy = append(b.plan.OrderBy, SortKey{Alias: o.Field, Desc: strings.EqualFold(o.Direction, "desc")})
		}
		return nil
	}

	switch {
	case b.plan.TimeAlias != "":
		b.plan.OrderBy = append(b.plan.OrderBy, SortKey{Alias: b.plan.TimeAlias})
		for _, k := range b.plan.Keys {
			b.plan.OrderBy = append(b.plan.OrderBy, SortKey{Alias: k})
		}
	case len(b.plan.Metrics) > 0:
		b.plan.OrderBy = append(b.plan.OrderBy, SortKey{Alias: b.plan.Metrics[0].Alias, Desc: true})
		for _, k := range b.plan.Keys {
			b.plan.OrderBy = append(b.plan.OrderBy, SortKey{Alias: k})
		}
	}
	return nil
}

func (b *builder) explain(where, having string) {
	e := []string{"from " + b.q.Anchor()}
	for _, id := range b.plan.JoinOrder {
		for _, j := range b.q.Joins {
			if j.ID == id {
				e = append(e, fmt.Sprintf("join %s.%s = %s.%s (%s, via %s)",
					j.LeftModel, j.LeftField, j.RightModel, j.RightField, j.Type(), j.ID))
			}
		}
	}
	if where != "" {
		e = append(e, "where "+where)
	}
	if len(b.plan.GroupBy) > 0 {
		e = append(e, "group by "+strings.Join(b.plan.GroupBy, ", "))
	}
	for _, m := range b.plan.Metrics {
		switch {
		case m.Aggregation == "":
			e = append(e, "metric "+m.Alias+" (derived)")
		case m.Window != nil:
			e = append(e, fmt.Sprintf("metric %s = %s (%s window %d)", m.Alias, m.Aggregation, m.Window.Type, m.Window.Frame))
		default:
			e = append(e, "metric "+m.Alias+" = "+m.Aggregation)
		}
	}
	if having != "" {
		e = append(e, "having "+having)
	}
	if len(b.plan.OrderBy) > 0 {
		keys := make([]string, len(b.plan.OrderBy))
		for i, k := range b.plan.OrderBy {
			keys[i] = k.Alias
			if k.Desc {
				keys[i] += " desc"
			}
		}
		e = append(e, "order by "+strings.Join(keys, ", "))
	}
	if b.plan.GapFill == spec.GapFillZero {
		e = append(e, "post: zero-fill "+b.plan.Bucket+" buckets")
	}
	if t := b.plan.TopN; t != nil {
		s := fmt.Sprintf("post: top %d %s by %s", t.Limit, t.Alias, t.RankBy)
		if t.IncludeOthers {
			s += " with " + OthersLabel
		}
		e = append(e, s)
	}
	if b.plan.PostLimit > 0 || b.plan.PostOffset > 0 {
		e = append(e, fmt.Sprintf("post: limit %d offset %d", b.plan.PostLimit, b.plan.PostOffset))
	}
	b.plan.Explain = e
}

func hashPlan(p *ExecutionPlan) string {
	type comparison struct {
		Name string `json:"name"`
		Hash string `json:"hash"`
	}
	payload := struct {
		SQL         string          `json:"sql"`
		Args        []interface{}   `json:"args"`
		GapFill     string          `json:"gapFill"`
		Range       *spec.TimeRange `json:"range"`
		TopN        *TopNPlan       `json:"topN"`
		Limit       int             `json:"limit"`
		Offset      int             `json:"offset"`
		Anomalies   bool            `json:"anomalies"`
		Explain     bool            `json:"explain"`
		Comparisons []comparison    `json:"comparisons"`
	}{
		SQL:       p.SQL,
		Args:      p.Args,
		GapFill:   p.GapFill,
		Range:     p.Range,
		TopN:      p.TopN,
		Limit:     p.PostLimit,
		Offset:    p.PostOffset,
		Anomalies: p.AnomalyDetection,
		Explain:   p.ShowExplain,
	}
	for _, c := range p.Comparisons {
		payload.Comparisons = append(payload.Comparisons, comparison{Name: c.Name, Hash: hashPlan(c.Plan)})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(p.SQL)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
