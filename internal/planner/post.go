// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// Row is one result row keyed by output alias.
type Row = map[string]interface{}

// Finalize shapes the warehouse rows of p and of its comparison sub-plans
// (keyed by comparison name) into the result rows, flagging anomalies when
// the plan asks for it.
func (p *ExecutionPlan) Finalize(base []Row, comparisons map[string][]Row) ([]Row, []models.Anomaly) {
	rows := p.shape(base)
	for _, c := range p.Comparisons {
		p.mergeComparison(rows, c, c.Plan.shape(comparisons[c.Name]))
	}
	rows = page(rows, p.PostLimit, p.PostOffset)

	var anomalies []models.Anomaly
	if p.AnomalyDetection {
		anomalies = detectAnomalies(rows, p)
	}
	return rows, anomalies
}

func (p *ExecutionPlan) shape(rows []Row) []Row {
	changed := false
	if p.TopN != nil {
		rows = p.collapseTopN(rows)
		changed = true
	}
	if p.GapFill == spec.GapFillZero && p.Range != nil && p.TimeAlias != "" {
		rows = p.fillGaps(rows)
		changed = true
	}
	if changed {
		p.sortRows(rows)
	}
	return rows
}

func page(rows []Row, limit, offset int) []Row {
	if offset > 0 {
		if offset >= len(rows) {
			return []Row{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// fillGaps adds a row for every missing (series, bucket) pair. Cumulative
// metrics carry the previous bucket's value forward; everything else is
// zero. Rows already present are left untouched.
func (p *ExecutionPlan) fillGaps(rows []Row) []Row {
	buckets, _ := enumerateBuckets(p.Range.From, p.Range.To, p.Bucket, 0)
	inRange := make(map[int64]bool, len(buckets))
	for _, b := range buckets {
		inRange[b.UnixNano()] = true
	}

	type series struct {
		sample   Row
		byBucket map[int64]Row
	}
	var order []string
	all := make(map[string]*series)
	var out []Row

	for _, r := range rows {
		t, ok := asTime(r[p.TimeAlias])
		if !ok || !inRange[truncate(t, p.Bucket).UnixNano()] {
			out = append(out, r)
			continue
		}
		k := keyOf(r, p.Keys)
		s, seen := all[k]
		if !seen {
			s = &series{sample: r, byBucket: make(map[int64]Row)}
			all[k] = s
			order = append(order, k)
		}
		s.byBucket[truncate(t, p.Bucket).UnixNano()] = r
	}
	if len(order) == 0 && len(p.Keys) == 0 {
		order = append(order, "")
		all[""] = &series{sample: Row{}, byBucket: map[int64]Row{}}
	}

	for _, k := range order {
		s := all[k]
		last := make(map[string]interface{}, len(p.Metrics))
		for _, b := range buckets {
			if r, ok := s.byBucket[b.UnixNano()]; ok {
				for _, m := range p.Metrics {
					last[m.Alias] = r[m.Alias]
				}
				out = append(out, r)
				continue
			}

			r := make(Row, len(p.Keys)+len(p.Metrics)+1)
			for _, key := range p.Keys {
				r[key] = s.sample[key]
			}
			r[p.TimeAlias] = b
			for _, m := range p.Metrics {
				if m.Window != nil && m.Window.Type == spec.WindowCumulative && last[m.Alias] != nil {
					r[m.Alias] = last[m.Alias]
					continue
				}
				r[m.Alias] = m.zero()
			}
			out = append(out, r)
		}
	}
	return out
}

func (m MetricPlan) zero() interface{} {
	if m.Aggregation == spec.AggCount || m.Aggregation == spec.AggCountDistinct {
		return int64(0)
	}
	return float64(0)
}

// collapseTopN keeps the Limit values of the ranked dimension with the
// highest total of the ranking metric. Ties rank by value text. With
// IncludeOthers the remaining rows fold into one Others row per remaining
// grouping key.
func (p *ExecutionPlan) collapseTopN(rows []Row) []Row {
	t := p.TopN
	totals := make(map[string]float64)
	var values []string
	for _, r := range rows {
		k := cellKey(r[t.Alias])
		if _, seen := totals[k]; !seen {
			values = append(values, k)
		}
		n, _ := models.Number(r[t.RankBy])
		totals[k] += n
	}
	sort.SliceStable(values, func(i, j int) bool {
		if totals[values[i]] != totals[values[j]] {
			return totals[values[i]] > totals[values[j]]
		}
		return values[i] < values[j]
	})

	keep := make(map[string]bool, t.Limit)
	for i := 0; i < len(values) && i < t.Limit; i++ {
		keep[values[i]] = true
	}

	var restKeys []string
	for _, g := range p.GroupBy {
		if g != t.Alias {
			restKeys = append(restKeys, g)
		}
	}

	kept := make([]Row, 0, len(rows))
	var order []string
	groups := make(map[string][]Row)
	for _, r := range rows {
		if keep[cellKey(r[t.Alias])] {
			kept = append(kept, r)
			continue
		}
		if !t.IncludeOthers {
			continue
		}
		k := keyOf(r, restKeys)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	for _, k := range order {
		members := groups[k]
		others := make(Row, len(restKeys)+len(p.Metrics)+1)
		for _, key := range restKeys {
			others[key] = members[0][key]
		}
		others[t.Alias] = OthersLabel
		for _, m := range p.Metrics {
			others[m.Alias] = m.collapse(members)
		}
		kept = append(kept, others)
	}
	return kept
}

// collapse folds one metric over rows. Sums and counts add up, min and max
// keep their extreme; averages, distinct counts, windows and derived
// aggregates cannot be rebuilt from group values and collapse to nil.
func (m MetricPlan) collapse(rows []Row) interface{} {
	if m.Window != nil {
		return nil
	}
	var (
		acc     float64
		found   bool
		integer = true
	)
	for _, r := range rows {
		n, ok := models.Number(r[m.Alias])
		if !ok {
			continue
		}
		if !isInteger(r[m.Alias]) {
			integer = false
		}
		switch m.Aggregation {
		case spec.AggSum, spec.AggCount:
			acc += n
		case spec.AggMin:
			if !found || n < acc {
				acc = n
			}
		case spec.AggMax:
			if !found || n > acc {
				acc = n
			}
		default:
			return nil
		}
		found = true
	}
	if !found {
		return nil
	}
	if integer {
		return int64(acc)
	}
	return acc
}

func isInteger(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func (p *ExecutionPlan) mergeComparison(rows []Row, c ComparisonPlan, cmp []Row) {
	index := make(map[string]Row, len(cmp))
	for _, r := range cmp {
		k := c.Plan.alignKey(r)
		if _, dup := index[k]; !dup {
			index[k] = r
		}
	}
	for _, r := range rows {
		match := index[p.alignKey(r)]
		for _, m := range p.Metrics {
			var v interface{}
			if match != nil {
				v = match[m.Alias]
			}
			r[ComparisonAlias(m.Alias, c.Name)] = v
		}
	}
}

// alignKey pairs rows across windows: same grouping keys and same bucket
// position counted from the start of the window.
func (p *ExecutionPlan) alignKey(r Row) string {
	k := keyOf(r, p.Keys)
	if p.TimeAlias == "" || p.Range == nil {
		return k
	}
	t, ok := asTime(r[p.TimeAlias])
	if !ok {
		return k
	}
	start := truncate(p.Range.From, p.Bucket)
	return k + "\x00#" + strconv.Itoa(bucketOrdinal(start, truncate(t, p.Bucket), p.Bucket))
}

func keyOf(r Row, aliases []string) string {
	var sb strings.Builder
	for _, a := range aliases {
		sb.WriteString(cellKey(r[a]))
		sb.WriteByte(0)
	}
	return sb.String()
}

func cellKey(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "\x01null"
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	if n, ok := models.Number(v); ok {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// sortRows restores the plan's ordering after post-processing. Others rows
// go last, within their time bucket when time leads the ordering.
func (p *ExecutionPlan) sortRows(rows []Row) {
	keys := p.OrderBy
	lead := 0
	if p.TimeAlias != "" && len(keys) > 0 && keys[0].Alias == p.TimeAlias {
		lead = 1
	}
	isOthers := func(r Row) bool {
		return p.TopN != nil && p.TopN.IncludeOthers && r[p.TopN.Alias] == OthersLabel
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		for _, k := range keys[:lead] {
			if c := compareValues(a[k.Alias], b[k.Alias]); c != 0 {
				return (c < 0) != k.Desc
			}
		}
		if oa, ob := isOthers(a), isOthers(b); oa != ob {
			return ob
		}
		for _, k := range keys[lead:] {
			if c := compareValues(a[k.Alias], b[k.Alias]); c != 0 {
				return (c < 0) != k.Desc
			}
		}
		return false
	})
}

// compareValues orders nil first, then numbers, times, booleans and text.
func compareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := models.Number(a); ok {
		if y, ok := models.Number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
