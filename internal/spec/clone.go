// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package spec

// Clone returns a deep copy of q. Filter values are shared; they are treated
// as immutable once decoded.
func (q *QuerySpec) Clone() *QuerySpec {
	if q == nil {
		return nil
	}
	c := *q
	c.Models = append([]string(nil), q.Models...)
	c.Select = append([]SelectField(nil), q.Select...)
	c.Filters = append([]Filter(nil), q.Filters...)
	c.Joins = append([]Join(nil), q.Joins...)
	c.DerivedFields = append([]DerivedFieldRef(nil), q.DerivedFields...)
	c.OrderBy = append([]OrderBy(nil), q.OrderBy...)

	if q.Metrics != nil {
		c.Metrics = make([]Metric, len(q.Metrics))
		for i, m := range q.Metrics {
			if m.Window != nil {
				w := *m.Window
				m.Window = &w
			}
			c.Metrics[i] = m
		}
	}
	if q.Dimensions != nil {
		c.Dimensions = make([]Dimension, len(q.Dimensions))
		for i, d := range q.Dimensions {
			if d.TopN != nil {
				t := *d.TopN
				d.TopN = &t
			}
			c.Dimensions[i] = d
		}
	}
	if q.Comparisons != nil {
		c.Comparisons = make([]Comparison, len(q.Comparisons))
		for i, cmp := range q.Comparisons {
			if cmp.Range != nil {
				r := *cmp.Range
				cmp.Range = &r
			}
			c.Comparisons[i] = cmp
		}
	}
	if q.Time != nil {
		t := *q.Time
		if t.Range != nil {
			r := *t.Range
			t.Range = &r
		}
		c.Time = &t
	}
	return &c
}
