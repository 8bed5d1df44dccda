// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package spec

import (
	"time"
)

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseInstant parses the date formats accepted in filter values and custom
// ranges. Layouts without an offset are read as UTC.
func ParseInstant(s string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatInstant renders t the way WithDateRange stores range bounds.
func FormatInstant(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// WithDateRange returns a copy of q restricted to [from, to] on field. The
// range is written into time.range when a time axis exists, and a between
// filter on field replaces every prior row-level filter on that exact field.
// The replacement keeps the position of the first filter it replaces.
func WithDateRange(q *QuerySpec, field FieldRef, from, to time.Time) *QuerySpec {
	c := q.Clone()
	if c.Time != nil {
		c.Time.Range = &TimeRange{From: from, To: to}
	}
	if field.ModelID == "" || field.FieldID == "" {
		return c
	}

	between := Filter{
		ModelID:  field.ModelID,
		FieldID:  field.FieldID,
		Operator: OpBetween,
		Value:    RangeValue{From: FormatInstant(from), To: FormatInstant(to)},
		JoinWith: "and",
	}

	filters := make([]Filter, 0, len(c.Filters)+1)
	placed := false
	for _, f := range c.Filters {
		if !f.IsAggregate() && f.Ref() == field {
			if !placed {
				filters = append(filters, between)
				placed = true
			}
			continue
		}
		filters = append(filters, f)
	}
	if !placed {
		filters = append(filters, between)
	}
	c.Filters = filters
	return c
}

// ExtractFilterRange reads back the between filter on field.
func ExtractFilterRange(q *QuerySpec, field FieldRef) (from, to time.Time, ok bool) {
	for _, f := range q.Filters {
		if f.IsAggregate() || f.Operator != OpBetween || f.Ref() != field {
			continue
		}
		rawFrom, rawTo, isRange := AsRange(f.Value)
		if !isRange {
			return time.Time{}, time.Time{}, false
		}
		from, okFrom := toInstant(rawFrom)
		to, okTo := toInstant(rawTo)
		if !okFrom || !okTo {
			return time.Time{}, time.Time{}, false
		}
		return from, to, true
	}
	return time.Time{}, time.Time{}, false
}

func toInstant(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return ParseInstant(t)
	default:
		return time.Time{}, false
	}
}
