// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package period turns abstract time selections into concrete inclusive
// ranges and derives comparison windows from them.
//
// Every resolved range is [startOfDay(from), endOfDay(to)] at millisecond
// precision in the caller's time zone. Preset resolution is a pure function
// of "now".
package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/innkeeper/internal/spec"
)

// Presets.
const (
	Today       = "today"
	Yesterday   = "yesterday"
	ThisWeek    = "this_week"
	LastWeek    = "last_week"
	ThisMonth   = "this_month"
	LastMonth   = "last_month"
	ThisQuarter = "this_quarter"
	LastQuarter = "last_quarter"
	ThisYear    = "this_year"
	Last7Days   = "last_7_days"
	Last30Days  = "last_30_days"
	Last30Month = "last_30_months"
	AllTime     = "all_time"
	Custom      = "custom"
)

// Comparison modes.
const (
	ComparePrevious = "previous"
	CompareWoW      = "wow"
	CompareMoM      = "mom"
	CompareYoY      = "yoy"
	CompareCustom   = "custom"
)

// ErrUnknownPreset is returned for preset names outside the closed set.
var ErrUnknownPreset = errors.New("unknown period preset")

// Range is an inclusive instant range.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Duration returns the inclusive length of the range.
func (r Range) Duration() time.Duration {
	return r.To.Sub(r.From) + time.Millisecond
}

// Selection is a preset or a custom range as stored on a dashboard.
type Selection struct {
	Preset string            `json:"preset" validate:"required,oneof=today yesterday this_week last_week this_month last_month this_quarter last_quarter this_year last_7_days last_30_days last_30_months all_time custom"`
	Custom *spec.CustomRange `json:"custom,omitempty"`
}

// Resolve resolves a selection relative to now in loc.
func Resolve(sel Selection, now time.Time, loc *time.Location) (Range, error) {
	if sel.Preset == Custom {
		if sel.Custom == nil {
			return Range{}, fmt.Errorf("custom period requires a range")
		}
		return ResolveCustom(*sel.Custom, loc)
	}
	return ResolvePreset(sel.Preset, now, loc)
}

// ResolvePreset resolves a named preset.
func ResolvePreset(preset string, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := startOfDay(now)

	switch preset {
	case Today:
		return days(today, today), nil
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return days(y, y), nil
	case ThisWeek:
		w := startOfISOWeek(today)
		return days(w, w.AddDate(0, 0, 6)), nil
	case LastWeek:
		w := startOfISOWeek(today).AddDate(0, 0, -7)
		return days(w, w.AddDate(0, 0, 6)), nil
	case ThisMonth:
		m := startOfMonth(today)
		return days(m, m.AddDate(0, 1, -1)), nil
	case LastMonth:
		m := startOfMonth(today).AddDate(0, -1, 0)
		return days(m, m.AddDate(0, 1, -1)), nil
	case ThisQuarter:
		q := startOfQuarter(today)
		return days(q, q.AddDate(0, 3, -1)), nil
	case LastQuarter:
		q := startOfQuarter(today).AddDate(0, -3, 0)
		return days(q, q.AddDate(0, 3, -1)), nil
	case ThisYear:
		y := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return days(y, y.AddDate(1, 0, -1)), nil
	case Last7Days:
		return days(today.AddDate(0, 0, -6), today), nil
	case Last30Days:
		return days(today.AddDate(0, 0, -29), today), nil
	case Last30Month:
		return days(startOfMonth(today).AddDate(0, -29, 0), today), nil
	case AllTime:
		return days(time.Date(1970, time.January, 1, 0, 0, 0, 0, loc), time.Date(2100, time.December, 31, 0, 0, 0, 0, loc)), nil
	default:
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}
}

// ResolveCustom normalizes a caller-supplied range to whole days. Both
// bounds are inclusive, so equal bounds select that single day.
func ResolveCustom(c spec.CustomRange, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	from, ok := parseBound(c.From, loc)
	if !ok {
		return Range{}, fmt.Errorf("invalid custom range start %q", c.From)
	}
	to, ok := parseBound(c.To, loc)
	if !ok {
		return Range{}, fmt.Errorf("invalid custom range end %q", c.To)
	}
	if to.Before(from) {
		return Range{}, fmt.Errorf("custom range ends before it starts")
	}
	return days(startOfDay(from.In(loc)), startOfDay(to.In(loc))), nil
}

// ResolveComparison derives a comparison window from base. It returns false
// when the mode is unknown or a custom range is unusable.
func ResolveComparison(mode string, base Range, custom *spec.CustomRange, loc *time.Location) (Range, bool) {
	if loc == nil {
		loc = base.From.Location()
	}
	switch mode {
	case ComparePrevious:
		d := base.Duration()
		return Range{From: base.From.Add(-d), To: base.To.Add(-d)}, true
	case CompareWoW:
		return Range{From: base.From.AddDate(0, 0, -7), To: base.To.AddDate(0, 0, -7)}, true
	case CompareMoM:
		return Range{From: addMonthsClamped(base.From, -1), To: addMonthsClamped(base.To, -1)}, true
	case CompareYoY:
		return Range{From: addMonthsClamped(base.From, -12), To: addMonthsClamped(base.To, -12)}, true
	case CompareCustom:
		if custom == nil {
			return Range{}, false
		}
		from, ok := parseBound(custom.From, loc)
		if !ok {
			return Range{}, false
		}
		to, ok := parseBound(custom.To, loc)
		if !ok || !from.Before(to) {
			return Range{}, false
		}
		if isDateOnly(custom.To) {
			to = endOfDay(to)
		}
		return Range{From: from, To: to}, true
	default:
		return Range{}, false
	}
}

// Apply writes r into q on field. See spec.WithDateRange.
func Apply(q *spec.QuerySpec, field spec.FieldRef, r Range) *spec.QuerySpec {
	return spec.WithDateRange(q, field, r.From, r.To)
}

func days(from, to time.Time) Range {
	return Range{From: startOfDay(from), To: endOfDay(to)}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

func startOfISOWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfQuarter(t time.Time) time.Time {
	m := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(m), 1, 0, 0, 0, 0, t.Location())
}

// addMonthsClamped shifts t by n calendar months, clamping the day to the
// last day of the target month (Mar 31 - 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := total % 12
	if tm < 0 {
		tm += 12
		ty--
	}
	target := time.Month(tm + 1)
	if last := daysIn(ty, target); d > last {
		d = last
	}
	return time.Date(ty, target, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isDateOnly(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func parseBound(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	return time.Time{}, false
}
