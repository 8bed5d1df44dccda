// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Canonical returns a copy of q in canonical form: defaults made explicit,
// order-insensitive collections sorted, times in UTC, and execution-only
// options cleared. Two specs that compute the same result have equal
// canonical forms.
func Canonical(q *QuerySpec) *QuerySpec {
	c := q.Clone()

	if len(c.Models) > 1 {
		sort.Strings(c.Models[1:])
	}

	for i := range c.Select {
		c.Select[i].Alias = c.Select[i].OutputAlias()
	}
	for i := range c.Metrics {
		c.Metrics[i].Alias = c.Metrics[i].OutputAlias()
	}
	for i := range c.Dimensions {
		c.Dimensions[i].Alias = c.Dimensions[i].OutputAlias()
	}
	for i := range c.DerivedFields {
		c.DerivedFields[i].Alias = c.DerivedFields[i].OutputAlias()
	}
	sort.Slice(c.DerivedFields, func(i, j int) bool { return c.DerivedFields[i].ID < c.DerivedFields[j].ID })

	for i := range c.Joins {
		c.Joins[i].JoinType = c.Joins[i].Type()
	}
	sort.Slice(c.Joins, func(i, j int) bool { return c.Joins[i].ID < c.Joins[j].ID })

	allAnd := true
	for i := range c.Filters {
		c.Filters[i].JoinWith = c.Filters[i].Conjunction()
		if c.Filters[i].JoinWith != "and" {
			allAnd = false
		}
		c.Filters[i].Value = canonicalValue(c.Filters[i].Value)
	}
	// AND is commutative; OR chains keep their evaluation order.
	if allAnd {
		keys := make([]string, len(c.Filters))
		for i, f := range c.Filters {
			b, _ := json.Marshal(f)
			keys[i] = string(b)
		}
		sort.Sort(byKey{keys: keys, filters: c.Filters})
	}

	if c.Time != nil {
		if c.Time.GapFill == "" {
			c.Time.GapFill = GapFillNone
		}
		if c.Time.Range != nil {
			c.Time.Range.From = c.Time.Range.From.UTC()
			c.Time.Range.To = c.Time.Range.To.UTC()
		}
	}

	c.Options = Options{
		TemplateID:       c.Options.TemplateID,
		Explain:          c.Options.Explain,
		AnomalyDetection: c.Options.AnomalyDetection,
	}
	return c
}

type byKey struct {
	keys    []string
	filters []Filter
}

func (b byKey) Len() int           { return len(b.keys) }
func (b byKey) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
func (b byKey) Swap(i, j int) {
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
	b.filters[i], b.filters[j] = b.filters[j], b.filters[i]
}

// canonicalValue maps range values onto the JSON map shape so typed and
// decoded ranges hash identically.
func canonicalValue(v interface{}) interface{} {
	switch r := v.(type) {
	case RangeValue, *RangeValue:
		from, to, _ := AsRange(r)
		return map[string]interface{}{"from": canonicalScalar(from), "to": canonicalScalar(to)}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(r))
		for k, val := range r {
			out[k] = canonicalScalar(val)
		}
		return out
	default:
		return canonicalScalar(v)
	}
}

func canonicalScalar(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		if parsed, ok := ParseInstant(t); ok {
			return parsed.UTC().Format(time.RFC3339Nano)
		}
		return t
	default:
		return v
	}
}

// CanonicalHash returns the structural cache key of (q, nonce). Map keys are
// emitted sorted by the encoder, so the digest is independent of the order
// fields arrived in. A spec holding values JSON cannot encode has no key.
func CanonicalHash(q *QuerySpec, nonce string) (string, error) {
	payload := struct {
		Spec  *QuerySpec `json:"spec"`
		Nonce string     `json:"nonce"`
	}{Canonical(q), nonce}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonical hash: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
