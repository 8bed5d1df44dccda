// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package planner

import (
	"math"
	"sort"

	"github.com/tomtom215/innkeeper/internal/models"
)

// AnomalyThreshold is the absolute z-score above which a cell is flagged.
const AnomalyThreshold = 3.0

const minAnomalySamples = 3

// detectAnomalies flags metric cells more than AnomalyThreshold standard
// deviations from the mean of their series. A series is every row sharing
// the non-time grouping keys; without a time axis all rows form one series.
func detectAnomalies(rows []Row, p *ExecutionPlan) []models.Anomaly {
	var keys []string
	if p.TimeAlias != "" {
		keys = p.Keys
	}

	var out []models.Anomaly
	for _, m := range p.Metrics {
		series := make(map[string][]int)
		var order []string
		for i, r := range rows {
			if _, ok := models.Number(r[m.Alias]); !ok {
				continue
			}
			k := keyOf(r, keys)
			if _, seen := series[k]; !seen {
				order = append(order, k)
			}
			series[k] = append(series[k], i)
		}

		for _, k := range order {
			idx := series[k]
			if len(idx) < minAnomalySamples {
				continue
			}
			var sum float64
			for _, i := range idx {
				v, _ := models.Number(rows[i][m.Alias])
				sum += v
			}
			mean := sum / float64(len(idx))
			var sq float64
			for _, i := range idx {
				v, _ := models.Number(rows[i][m.Alias])
				sq += (v - mean) * (v - mean)
			}
			std := math.Sqrt(sq / float64(len(idx)))
			if std == 0 {
				continue
			}
			for _, i := range idx {
				v, _ := models.Number(rows[i][m.Alias])
				z := (v - mean) / std
				if math.Abs(z) > AnomalyThreshold {
					out = append(out, models.Anomaly{Row: i, Alias: m.Alias, Value: v, ZScore: math.Round(z*100) / 100})
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Alias < out[j].Alias
	})
	return out
}
