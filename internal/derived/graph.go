// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package derived

import (
	"sort"

	"github.com/tomtom215/innkeeper/internal/spec"
)

// Graph is the model/join shape an expression is compiled against.
type Graph struct {
	Models []string    `json:"models"`
	Joins  []spec.Join `json:"joins"`
}

// GraphFromSpec returns the join graph of a query.
func GraphFromSpec(q *spec.QuerySpec) Graph {
	return Graph{Models: q.Models, Joins: q.Joins}
}

// HasModel reports whether id is a node of the graph.
func (g Graph) HasModel(id string) bool {
	for _, m := range g.Models {
		if m == id {
			return true
		}
	}
	return false
}

// Join returns the join with id.
func (g Graph) Join(id string) (spec.Join, bool) {
	for _, j := range g.Joins {
		if j.ID == id {
			return j, true
		}
	}
	return spec.Join{}, false
}

// ShortestPath returns the joins on a shortest path between two models.
// Ties are broken by join id so the result is deterministic.
func (g Graph) ShortestPath(from, to string) ([]spec.Join, bool) {
	if from == to {
		return nil, true
	}

	adj := make(map[string][]spec.Join)
	for _, j := range g.Joins {
		adj[j.LeftModel] = append(adj[j.LeftModel], j)
		adj[j.RightModel] = append(adj[j.RightModel], j)
	}
	for m := range adj {
		edges := adj[m]
		sort.Slice(edges, func(i, k int) bool { return edges[i].ID < edges[k].ID })
	}

	type step struct {
		prev string
		via  spec.Join
	}
	visited := map[string]step{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			break
		}
		for _, j := range adj[cur] {
			next := j.Other(cur)
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = step{prev: cur, via: j}
			queue = append(queue, next)
		}
	}

	if _, ok := visited[to]; !ok {
		return nil, false
	}
	var path []spec.Join
	for cur := to; cur != from; cur = visited[cur].prev {
		path = append(path, visited[cur].via)
	}
	for i, k := 0, len(path)-1; i < k; i, k = i+1, k-1 {
		path[i], path[k] = path[k], path[i]
	}
	return path, true
}
