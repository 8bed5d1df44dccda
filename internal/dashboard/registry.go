// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package dashboard

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned for unknown dashboards and cards.
var ErrNotFound = errors.New("dashboard not found")

// Registry persists dashboards.
type Registry interface {
	Get(ctx context.Context, id string) (*Dashboard, error)
	Put(ctx context.Context, d *Dashboard) error
	List(ctx context.Context) ([]*Dashboard, error)
}

// MemoryRegistry keeps dashboards in memory. Values are copied in and out.
type MemoryRegistry struct {
	mu    sync.RWMutex
	items map[string]*Dashboard
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{items: make(map[string]*Dashboard)}
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*Dashboard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (r *MemoryRegistry) Put(_ context.Context, d *Dashboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[d.ID] = d.Clone()
	return nil
}

// List returns all dashboards ordered by id.
func (r *MemoryRegistry) List(_ context.Context) ([]*Dashboard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Dashboard, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
