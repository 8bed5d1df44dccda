// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package derived

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/metrics"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// ErrExists is returned when creating an id that is already stored.
var ErrExists = errors.New("derived field already exists")

// UpsertRequest is the authoring payload. Graph is the model/join shape the
// author validated the expression against.
type UpsertRequest struct {
	ID         string `json:"id" validate:"required,identifier"`
	Name       string `json:"name,omitempty"`
	Kind       Kind   `json:"kind" validate:"required,oneof=row aggregate"`
	Expression *Expr  `json:"expressionAst" validate:"required"`
	Graph      Graph  `json:"graph"`
}

// Service compiles definitions on write and resolves them for queries.
type Service struct {
	store Store
	cat   spec.Catalog
	now   func() time.Time
}

// NewService creates a Service.
func NewService(store Store, cat spec.Catalog) *Service {
	return &Service{store: store, cat: cat, now: func() time.Time { return time.Now().UTC() }}
}

// Create compiles and stores a new definition.
func (s *Service) Create(ctx context.Context, req *UpsertRequest) (*Definition, error) {
	if _, err := s.store.Get(ctx, req.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, req.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.save(ctx, req)
}

// Update recompiles and replaces an existing definition.
func (s *Service) Update(ctx context.Context, id string, req *UpsertRequest) (*Definition, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	req.ID = id
	return s.save(ctx, req)
}

func (s *Service) save(ctx context.Context, req *UpsertRequest) (*Definition, error) {
	if len(req.Graph.Models) == 0 {
		req.Graph.Models = referencedModels(req.Expression)
	}
	now := s.now()
	def, err := CompileDefinition(&Definition{
		ID:         req.ID,
		Name:       req.Name,
		Kind:       req.Kind,
		Expression: req.Expression,
	}, req.Graph, s.cat, now)
	if err != nil {
		return nil, err
	}
	def.UpdatedAt = now
	if err := s.store.Put(ctx, def); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().
		Str("field_id", def.ID).
		Strs("models", def.ReferencedModels).
		Str("sql_hash", short(def.CompiledSQLHash)).
		Msg("derived field compiled")
	return def, nil
}

// Get returns a stored definition.
func (s *Service) Get(ctx context.Context, id string) (*Definition, error) {
	return s.store.Get(ctx, id)
}

// List returns every stored definition.
func (s *Service) List(ctx context.Context) ([]*Definition, error) {
	return s.store.List(ctx)
}

// Delete removes a definition.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Lookup returns a spec.DerivedLookup bound to ctx.
func (s *Service) Lookup(ctx context.Context) spec.DerivedLookup {
	return func(id string) (spec.DerivedInfo, bool) {
		d, err := s.store.Get(ctx, id)
		if err != nil {
			return spec.DerivedInfo{}, false
		}
		return d.Info(), true
	}
}

// Resolve loads every derived field q references and makes sure each one
// was compiled against q's join graph. Stale definitions are recompiled for
// this query; with strict set a stale definition fails with *StaleError
// instead. Stored definitions are never rewritten here.
func (s *Service) Resolve(ctx context.Context, q *spec.QuerySpec, strict bool) (map[string]*Definition, error) {
	out := make(map[string]*Definition, len(q.DerivedFields))
	g := GraphFromSpec(q)

	for _, ref := range q.DerivedFields {
		def, err := s.store.Get(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("derived field %s: %w", ref.ID, err)
		}

		staleErr := CheckFresh(def, g)
		if staleErr == nil {
			out[ref.ID] = def
			continue
		}
		if strict {
			return nil, staleErr
		}

		logging.Ctx(ctx).Warn().Err(staleErr).Str("field_id", ref.ID).Msg("recompiling stale derived field")
		fresh, err := CompileDefinition(def, g, s.cat, s.now())
		metrics.RecordDerivedRecompile(err == nil)
		if err != nil {
			return nil, err
		}
		out[ref.ID] = fresh
	}
	return out, nil
}

func referencedModels(e *Expr) []string {
	seen := map[string]bool{}
	var visit func(*Expr)
	visit = func(n *Expr) {
		if n == nil {
			return
		}
		if n.Type == NodeColumn {
			seen[n.ModelID] = true
		}
		visit(n.Left)
		visit(n.Right)
		visit(n.Arg)
		for _, a := range n.Args {
			visit(a)
		}
	}
	visit(e)
	return sortedKeys(seen)
}
