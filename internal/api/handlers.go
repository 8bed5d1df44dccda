// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/innkeeper/internal/bulk"
	"github.com/tomtom215/innkeeper/internal/dashboard"
	"github.com/tomtom215/innkeeper/internal/derived"
	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// QueryEngine executes QuerySpecs. It is satisfied by *engine.Engine.
type QueryEngine interface {
	Preview(ctx context.Context, q *spec.QuerySpec) (*models.QueryResult, error)
	Query(ctx context.Context, q *spec.QuerySpec, nonce string) (*models.QueryResponse, error)
	GetJob(ctx context.Context, id string) (*models.JobStatus, error)
	Bulk(ctx context.Context, reqs []bulk.Request, nonce string) []bulk.Result
}

// BreakerState reports whether the warehouse circuit breaker is open.
type BreakerState interface {
	Open() bool
	State() string
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_reports.go: preview, query, job status, bulk query
//   - handlers_derived.go: derived field CRUD
//   - handlers_dashboards.go: dashboards, cards, periods, links
//   - handlers_health.go: liveness and readiness
type Handler struct {
	engine     QueryEngine
	derived    *derived.Service
	dashboards dashboard.Registry
	hydrator   *dashboard.Hydrator
	breaker    BreakerState
	startTime  time.Time
	draining   atomic.Bool

	defaultTimezone string
}

// NewHandler creates the API handler. breaker may be nil, in which case
// readiness only reflects that the process is up.
func NewHandler(engine QueryEngine, derivedSvc *derived.Service, dashboards dashboard.Registry, hydrator *dashboard.Hydrator, breaker BreakerState) *Handler {
	return &Handler{
		engine:     engine,
		derived:    derivedSvc,
		dashboards: dashboards,
		hydrator:   hydrator,
		breaker:    breaker,
		startTime:  time.Now(),
	}
}

// SetDefaultTimezone sets the timezone given to dashboards saved without
// one.
func (h *Handler) SetDefaultTimezone(tz string) {
	h.defaultTimezone = tz
}

// SetDraining marks the server as shutting down. Readiness fails while set
// so load balancers stop routing new requests.
func (h *Handler) SetDraining(draining bool) {
	h.draining.Store(draining)
}
