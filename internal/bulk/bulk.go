// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package bulk executes many independent QuerySpecs in one round trip.
//
// Every request yields exactly one result carrying the request's id. A
// failing request, including one that panics, never affects its siblings.
// The batcher does not merge results.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/metrics"
	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultConcurrency bounds in-flight requests per batch.
const DefaultConcurrency = 8

// Request is one entry of a batch, usually a dashboard card's primary query
// or its comparison twin.
type Request struct {
	ID     string          `json:"id" validate:"required"`
	Config *spec.QuerySpec `json:"config" validate:"required"`
}

// Result is the outcome of one Request.
type Result struct {
	ID       string                `json:"id"`
	Status   string                `json:"status"`
	Response *models.QueryResponse `json:"response,omitempty"`
	Kind     string                `json:"kind,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// QueryFunc executes one QuerySpec.
type QueryFunc func(ctx context.Context, q *spec.QuerySpec) (*models.QueryResponse, error)

// Batcher runs batches with bounded concurrency.
type Batcher struct {
	query       QueryFunc
	concurrency int
}

// New creates a Batcher. concurrency <= 0 uses DefaultConcurrency.
func New(query QueryFunc, concurrency int) *Batcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Batcher{query: query, concurrency: concurrency}
}

// Execute runs every request and returns one result per request, in input
// order. Requests with an empty or repeated id fail on their own.
func (b *Batcher) Execute(ctx context.Context, reqs []Request) []Result {
	start := time.Now()
	results := make([]Result, len(reqs))
	seen := make(map[string]bool, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)
	for i, req := range reqs {
		switch {
		case req.ID == "":
			results[i] = failure(req.ID, &RequestError{Message: "request id is required"})
			continue
		case seen[req.ID]:
			results[i] = failure(req.ID, &RequestError{Message: fmt.Sprintf("duplicate request id %q", req.ID)})
			continue
		case req.Config == nil:
			seen[req.ID] = true
			results[i] = failure(req.ID, &RequestError{Message: "config is required"})
			continue
		}
		seen[req.ID] = true

		g.Go(func() error {
			results[i] = b.run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, r := range results {
		if r.Status == StatusError {
			failures++
		}
	}
	metrics.RecordBulkBatch(len(reqs), failures)
	logging.Ctx(ctx).Debug().
		Int("requests", len(reqs)).
		Int("failures", failures).
		Dur("duration", time.Since(start)).
		Msg("Bulk batch executed")
	return results
}

func (b *Batcher) run(ctx context.Context, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().
				Str("card_id", req.ID).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Bulk request panicked")
			res = failure(req.ID, &RequestError{Message: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	resp, err := b.query(ctx, req.Config)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("card_id", req.ID).Msg("Bulk request failed")
		return failure(req.ID, err)
	}
	return Result{ID: req.ID, Status: StatusSuccess, Response: resp}
}

// RequestError is a malformed batch entry.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Kind returns the taxonomy kind; malformed entries count as validation
// failures.
func (e *RequestError) Kind() string { return spec.KindValidation }

type kinded interface {
	Kind() string
}

func failure(id string, err error) Result {
	r := Result{ID: id, Status: StatusError, Message: err.Error()}
	var k kinded
	if errors.As(err, &k) {
		r.Kind = k.Kind()
	}
	return r
}
