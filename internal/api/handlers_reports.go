// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/innkeeper/internal/bulk"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// BulkQueryResponse is the body of the bulk endpoint.
type BulkQueryResponse struct {
	Results []bulk.Result `json:"results"`
}

// Preview validates and runs a lightweight spec synchronously.
//
// POST /reports/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var q spec.QuerySpec
	if err := decodeJSON(w, r, &q); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	res, err := h.engine.Preview(r.Context(), &q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(res)
}

// Query executes a QuerySpec. A synchronous result answers 200, a job
// handle answers 202.
//
// POST /reports/query?refreshNonce=
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var q spec.QuerySpec
	if err := decodeJSON(w, r, &q); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	resp, err := h.engine.Query(r.Context(), &q, r.URL.Query().Get(refreshNonceParam))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if resp.IsAsync() {
		NewResponseWriter(w, r).JSON(http.StatusAccepted, resp.JobHandle)
		return
	}
	NewResponseWriter(w, r).OK(resp.QueryResult)
}

// GetJob returns the status of an async job.
//
// GET /reports/query/jobs/{jobId}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	ctx := logging.ContextWithJobID(r.Context(), jobID)

	st, err := h.engine.GetJob(ctx, jobID)
	if err != nil {
		writeError(w, r.WithContext(ctx), err)
		return
	}
	NewResponseWriter(w, r).OK(st)
}

// BulkQuery runs a batch of card queries under one refresh nonce. The
// response always answers 200 with one result per entry; entry failures are
// reported inside the results.
//
// POST /reports/dashboards/{id}/cards/{cardId}/bulk-query?refreshNonce=
func (h *Handler) BulkQuery(w http.ResponseWriter, r *http.Request) {
	dashboardID := chi.URLParam(r, "id")
	cardID := chi.URLParam(r, "cardId")
	ctx := logging.ContextWithCardID(r.Context(), cardID)

	d, err := h.dashboards.Get(ctx, dashboardID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, ok := d.Card(cardID); !ok {
		NewResponseWriter(w, r).NotFound("card not found")
		return
	}

	var req BulkQueryRequest
	if err := decodeJSON(w, r, &req.Requests); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}

	results := h.engine.Bulk(ctx, req.Requests, r.URL.Query().Get(refreshNonceParam))
	NewResponseWriter(w, r).OK(BulkQueryResponse{Results: results})
}
