// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/innkeeper/internal/derived"
	"github.com/tomtom215/innkeeper/internal/logging"
)

// ListDerivedFields returns every stored derived field.
func (h *Handler) ListDerivedFields(w http.ResponseWriter, r *http.Request) {
	defs, err := h.derived.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if defs == nil {
		defs = []*derived.Definition{}
	}
	NewResponseWriter(w, r).OK(defs)
}

// CreateDerivedField compiles and stores a new derived field.
func (h *Handler) CreateDerivedField(w http.ResponseWriter, r *http.Request) {
	var req derived.UpsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}
	def, err := h.derived.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(def)
}

// GetDerivedField returns one derived field.
func (h *Handler) GetDerivedField(w http.ResponseWriter, r *http.Request) {
	def, err := h.derived.Get(r.Context(), chi.URLParam(r, "fieldId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(def)
}

// UpdateDerivedField recompiles and replaces a derived field. The id in the
// path wins over the body.
func (h *Handler) UpdateDerivedField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fieldId")
	var req derived.UpsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	req.ID = id
	if err := validateRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}
	def, err := h.derived.Update(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(def)
}

// DeleteDerivedField removes a derived field.
func (h *Handler) DeleteDerivedField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fieldId")
	if err := h.derived.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("field_id", id).Msg("Derived field deleted")
	NewResponseWriter(w, r).NoContent()
}
