// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/innkeeper/internal/dashboard"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/period"
)

// RefreshResponse is the body of a dashboard refresh.
type RefreshResponse struct {
	DashboardID string                `json:"dashboardId"`
	Cards       []dashboard.CardState `json:"cards"`
}

// PeriodChangeResponse lists the cards a period change touched and their
// states after the follow-up refresh.
type PeriodChangeResponse struct {
	Changed []string              `json:"changed"`
	Cards   []dashboard.CardState `json:"cards"`
}

// ListDashboards returns every dashboard.
func (h *Handler) ListDashboards(w http.ResponseWriter, r *http.Request) {
	list, err := h.dashboards.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*dashboard.Dashboard{}
	}
	NewResponseWriter(w, r).OK(list)
}

// GetDashboard returns one dashboard definition.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboards.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(d)
}

// PutDashboard creates or replaces a dashboard. Card view configs in an
// unknown or outdated shape are stored as legacy and render a re-save
// prompt instead of failing.
func (h *Handler) PutDashboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var d dashboard.Dashboard
	if err := decodeJSON(w, r, &d); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if d.ID != "" && d.ID != id {
		NewResponseWriter(w, r).BadRequest("dashboard id does not match the path")
		return
	}
	d.ID = id
	if d.Timezone == "" {
		d.Timezone = h.defaultTimezone
	}
	if d.Period.Preset == "" {
		d.Period.Preset = period.ThisMonth
	}
	if err := validateRequest(&d); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.dashboards.Put(r.Context(), &d); err != nil {
		writeError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("dashboard_id", d.ID).
		Int("cards", len(d.Cards)).
		Bool("auto_refresh", d.AutoRefresh).
		Msg("Dashboard saved")
	NewResponseWriter(w, r).OK(&d)
}

// RefreshDashboard hydrates every card from one snapshot.
func (h *Handler) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	states, err := h.hydrator.Refresh(r.Context(), id, dashboard.TriggerManual)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(RefreshResponse{DashboardID: id, Cards: states})
}

// DashboardCards returns the current card states without refreshing.
func (h *Handler) DashboardCards(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	states, err := h.hydrator.Cards(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(RefreshResponse{DashboardID: id, Cards: states})
}

// CardTablePage returns a page of a preview table card.
//
// GET /reports/dashboards/{id}/cards/{cardId}/table?page=
func (h *Handler) CardTablePage(w http.ResponseWriter, r *http.Request) {
	page, err := getIntParam(r, "page", 1)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	req := TablePageRequest{Page: page}
	if err := validateRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}
	tp, err := h.hydrator.Page(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "cardId"), req.Page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(tp)
}

// SetCardPeriod changes a card's period, propagating to linked cards of its
// group, then refreshes the dashboard.
func (h *Handler) SetCardPeriod(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cardID := chi.URLParam(r, "cardId")
	ctx := logging.ContextWithCardID(r.Context(), cardID)

	var sel period.Selection
	if err := decodeJSON(w, r, &sel); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if err := validateRequest(&sel); err != nil {
		writeError(w, r, err)
		return
	}

	changed, err := h.hydrator.SetPeriod(ctx, id, cardID, sel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	states, err := h.hydrator.Refresh(ctx, id, dashboard.TriggerPeriod)
	if errors.Is(err, dashboard.ErrSuperseded) {
		states, err = h.hydrator.Cards(ctx, id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).OK(PeriodChangeResponse{Changed: changed, Cards: states})
}

// LinkCard joins a card to its period group.
func (h *Handler) LinkCard(w http.ResponseWriter, r *http.Request) {
	if err := h.hydrator.Link(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "cardId")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// UnlinkCard isolates a card from group-wide period changes.
func (h *Handler) UnlinkCard(w http.ResponseWriter, r *http.Request) {
	if err := h.hydrator.Unlink(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "cardId")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}
