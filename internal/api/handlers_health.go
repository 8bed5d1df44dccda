// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"net/http"
	"time"
)

// HealthLive answers 200 while the process is up, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).OK(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers 200 unless the server is draining or the warehouse
// circuit breaker is open.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		NewResponseWriter(w, r).ServiceUnavailable("server is shutting down")
		return
	}
	state := "unknown"
	if h.breaker != nil {
		state = h.breaker.State()
		if h.breaker.Open() {
			NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
				"warehouse circuit breaker is open", map[string]string{"warehouse": state})
			return
		}
	}
	NewResponseWriter(w, r).OK(map[string]interface{}{
		"ready":     true,
		"warehouse": state,
	})
}
