// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/innkeeper/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	slowRequest   time.Duration
}

// NewRouter creates a Router. slowRequest is the access log warn threshold;
// zero uses middleware.DefaultSlowRequest.
func NewRouter(handler *Handler, mw *ChiMiddleware, slowRequest time.Duration) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw, slowRequest: slowRequest}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(router.slowRequest))
	r.Use(chimiddleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/reports", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())

		queryLimit := router.chiMiddleware.QueryRateLimit()
		r.With(queryLimit).Post("/preview", h.Preview)
		r.With(queryLimit).Post("/query", h.Query)
		r.Get("/query/jobs/{jobId}", h.GetJob)

		r.Route("/derived-fields", func(r chi.Router) {
			r.Get("/", h.ListDerivedFields)
			r.Post("/", h.CreateDerivedField)
			r.Get("/{fieldId}", h.GetDerivedField)
			r.Put("/{fieldId}", h.UpdateDerivedField)
			r.Delete("/{fieldId}", h.DeleteDerivedField)
		})

		r.Route("/dashboards", func(r chi.Router) {
			r.Get("/", h.ListDashboards)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetDashboard)
				r.Put("/", h.PutDashboard)
				r.Post("/refresh", h.RefreshDashboard)
				r.Get("/cards", h.DashboardCards)
				r.Route("/cards/{cardId}", func(r chi.Router) {
					r.Get("/table", h.CardTablePage)
					r.Put("/period", h.SetCardPeriod)
					r.Post("/link", h.LinkCard)
					r.Post("/unlink", h.UnlinkCard)
					r.With(queryLimit).Post("/bulk-query", h.BulkQuery)
				})
			})
		})
	})

	return r
}
