// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package middleware provides HTTP middleware for the reporting API.

Key Components:

  - RequestID: keeps or generates X-Request-ID and threads it into logging
  - PrometheusMetrics: request count, latency and in-flight gauges per route
  - AccessLog: one structured zerolog line per request, warn when slow

All middleware use the chi signature func(http.Handler) http.Handler:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(5 * time.Second))
*/
package middleware
