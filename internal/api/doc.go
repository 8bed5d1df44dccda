// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package api is the HTTP surface of the reporting engine.

Routes are served by a chi router with go-chi/cors and go-chi/httprate:

	POST   /reports/preview
	POST   /reports/query                       ?refreshNonce=
	GET    /reports/query/jobs/{jobId}
	GET    /reports/derived-fields
	POST   /reports/derived-fields
	GET    /reports/derived-fields/{fieldId}
	PUT    /reports/derived-fields/{fieldId}
	DELETE /reports/derived-fields/{fieldId}
	GET    /reports/dashboards
	GET    /reports/dashboards/{id}
	PUT    /reports/dashboards/{id}
	POST   /reports/dashboards/{id}/refresh
	GET    /reports/dashboards/{id}/cards
	GET    /reports/dashboards/{id}/cards/{cardId}/table ?page=
	PUT    /reports/dashboards/{id}/cards/{cardId}/period
	POST   /reports/dashboards/{id}/cards/{cardId}/link
	POST   /reports/dashboards/{id}/cards/{cardId}/unlink
	POST   /reports/dashboards/{id}/cards/{cardId}/bulk-query ?refreshNonce=
	GET    /health/live
	GET    /health/ready
	GET    /metrics

Successful responses carry the resource itself: a query result
{rows, columns, sql, meta}, a job handle {jobId, status, hash}, a bulk
envelope {results: [...]}. Failures use one envelope:

	{"success": false, "error": {"code": "PLAN_ERROR", "message": "...", "request_id": "..."}}

Error codes follow the engine's taxonomy: VALIDATION_ERROR (400),
COMPILE_ERROR and PLAN_ERROR (422), STALE_DERIVED_FIELD (409),
EXECUTION_ERROR (502), TIMEOUT (504), NOT_FOUND (404) and
TOO_MANY_REQUESTS (429).
*/
package api
