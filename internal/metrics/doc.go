// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package metrics provides Prometheus instrumentation for the reporting engine.

Every collector is registered with the default registry through promauto and
exposed at /metrics by the API router:

	curl http://localhost:8080/metrics

# Available Metrics

HTTP:
  - api_requests_total{method, endpoint, status_code}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

Planning and execution:
  - plans_total{result}, plan_duration_seconds
  - warehouse_query_duration_seconds{kind}, warehouse_query_errors_total{kind, error_type}
  - execution_mode_total{mode}: sync, async, dedup, cached
  - jobs_transitions_total{status}, jobs_active{status}, job_duration_seconds{status}
  - sync_timeouts_total, job_admission_rejected_total

Derived fields:
  - derived_recompiles_total{result}

Bulk and dashboards:
  - bulk_batch_size, bulk_items_total{status}
  - card_hydrations_total{mode, state}, dashboard_refreshes_total{trigger}

Caching, events and resilience:
  - cache_hits_total, cache_misses_total, cache_entries, cache_evictions_total{cache_type}
  - events_published_total{type, result}
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_consecutive_failures, circuit_breaker_state_transitions_total

Callers use the Record* helpers rather than the collectors directly so label
values stay consistent.
*/
package metrics
