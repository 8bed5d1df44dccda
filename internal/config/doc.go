// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package config provides centralized configuration management for Innkeeper.

# Configuration Sources

Configuration is layered with Koanf v2, later layers winning:
  - Built-in defaults (defaultConfig)
  - Optional YAML file: CONFIG_PATH, else config.yaml or /etc/innkeeper/config.yaml
  - Environment variables

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT (default: 8420), HTTP_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT
  - ENVIRONMENT: development or production

Security:
  - CORS_ORIGINS: comma-separated origins (default: *)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Logging:
  - LOG_LEVEL (default: info), LOG_FORMAT (json, console), LOG_CALLER

Warehouse:
  - WAREHOUSE_PATH (default: /data/innkeeper.duckdb), WAREHOUSE_MAX_MEMORY
  - WAREHOUSE_THREADS, WAREHOUSE_MAX_OPEN_CONNS, WAREHOUSE_QUERY_TIMEOUT
  - WAREHOUSE_BREAKER_TIMEOUT, WAREHOUSE_BREAKER_FAILURE_RATIO

Scheduler:
  - SCHEDULER_WORKERS, SCHEDULER_QUEUE_SIZE, SCHEDULER_SYNC_TIMEOUT (default: 30s)
  - SCHEDULER_SUBMIT_RATE, SCHEDULER_SUBMIT_BURST
  - SCHEDULER_MAX_ROWS, SCHEDULER_MAX_JOINS, SCHEDULER_WINDOW_ROWS: async cost thresholds
  - SCHEDULER_JOB_RETENTION, SCHEDULER_JOB_STORE (memory, badger), SCHEDULER_JOB_STORE_PATH

Cache and engine:
  - CACHE_TTL, CACHE_MAX_ENTRIES, CACHE_CLEANUP_INTERVAL
  - ENGINE_STRICT_DERIVED, ENGINE_PREVIEW_ROW_LIMIT, ENGINE_BULK_CONCURRENCY
  - ENGINE_PENDING_JOB_TTL, ENGINE_MAX_PENDING_JOBS: unpolled async job tracking

Dashboards:
  - DASHBOARD_AUTO_REFRESH_INTERVAL (default: 60s)
  - DASHBOARD_POLL_INTERVAL (default: 1.5s), DASHBOARD_POLL_TIMEOUT (default: 60s)
  - DASHBOARD_POLL_BACKOFF (fixed, exponential), DASHBOARD_POLL_MAX_INTERVAL
  - DASHBOARD_TIMEZONE

Events:
  - EVENTS_ENABLED, EVENTS_OUTPUT_BUFFER

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal(err)
	}
	logging.Init(cfg.LoggingOptions())

Config is immutable after loading and safe for concurrent reads.
*/
package config
