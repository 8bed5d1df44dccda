// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package main is the entry point for the Innkeeper reporting server.

Innkeeper turns declarative report specifications into warehouse queries,
runs them synchronously or as background jobs, and hydrates dashboard cards
from the results.

# Application Architecture

The server runs every long-lived component under a Suture v4 supervisor:

	RootSupervisor ("innkeeper")
	├── StorageSupervisor ("storage-layer")
	│   ├── Result cache and pending job janitors
	│   └── Job retention sweeper (memory job store only)
	├── ExecutionSupervisor ("execution-layer")
	│   ├── Scheduler workers
	│   ├── Job event consumer (events.enabled)
	│   └── Dashboard auto refresh
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Catalog: model definitions from catalog.path, or the built-in models
 3. Warehouse: DuckDB connection pool behind a gobreaker circuit breaker
 4. Job store: in-memory or BadgerDB (scheduler.job_store)
 5. Engine: derived fields, planner, scheduler and result cache
 6. Dashboards: registry, card hydrator and auto refresher
 7. HTTP Server: chi router with CORS, rate limiting and Prometheus metrics

# Configuration

Settings are layered, highest priority first:
  - Environment variables (HTTP_PORT, WAREHOUSE_PATH, SCHEDULER_WORKERS, ...)
  - Config file (config.yaml, or the file named by CONFIG_PATH)
  - Built-in defaults

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests for server.shutdown_timeout, scheduler workers finish
or abandon their jobs, and the warehouse and job store are closed.

# Example Usage

In-memory warehouse with demo tables:

	export WAREHOUSE_BOOTSTRAP=true
	export LOG_LEVEL=debug
	./innkeeper

Persistent warehouse and job store:

	export WAREHOUSE_PATH=/data/warehouse.duckdb
	export SCHEDULER_JOB_STORE=badger
	export SCHEDULER_JOB_STORE_PATH=/data/jobs
	./innkeeper
*/
package main
