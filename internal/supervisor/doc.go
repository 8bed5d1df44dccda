// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package supervisor provides process supervision for Innkeeper using suture v4.

# Overview

Long-running services are organized into three layers for failure isolation:

	RootSupervisor ("innkeeper")
	├── StorageSupervisor ("storage-layer")
	│   ├── Result cache and pending job janitors
	│   └── SweeperService (job retention, memory job store only)
	├── ExecutionSupervisor ("execution-layer")
	│   ├── Scheduler workers
	│   ├── Job event consumer (if events.enabled)
	│   └── Dashboard auto refresh
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A scheduler worker crash restarts the worker pool without dropping the
HTTP listener. Queued jobs live in the scheduler's channel and job store,
so they survive a worker restart.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddStorageService(resultCache)
	tree.AddExecutionService(sched)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	// Equivalent to AddExecutionService; the token can later be passed to Remove.
	token := tree.Add(supervisor.LayerExecution, autoRefresh)

	errCh := tree.ServeBackground(ctx)
	<-errCh

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Past FailureThreshold the supervisor waits FailureBackoff before the next
restart. A service that returns suture.ErrDoNotRestart is not restarted.

# What Is Not Supervised

DuckDB is an embedded library; its connection pool is owned by the
warehouse package and guarded by the circuit breaker instead.

# Debugging Shutdown

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service did not stop: %v", svc)
	}
*/
package supervisor
