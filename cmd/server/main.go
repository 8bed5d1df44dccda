// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/innkeeper/internal/api"
	"github.com/tomtom215/innkeeper/internal/cache"
	"github.com/tomtom215/innkeeper/internal/catalog"
	"github.com/tomtom215/innkeeper/internal/config"
	"github.com/tomtom215/innkeeper/internal/dashboard"
	"github.com/tomtom215/innkeeper/internal/derived"
	"github.com/tomtom215/innkeeper/internal/engine"
	"github.com/tomtom215/innkeeper/internal/events"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/metrics"
	"github.com/tomtom215/innkeeper/internal/planner"
	"github.com/tomtom215/innkeeper/internal/scheduler"
	"github.com/tomtom215/innkeeper/internal/supervisor"
	"github.com/tomtom215/innkeeper/internal/supervisor/services"
	"github.com/tomtom215/innkeeper/internal/warehouse"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logOpts := cfg.LoggingOptions()
	logOpts.Version = version
	logging.Init(logOpts)
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("warehouse", cfg.Warehouse.Path).
		Str("job_store", cfg.Scheduler.JobStore).
		Msg("Starting Innkeeper with supervisor tree")

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load model catalog")
	}
	logging.Info().Strs("models", cat.ModelIDs()).Msg("Model catalog loaded")

	db, err := warehouse.Open(cfg.Warehouse.DuckDB())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open warehouse")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing warehouse")
		}
	}()

	if cfg.Warehouse.Bootstrap {
		bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Bootstrap(bootCtx, cat)
		bootCancel()
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to bootstrap warehouse tables")
		}
		logging.Info().Msg("Warehouse tables bootstrapped from catalog")
	}
	breaker := warehouse.NewBreakerExecutor(db, cfg.Warehouse.Breaker())

	// Job store
	var (
		jobStore    scheduler.JobStore
		memoryStore *scheduler.MemoryStore
	)
	switch cfg.Scheduler.JobStore {
	case "badger":
		bs, err := scheduler.OpenBadgerStore(cfg.Scheduler.JobStorePath, cfg.Scheduler.JobRetention)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Scheduler.JobStorePath).Msg("Failed to open job store")
		}
		jobStore = bs
		logging.Info().Str("path", cfg.Scheduler.JobStorePath).Msg("BadgerDB job store opened")
	default:
		memoryStore = scheduler.NewMemoryStore(cfg.Scheduler.JobRetention)
		jobStore = memoryStore
		logging.Info().Msg("In-memory job store enabled; jobs are lost on restart")
	}
	defer func() {
		if err := jobStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing job store")
		}
	}()

	// Job lifecycle events
	var (
		publisher events.Publisher
		bus       *events.Bus
	)
	if cfg.Events.Enabled {
		bus = events.NewBus(cfg.Events.Bus())
		publisher = bus
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
		logging.Info().Msg("Job event bus enabled")
	}

	sched := scheduler.New(breaker, jobStore, publisher, cfg.Scheduler.Options())

	results := cache.New("results", cfg.Cache.TTL, cfg.Cache.MaxEntries)
	results.SetCleanupInterval(cfg.Cache.CleanupInterval)

	derivedSvc := derived.NewService(derived.NewMemoryStore(), cat)
	pl := planner.New(cat, planner.Config{Location: cfg.Dashboard.Location()})
	eng := engine.New(cat, derivedSvc, pl, sched, results, cfg.Engine)

	registry := dashboard.NewMemoryRegistry()
	hydrator := dashboard.NewHydrator(registry, eng, cfg.Dashboard.Poll(), nil)
	autoRefresh := dashboard.NewAutoRefresher(registry, hydrator, cfg.Dashboard.AutoRefreshInterval)

	handler := api.NewHandler(eng, derivedSvc, registry, hydrator, breaker)
	handler.SetDefaultTimezone(cfg.Dashboard.DefaultTimezone)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (security.rate_limit_disabled=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS is configured with a wildcard origin in production")
	}

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Security.RateLimitReqs
	mwConfig.QueryRateLimitRequests = cfg.Security.QueryRateLimitReqs
	mwConfig.RateLimitWindow = cfg.Security.RateLimitWindow
	mwConfig.RateLimitDisabled = cfg.Security.RateLimitDisabled
	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig), cfg.Server.Timeout/2)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Storage layer services
	tree.AddStorageService(results)
	pendingJobs := eng.PendingJobs()
	pendingJobs.SetCleanupInterval(cfg.Cache.CleanupInterval)
	tree.AddStorageService(pendingJobs)
	if memoryStore != nil {
		tree.AddStorageService(services.NewSweeperService("job-retention-sweeper", memoryStore,
			cfg.Scheduler.JobRetention/4, logging.WithComponent("scheduler")))
	}

	// Execution layer services
	tree.AddExecutionService(sched)
	if bus != nil {
		tree.AddExecutionService(events.NewConsumer(bus, logJobEvent))
	}
	tree.AddExecutionService(autoRefresh)

	// API layer services
	httpService := services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout)
	httpService.OnDrain(func() { handler.SetDraining(true) })
	tree.AddAPIService(httpService)
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// loadCatalog reads the model catalog file, or returns the built-in
// hospitality catalog when no path is configured.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		logging.Info().Msg("No catalog path configured, using built-in models")
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func logJobEvent(ctx context.Context, e *events.JobEvent) {
	event := logging.Ctx(logging.ContextWithJobID(ctx, e.JobID)).Debug()
	if e.Status == scheduler.StatusFailed {
		event = logging.Ctx(logging.ContextWithJobID(ctx, e.JobID)).Warn()
	}
	event.
		Str("type", e.Type).
		Str("from", e.From).
		Str("status", e.Status).
		Int64("duration_ms", e.DurationMS).
		Str("error", e.Error).
		Msg("Job status changed")
}
