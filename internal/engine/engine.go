// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package engine ties validation, derived field resolution, planning,
// scheduling and the result cache into the operations the HTTP surface and
// the dashboard hydrator call.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/innkeeper/internal/bulk"
	"github.com/tomtom215/innkeeper/internal/cache"
	"github.com/tomtom215/innkeeper/internal/derived"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/metrics"
	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/planner"
	"github.com/tomtom215/innkeeper/internal/scheduler"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// Config tunes the engine.
type Config struct {
	// StrictDerived surfaces stale derived fields instead of recompiling.
	StrictDerived bool `koanf:"strict_derived"`
	// PreviewRowLimit caps preview results.
	PreviewRowLimit int `koanf:"preview_row_limit"`
	// BulkConcurrency bounds in-flight requests per bulk batch.
	BulkConcurrency int `koanf:"bulk_concurrency"`
	// PendingJobTTL is how long an unpolled async job keeps its claim on a
	// result cache key. Match it to the job store retention.
	PendingJobTTL time.Duration `koanf:"pending_job_ttl"`
	// MaxPendingJobs bounds the tracked async jobs.
	MaxPendingJobs int `koanf:"max_pending_jobs"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		PreviewRowLimit: 500,
		BulkConcurrency: bulk.DefaultConcurrency,
		PendingJobTTL:   time.Hour,
		MaxPendingJobs:  10_000,
	}
}

// Executor is the part of the scheduler the engine drives.
type Executor interface {
	Execute(ctx context.Context, plan *planner.ExecutionPlan, opts scheduler.Options) (*models.QueryResponse, error)
	RunSync(ctx context.Context, plan *planner.ExecutionPlan) (*models.QueryResult, error)
	GetJob(ctx context.Context, id string) (*models.JobStatus, error)
}

type pendingEntry struct {
	key string
	ttl time.Duration
}

// Engine executes QuerySpecs.
type Engine struct {
	catalog spec.Catalog
	derived *derived.Service
	planner *planner.Planner
	exec    Executor
	results *cache.Cache
	cfg     Config

	// pending maps async job ids to the pendingEntry their result fills.
	pending *cache.Cache
}

// New creates an Engine. results may be nil to disable caching.
func New(cat spec.Catalog, derivedSvc *derived.Service, pl *planner.Planner, exec Executor, results *cache.Cache, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.PreviewRowLimit <= 0 {
		cfg.PreviewRowLimit = def.PreviewRowLimit
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = def.BulkConcurrency
	}
	if cfg.PendingJobTTL <= 0 {
		cfg.PendingJobTTL = def.PendingJobTTL
	}
	if cfg.MaxPendingJobs <= 0 {
		cfg.MaxPendingJobs = def.MaxPendingJobs
	}
	return &Engine{
		catalog: cat,
		derived: derivedSvc,
		planner: pl,
		exec:    exec,
		results: results,
		cfg:     cfg,
		pending: cache.New("pending-jobs", cfg.PendingJobTTL, cfg.MaxPendingJobs),
	}
}

// PendingJobs returns the tracker of unpolled async jobs. Run it under a
// supervisor so expired entries are swept.
func (e *Engine) PendingJobs() *cache.Cache {
	return e.pending
}

// Plan validates q, resolves its derived fields and builds its plan.
func (e *Engine) Plan(ctx context.Context, q *spec.QuerySpec) (plan *planner.ExecutionPlan, err error) {
	start := time.Now()
	defer func() { metrics.RecordPlan(time.Since(start), err) }()

	defs, err := e.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.planner.Plan(q, defs)
}

func (e *Engine) resolve(ctx context.Context, q *spec.QuerySpec) (map[string]*derived.Definition, error) {
	if errs := spec.Validate(q, e.catalog, e.derived.Lookup(ctx)); errs != nil {
		return nil, errs
	}
	return e.derived.Resolve(ctx, q, e.cfg.StrictDerived)
}

// Preview runs a lightweight ad hoc spec synchronously, capped at the
// preview row limit, with the plan explanation attached.
func (e *Engine) Preview(ctx context.Context, q *spec.QuerySpec) (*models.QueryResult, error) {
	if q != nil {
		q = q.Clone()
		if q.Limit == 0 || q.Limit > e.cfg.PreviewRowLimit {
			q.Limit = e.cfg.PreviewRowLimit
		}
		q.Options.Explain = true
	}
	plan, err := e.Plan(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.exec.RunSync(ctx, plan)
}

// Query executes q, answering from the result cache when (q, nonce) was
// already computed with the same derived field compilations. The response
// is a synchronous result or a job handle.
func (e *Engine) Query(ctx context.Context, q *spec.QuerySpec, nonce string) (*models.QueryResponse, error) {
	start := time.Now()
	defs, err := e.resolve(ctx, q)
	if err != nil {
		metrics.RecordPlan(time.Since(start), err)
		return nil, err
	}

	var key string
	if e.results != nil {
		if key, err = resultKey(q, nonce, defs); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Query has no cache key, running uncached")
			key = ""
		} else if v, ok := e.results.Get(key); ok {
			metrics.RecordExecutionMode("cached")
			return &models.QueryResponse{QueryResult: markCached(v.(*models.QueryResult))}, nil
		}
	}

	plan, err := e.planner.Plan(q, defs)
	metrics.RecordPlan(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	resp, err := e.exec.Execute(ctx, plan, scheduler.Options{
		AllowAsync: q.Options.AllowAsync,
		ForceAsync: q.Options.ForceAsync,
	})
	if err != nil {
		return nil, err
	}
	if key == "" {
		return resp, nil
	}

	ttl := time.Duration(q.Options.CacheTTLSeconds) * time.Second
	if resp.IsAsync() {
		e.pending.SetIfAbsent(resp.JobID, pendingEntry{key: key, ttl: ttl})
		return resp, nil
	}
	e.results.SetIfAbsentWithTTL(key, resp.QueryResult, ttl)
	return resp, nil
}

// resultKey extends the canonical spec hash with the compilation of every
// derived field the query uses, so rewriting a field never serves results
// computed from its previous expression.
func resultKey(q *spec.QuerySpec, nonce string, defs map[string]*derived.Definition) (string, error) {
	key, err := spec.CanonicalHash(q, nonce)
	if err != nil || len(defs) == 0 {
		return key, err
	}

	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(key))
	for _, id := range ids {
		d := defs[id]
		fmt.Fprintf(h, "\n%s:%s:%s:%s", id, d.Kind, d.CompiledSQLHash, d.ModelGraphSignature)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GetJob returns the status of an async job. A completed job's result is
// cached under the key of the query that submitted it.
func (e *Engine) GetJob(ctx context.Context, id string) (*models.JobStatus, error) {
	st, err := e.exec.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if scheduler.IsTerminal(st.Status) {
		v, ok := e.pending.Get(id)
		e.pending.Delete(id)
		if ok && st.Status == scheduler.StatusCompleted && st.Result != nil {
			p := v.(pendingEntry)
			e.results.SetIfAbsentWithTTL(p.key, st.Result, p.ttl)
			logging.Ctx(ctx).Debug().Str("job_id", id).Msg("Cached async job result")
		}
	}
	return st, nil
}

// Bulk runs a batch of independent queries under one refresh nonce.
func (e *Engine) Bulk(ctx context.Context, reqs []bulk.Request, nonce string) []bulk.Result {
	b := bulk.New(func(ctx context.Context, q *spec.QuerySpec) (*models.QueryResponse, error) {
		return e.Query(ctx, q, nonce)
	}, e.cfg.BulkConcurrency)
	return b.Execute(ctx, reqs)
}

// Derived returns the derived field service.
func (e *Engine) Derived() *derived.Service {
	return e.derived
}

func markCached(r *models.QueryResult) *models.QueryResult {
	c := *r
	c.Meta.Cached = true
	return &c
}
