// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package scheduler runs execution plans either synchronously under a hard
// deadline or as polled jobs on a bounded worker pool.
//
// A job moves queued → running → completed|failed. Transitions are checked
// inside the store's atomic update, so once a terminal status is stored no
// later writer can replace it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/innkeeper/internal/events"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/metrics"
	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/planner"
	"github.com/tomtom215/innkeeper/internal/warehouse"
)

// Execution modes recorded in metrics.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
	ModeDedup = "dedup"
)

// Config tunes the scheduler.
type Config struct {
	Workers     int           `koanf:"workers"`
	QueueSize   int           `koanf:"queue_size"`
	SyncTimeout time.Duration `koanf:"sync_timeout"`
	// SubmitRate is async submissions per second; zero disables admission
	// control.
	SubmitRate  float64    `koanf:"submit_rate"`
	SubmitBurst int        `koanf:"submit_burst"`
	Policy      CostPolicy `koanf:"policy"`
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   64,
		SyncTimeout: 30 * time.Second,
		SubmitRate:  20,
		SubmitBurst: 40,
		Policy:      DefaultCostPolicy(),
	}
}

// Options select the execution path.
type Options struct {
	AllowAsync bool
	ForceAsync bool
}

type task struct {
	jobID string
	plan  *planner.ExecutionPlan
}

// Scheduler executes plans against a warehouse.Executor.
type Scheduler struct {
	exec      warehouse.Executor
	store     JobStore
	publisher events.Publisher
	cfg       Config
	limiter   *rate.Limiter
	queue     chan task
	now       func() time.Time

	mu sync.Mutex
	// active maps a plan hash to its queued or running job.
	active map[string]string
}

// New creates a Scheduler. publisher may be nil.
func New(exec warehouse.Executor, store JobStore, publisher events.Publisher, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = def.SyncTimeout
	}

	var limiter *rate.Limiter
	if cfg.SubmitRate > 0 {
		burst := cfg.SubmitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), burst)
	}

	return &Scheduler{
		exec:      exec,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		limiter:   limiter,
		queue:     make(chan task, cfg.QueueSize),
		now:       time.Now,
		active:    make(map[string]string),
	}
}

// Execute runs plan synchronously unless ForceAsync is set, or the plan is
// expensive and AllowAsync is set. An expensive plan without AllowAsync
// still runs synchronously under the sync deadline.
func (s *Scheduler) Execute(ctx context.Context, plan *planner.ExecutionPlan, opts Options) (*models.QueryResponse, error) {
	if opts.ForceAsync || (opts.AllowAsync && s.cfg.Policy.Expensive(plan.Cost)) {
		handle, err := s.Submit(ctx, plan)
		if err != nil {
			return nil, err
		}
		return &models.QueryResponse{JobHandle: handle}, nil
	}

	result, err := s.RunSync(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &models.QueryResponse{QueryResult: result}, nil
}

// RunSync executes plan in the caller's goroutine, bounded by the sync
// timeout.
func (s *Scheduler) RunSync(ctx context.Context, plan *planner.ExecutionPlan) (*models.QueryResult, error) {
	metrics.RecordExecutionMode(ModeSync)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout)
	defer cancel()

	result, err := s.run(runCtx, plan)
	if err == nil {
		return result, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		metrics.RecordSyncTimeout()
		logging.Ctx(ctx).Warn().
			Str("hash", plan.Hash).
			Dur("timeout", s.cfg.SyncTimeout).
			Msg("Synchronous execution timed out")
		return nil, &TimeoutError{Op: "execute", After: s.cfg.SyncTimeout}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, newExecutionError("", err)
}

// Submit enqueues plan as a job. A plan whose hash matches a queued or
// running job returns that job's handle instead of a new one.
func (s *Scheduler) Submit(ctx context.Context, plan *planner.ExecutionPlan) (*models.JobHandle, error) {
	s.mu.Lock()
	if id, ok := s.active[plan.Hash]; ok {
		job, err := s.store.Get(ctx, id)
		if err == nil && !job.Terminal() {
			s.mu.Unlock()
			metrics.RecordExecutionMode(ModeDedup)
			logging.Ctx(ctx).Debug().
				Str("job_id", job.ID).
				Str("hash", plan.Hash).
				Msg("Joined in-flight job")
			return job.Handle(), nil
		}
		delete(s.active, plan.Hash)
	}

	if s.limiter != nil && !s.limiter.Allow() {
		s.mu.Unlock()
		metrics.RecordAdmissionRejected()
		return nil, ErrRateLimited
	}
	// Sends happen only under mu, so a free slot observed here stays free.
	if len(s.queue) >= cap(s.queue) {
		s.mu.Unlock()
		metrics.RecordAdmissionRejected()
		return nil, ErrQueueFull
	}

	job := newJob(plan.Hash, s.now())
	if err := s.store.Create(ctx, job); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.active[plan.Hash] = job.ID
	s.queue <- task{jobID: job.ID, plan: plan}
	s.mu.Unlock()

	metrics.RecordExecutionMode(ModeAsync)
	metrics.RecordJobTransition("", StatusQueued)
	s.publish(ctx, job, "")

	logging.Ctx(ctx).Info().
		Str("job_id", job.ID).
		Str("hash", plan.Hash).
		Int64("row_estimate", plan.Cost.RowEstimate).
		Msg("Job queued")
	return job.Handle(), nil
}

// GetJob returns the polling view of a job.
func (s *Scheduler) GetJob(ctx context.Context, id string) (*models.JobStatus, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.View(), nil
}

// Serve runs the worker pool until ctx is canceled. It implements
// suture.Service; queued tasks survive a restart.
func (s *Scheduler) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-s.queue:
					s.process(ctx, t)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *Scheduler) String() string {
	return "scheduler-workers"
}

// QueueDepth returns the number of tasks waiting for a worker.
func (s *Scheduler) QueueDepth() int {
	return len(s.queue)
}

func (s *Scheduler) process(ctx context.Context, t task) {
	ctx = logging.ContextWithJobID(ctx, t.jobID)
	defer s.release(t)

	if _, err := s.transition(ctx, t.jobID, StatusRunning, func(j *Job) {
		started := s.now().UTC()
		j.StartedAt = &started
	}); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to start job")
		return
	}

	result, err := s.run(ctx, t.plan)
	if err != nil {
		execErr := newExecutionError(t.jobID, err)
		_, terr := s.transition(ctx, t.jobID, StatusFailed, func(j *Job) {
			j.Error = &models.JobError{Kind: KindExecution, Message: execErr.Message}
		})
		if terr != nil {
			logging.Ctx(ctx).Error().Err(terr).Msg("Failed to record job failure")
		}
		return
	}

	if _, err := s.transition(ctx, t.jobID, StatusCompleted, func(j *Job) {
		j.Result = result
	}); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to record job result")
	}
}

func (s *Scheduler) release(t task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[t.plan.Hash] == t.jobID {
		delete(s.active, t.plan.Hash)
	}
}

// transition moves a job to status, applying mutate in the same atomic
// update. Terminal transitions stamp FinishedAt.
func (s *Scheduler) transition(ctx context.Context, id, to string, mutate func(*Job)) (*Job, error) {
	var from string
	job, err := s.store.Update(ctx, id, func(j *Job) error {
		if !CanTransition(j.Status, to) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, j.Status, to)
		}
		from = j.Status
		j.Status = to
		if mutate != nil {
			mutate(j)
		}
		if IsTerminal(to) {
			finished := s.now().UTC()
			j.FinishedAt = &finished
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordJobTransition(from, to)
	log := logging.Ctx(ctx).Info()
	if to == StatusFailed && job.Error != nil {
		log = logging.Ctx(ctx).Warn().Str("error", job.Error.Message)
	}
	if IsTerminal(to) && job.StartedAt != nil {
		d := job.FinishedAt.Sub(*job.StartedAt)
		metrics.RecordJobDuration(to, d)
		log = log.Dur("duration", d)
	}
	log.Str("job_id", id).Str("from", from).Str("status", to).Msg("Job transition")

	s.publish(ctx, job, from)
	return job, nil
}

func (s *Scheduler) publish(ctx context.Context, job *Job, from string) {
	if s.publisher == nil {
		return
	}
	e := events.NewJobEvent(job.ID, job.Hash, from, job.Status, s.now())
	if job.StartedAt != nil && job.FinishedAt != nil {
		e.DurationMS = job.FinishedAt.Sub(*job.StartedAt).Milliseconds()
	}
	if job.Error != nil {
		e.Error = job.Error.Message
	}
	if err := s.publisher.PublishJobEvent(context.WithoutCancel(ctx), e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish job event")
	}
}

// run executes the plan and its comparison sub-plans concurrently, then
// post-processes the rows into a result.
func (s *Scheduler) run(ctx context.Context, plan *planner.ExecutionPlan) (_ *models.QueryResult, err error) {
	defer recoverExecution(ctx, plan.Hash, &err)
	start := s.now()

	var base []planner.Row
	comparisons := make([][]planner.Row, len(plan.Comparisons))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.query(gctx, "plan", plan.SQL, plan.Args)
		base = rows
		return err
	})
	for i, c := range plan.Comparisons {
		g.Go(func() error {
			rows, err := s.query(gctx, "comparison", c.Plan.SQL, c.Plan.Args)
			if err != nil {
				return fmt.Errorf("comparison %s: %w", c.Name, err)
			}
			comparisons[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string][]planner.Row, len(plan.Comparisons))
	for i, c := range plan.Comparisons {
		byName[c.Name] = comparisons[i]
	}
	rows, anomalies := plan.Finalize(base, byName)
	if rows == nil {
		rows = []planner.Row{}
	}
	var explain []string
	if plan.ShowExplain {
		explain = plan.Explain
	}

	return &models.QueryResult{
		Rows:    rows,
		Columns: plan.Columns,
		SQL:     plan.SQL,
		Meta: models.QueryMeta{
			Hash:       plan.Hash,
			RowCount:   len(rows),
			DurationMS: s.now().Sub(start).Milliseconds(),
			ExecutedAt: start.UTC(),
			Explain:    explain,
			Anomalies:  anomalies,
		},
	}, nil
}

func (s *Scheduler) query(ctx context.Context, kind, sql string, args []interface{}) (_ []planner.Row, err error) {
	defer recoverExecution(ctx, kind, &err)
	start := time.Now()
	rs, err := s.exec.Query(ctx, sql, args...)
	metrics.RecordWarehouseQuery(kind, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return rs.Rows, nil
}

// recoverExecution turns a panic in query execution or result shaping into
// an error so the job fails instead of taking down its worker.
func recoverExecution(ctx context.Context, where string, err *error) {
	if r := recover(); r != nil {
		logging.Ctx(ctx).Error().
			Str("where", where).
			Interface("panic", r).
			Str("stack", string(debug.Stack())).
			Msg("Query execution panicked")
		*err = fmt.Errorf("internal error: %v", r)
	}
}
