// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package dashboard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/innkeeper/internal/bulk"
	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/period"
	"github.com/tomtom215/innkeeper/internal/scheduler"
	"github.com/tomtom215/innkeeper/internal/spec"
)

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeClock advances instantly whenever something waits on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// fakeRunner answers bulk entries through respond and jobs through jobs.
type fakeRunner struct {
	mu      sync.Mutex
	batches [][]bulk.Request
	nonces  []string
	respond func(req bulk.Request) bulk.Result
	jobs    func(id string) *models.JobStatus
	// gate, when set, blocks the first Bulk call until closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeRunner) Bulk(_ context.Context, reqs []bulk.Request, nonce string) []bulk.Result {
	f.mu.Lock()
	f.batches = append(f.batches, reqs)
	f.nonces = append(f.nonces, nonce)
	first := len(f.batches) == 1
	f.mu.Unlock()

	if first && f.gate != nil {
		close(f.entered)
		<-f.gate
	}
	out := make([]bulk.Result, len(reqs))
	for i, r := range reqs {
		out[i] = f.respond(r)
	}
	return out
}

func (f *fakeRunner) GetJob(_ context.Context, id string) (*models.JobStatus, error) {
	if f.jobs == nil {
		return nil, scheduler.ErrJobNotFound
	}
	return f.jobs(id), nil
}

func (f *fakeRunner) lastBatch() []bulk.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[len(f.batches)-1]
}

func syncResult(id string, rows ...map[string]interface{}) bulk.Result {
	return bulk.Result{ID: id, Status: bulk.StatusSuccess, Response: &models.QueryResponse{
		QueryResult: &models.QueryResult{
			Columns: []models.Column{{Name: "channel", Type: "string"}, {Name: "sum_revenue", Type: "number"}},
			Rows:    rows,
		},
	}}
}

func revenueRows(id string) bulk.Result {
	return syncResult(id,
		map[string]interface{}{"channel": "web", "sum_revenue": 120.0},
		map[string]interface{}{"channel": "app", "sum_revenue": 80.0},
	)
}

func revenueQuery() *spec.QuerySpec {
	return &spec.QuerySpec{
		Models:     []string{"bookings"},
		Dimensions: []spec.Dimension{{ModelID: "bookings", FieldID: "channel"}},
		Metrics:    []spec.Metric{{ModelID: "bookings", FieldID: "revenue", Aggregation: spec.AggSum}},
	}
}

var bookedAt = &spec.FieldRef{ModelID: "bookings", FieldID: "booked_at"}

func testDashboard() *Dashboard {
	return &Dashboard{
		ID:     "ops",
		Name:   "Operations",
		Period: period.Selection{Preset: period.ThisMonth},
		Cards: []Card{
			{ID: "chart", TemplateID: "revenue", Query: revenueQuery(), DateField: bookedAt, Linked: true,
				View: ViewConfig{Mode: ModeVisual, Visual: &VisualConfig{MetricAlias: "sum_revenue"}}},
			{ID: "kpi", TemplateID: "revenue", Query: revenueQuery(), DateField: bookedAt, Linked: true,
				View: ViewConfig{Mode: ModeSpotlight, Spotlight: &SpotlightConfig{Aggregation: "sum", ComparisonMode: period.ComparePrevious}}},
			{ID: "table", TemplateID: "revenue", Query: revenueQuery(), DateField: bookedAt,
				View: ViewConfig{Mode: ModePreviewTable, PreviewTable: &PreviewTableConfig{PageSize: 1}}},
			{ID: "empty", View: ViewConfig{Mode: ModeVisual, Visual: &VisualConfig{}}},
			{ID: "old", Query: revenueQuery(), View: ViewConfig{Mode: ModeLegacy}},
		},
	}
}

func newTestHydrator(t *testing.T, runner *fakeRunner) (*Hydrator, *MemoryRegistry) {
	t.Helper()
	reg := NewMemoryRegistry()
	if err := reg.Put(context.Background(), testDashboard()); err != nil {
		t.Fatal(err)
	}
	return NewHydrator(reg, runner, scheduler.DefaultPollConfig(), &fakeClock{now: t0}), reg
}

func statesByID(states []CardState) map[string]CardState {
	m := make(map[string]CardState, len(states))
	for _, s := range states {
		m[s.CardID] = s
	}
	return m
}

func TestRefreshHydratesEveryMode(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result {
		if r.ID == "kpi:compare" {
			return syncResult(r.ID, map[string]interface{}{"channel": "web", "sum_revenue": 160.0})
		}
		return revenueRows(r.ID)
	}}
	h, _ := newTestHydrator(t, runner)

	states, err := h.Refresh(context.Background(), "ops", TriggerManual)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(states) != 5 {
		t.Fatalf("len(states) = %d, want 5", len(states))
	}
	got := statesByID(states)

	if s := got["chart"]; s.State != StateSuccess || len(s.Visual) != 2 || *s.Visual[0].Metric != 120 {
		t.Errorf("chart = %+v", s)
	}
	if s := got["kpi"]; s.State != StateSuccess || *s.Spotlight.Value != 200 || *s.Spotlight.Delta != 40 {
		t.Errorf("kpi = %+v spotlight %+v", s, s.Spotlight)
	}
	if s := got["table"]; s.State != StateSuccess || s.Table.TotalRows != 2 || len(s.Table.Rows) != 1 {
		t.Errorf("table = %+v", s)
	}
	if s := got["empty"]; s.State != StateIdle || s.Warning != WarnNoQuery {
		t.Errorf("empty = %+v", s)
	}
	if s := got["old"]; s.State != StateIdle || s.Warning != WarnLegacyView {
		t.Errorf("old = %+v", s)
	}

	// One round trip: three cards plus the spotlight twin.
	ids := make([]string, 0, 4)
	for _, r := range runner.lastBatch() {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	want := []string{"chart", "kpi", "kpi:compare", "table"}
	if len(runner.batches) != 1 || len(ids) != len(want) {
		t.Fatalf("batches = %d, ids = %v", len(runner.batches), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
}

func TestRefreshUsesOneSnapshot(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result { return revenueRows(r.ID) }}
	h, _ := newTestHydrator(t, runner)
	if _, err := h.Refresh(context.Background(), "ops", TriggerManual); err != nil {
		t.Fatal(err)
	}

	wantFrom := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	for _, r := range runner.lastBatch() {
		from, to, ok := spec.ExtractFilterRange(r.Config, *bookedAt)
		if !ok {
			t.Fatalf("%s: no date filter", r.ID)
		}
		if r.ID == "kpi:compare" {
			wantPrevFrom := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
			if !from.Equal(wantPrevFrom) || !to.Equal(wantFrom.Add(-time.Millisecond)) {
				t.Errorf("%s: range = %v .. %v", r.ID, from, to)
			}
			continue
		}
		if !from.Equal(wantFrom) || !to.Equal(wantTo) {
			t.Errorf("%s: range = %v .. %v, want %v .. %v", r.ID, from, to, wantFrom, wantTo)
		}
	}
	if len(runner.nonces) != 1 || runner.nonces[0] == "" {
		t.Errorf("nonces = %v", runner.nonces)
	}
}

func TestRefreshIsolatesCardErrors(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result {
		if r.ID == "chart" {
			return bulk.Result{ID: r.ID, Status: bulk.StatusError, Kind: spec.KindValidation, Message: "unknown field"}
		}
		return revenueRows(r.ID)
	}}
	h, _ := newTestHydrator(t, runner)

	states, err := h.Refresh(context.Background(), "ops", TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	got := statesByID(states)
	if s := got["chart"]; s.State != StateError || s.ErrorKind != spec.KindValidation || s.Error != "unknown field" {
		t.Errorf("chart = %+v", s)
	}
	if got["table"].State != StateSuccess || got["kpi"].State != StateSuccess {
		t.Errorf("siblings = %s / %s", got["table"].State, got["kpi"].State)
	}
}

func asyncHandle(id, jobID string) bulk.Result {
	return bulk.Result{ID: id, Status: bulk.StatusSuccess, Response: &models.QueryResponse{
		JobHandle: &models.JobHandle{JobID: jobID, Status: scheduler.StatusQueued},
	}}
}

func TestRefreshPollsAsyncJobs(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	polls := make(map[string]int)
	runner := &fakeRunner{
		respond: func(r bulk.Request) bulk.Result {
			switch r.ID {
			case "chart":
				return asyncHandle(r.ID, "job-ok")
			case "table":
				return asyncHandle(r.ID, "job-bad")
			}
			return revenueRows(r.ID)
		},
		jobs: func(id string) *models.JobStatus {
			mu.Lock()
			polls[id]++
			n := polls[id]
			mu.Unlock()
			if n < 3 {
				return &models.JobStatus{JobID: id, Status: scheduler.StatusRunning}
			}
			if id == "job-bad" {
				return &models.JobStatus{JobID: id, Status: scheduler.StatusFailed,
					Error: &models.JobError{Kind: scheduler.KindExecution, Message: "warehouse exploded"}}
			}
			return &models.JobStatus{JobID: id, Status: scheduler.StatusCompleted, Result: revenueRows("").Response.QueryResult}
		},
	}
	h, _ := newTestHydrator(t, runner)

	states, err := h.Refresh(context.Background(), "ops", TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	got := statesByID(states)
	if s := got["chart"]; s.State != StateSuccess || s.JobID != "job-ok" || len(s.Visual) != 2 {
		t.Errorf("chart = %+v", s)
	}
	if s := got["table"]; s.State != StateError || s.ErrorKind != scheduler.KindExecution || s.Error != "warehouse exploded" {
		t.Errorf("table = %+v", s)
	}
}

func TestRefreshPollTimeoutIsDistinctFromFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		respond: func(r bulk.Request) bulk.Result {
			if r.ID == "chart" {
				return asyncHandle(r.ID, "job-slow")
			}
			return revenueRows(r.ID)
		},
		jobs: func(id string) *models.JobStatus {
			return &models.JobStatus{JobID: id, Status: scheduler.StatusRunning}
		},
	}
	h, _ := newTestHydrator(t, runner)

	states, err := h.Refresh(context.Background(), "ops", TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	s := statesByID(states)["chart"]
	if s.State != StateError || s.ErrorKind != scheduler.KindTimeout || s.Error != msgPollTimedOut {
		t.Errorf("chart = %+v", s)
	}
}

func TestRefreshDiscardsSupersededResults(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		respond: func(r bulk.Request) bulk.Result { return revenueRows(r.ID) },
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	h, _ := newTestHydrator(t, runner)

	errc := make(chan error, 1)
	go func() {
		_, err := h.Refresh(context.Background(), "ops", TriggerManual)
		errc <- err
	}()
	<-runner.entered

	states, err := h.Refresh(context.Background(), "ops", TriggerAuto)
	if err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	close(runner.gate)
	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first Refresh() error = %v, want ErrSuperseded", err)
	}

	current, err := h.Cards(context.Background(), "ops")
	if err != nil {
		t.Fatal(err)
	}
	second := runner.nonces[1]
	for i, s := range current {
		if s.Nonce != second || s.Nonce != states[i].Nonce {
			t.Errorf("%s nonce = %q, want %q", s.CardID, s.Nonce, second)
		}
	}
}

func TestSetPeriodPropagatesToLinkedCards(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result { return revenueRows(r.ID) }}
	h, reg := newTestHydrator(t, runner)
	ctx := context.Background()

	changed, err := h.SetPeriod(ctx, "ops", "chart", period.Selection{Preset: period.Last7Days})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(changed)
	if len(changed) != 2 || changed[0] != "chart" || changed[1] != "kpi" {
		t.Errorf("changed = %v, want [chart kpi]", changed)
	}

	d, _ := reg.Get(ctx, "ops")
	table, _ := d.Card("table")
	if table.Period != nil {
		t.Errorf("unlinked table period = %+v", table.Period)
	}

	if err := h.Unlink(ctx, "ops", "kpi"); err != nil {
		t.Fatal(err)
	}
	changed, err = h.SetPeriod(ctx, "ops", "chart", period.Selection{Preset: period.Yesterday})
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0] != "chart" {
		t.Errorf("after unlink changed = %v", changed)
	}
	d, _ = reg.Get(ctx, "ops")
	kpi, _ := d.Card("kpi")
	if kpi.Period == nil || kpi.Period.Preset != period.Last7Days {
		t.Errorf("unlinked kpi period = %+v, want last_7_days kept", kpi.Period)
	}

	if err := h.Link(ctx, "ops", "table"); err != nil {
		t.Fatal(err)
	}
	changed, _ = h.SetPeriod(ctx, "ops", "table", period.Selection{Preset: period.ThisYear})
	sort.Strings(changed)
	if len(changed) != 2 || changed[0] != "chart" || changed[1] != "table" {
		t.Errorf("after link changed = %v", changed)
	}
}

func TestSetPeriodRejectsBadSelection(t *testing.T) {
	t.Parallel()

	h, _ := newTestHydrator(t, &fakeRunner{})
	ctx := context.Background()
	if _, err := h.SetPeriod(ctx, "ops", "chart", period.Selection{Preset: "fortnight"}); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("unknown preset error = %v", err)
	}
	if _, err := h.SetPeriod(ctx, "ops", "ghost", period.Selection{Preset: period.Today}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown card error = %v", err)
	}
	if _, err := h.Refresh(ctx, "missing", TriggerManual); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown dashboard error = %v", err)
	}
}

func TestPageServesLastResult(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result { return revenueRows(r.ID) }}
	h, _ := newTestHydrator(t, runner)
	ctx := context.Background()
	if _, err := h.Refresh(ctx, "ops", TriggerManual); err != nil {
		t.Fatal(err)
	}

	p, err := h.Page(ctx, "ops", "table", 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Page != 2 || len(p.Rows) != 1 || p.Rows[0]["channel"] != "app" {
		t.Errorf("page = %+v", p)
	}
	if _, err := h.Page(ctx, "ops", "chart", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Page(chart) error = %v", err)
	}
}

func TestAutoRefresherOnlyRefreshesEnabledDashboards(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result { return revenueRows(r.ID) }}
	h, reg := newTestHydrator(t, runner)
	ctx := context.Background()

	auto := testDashboard()
	auto.ID = "lobby"
	auto.AutoRefresh = true
	if err := reg.Put(ctx, auto); err != nil {
		t.Fatal(err)
	}

	a := NewAutoRefresher(reg, h, 0)
	if a.interval != DefaultAutoRefreshInterval {
		t.Errorf("interval = %v", a.interval)
	}
	if n := a.RefreshAll(ctx); n != 1 {
		t.Errorf("RefreshAll() = %d, want 1", n)
	}
	if len(runner.batches) != 1 {
		t.Errorf("batches = %d, want 1", len(runner.batches))
	}
	states, _ := h.Cards(ctx, "ops")
	for _, s := range states {
		if s.State != StateIdle || s.Nonce != "" {
			t.Errorf("ops card %s hydrated: %+v", s.CardID, s)
		}
	}
}

func TestRefreshSkipsComparisonWithoutDateField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		dateField *spec.FieldRef
		time      *spec.TimeAxis
		wantTwin  bool
		wantWarn  string
	}{
		{"no date field", nil, nil, false, WarnNoDateField},
		{"empty date field", &spec.FieldRef{}, nil, false, WarnNoDateField},
		{"time axis", nil, &spec.TimeAxis{ModelID: "bookings", Field: "booked_at", Bucket: "day"}, true, ""},
		{"date field", bookedAt, nil, true, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := revenueQuery()
			q.Time = tt.time
			d := &Dashboard{
				ID:     "solo",
				Period: period.Selection{Preset: period.ThisMonth},
				Cards: []Card{{ID: "kpi", Query: q, DateField: tt.dateField,
					View: ViewConfig{Mode: ModeSpotlight, Spotlight: &SpotlightConfig{Aggregation: "sum", ComparisonMode: period.ComparePrevious}}}},
			}
			reg := NewMemoryRegistry()
			if err := reg.Put(context.Background(), d); err != nil {
				t.Fatal(err)
			}
			runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result { return revenueRows(r.ID) }}
			h := NewHydrator(reg, runner, scheduler.DefaultPollConfig(), &fakeClock{now: t0})

			states, err := h.Refresh(context.Background(), "solo", TriggerManual)
			if err != nil {
				t.Fatal(err)
			}
			if n := len(runner.lastBatch()); (n == 2) != tt.wantTwin {
				t.Errorf("requests = %d, want twin %v", n, tt.wantTwin)
			}
			s := states[0]
			if s.State != StateSuccess || s.Warning != tt.wantWarn {
				t.Errorf("state = %s, warning = %q, want %q", s.State, s.Warning, tt.wantWarn)
			}
			if !tt.wantTwin && (s.Spotlight.Comparison != nil || s.Spotlight.Delta != nil) {
				t.Errorf("spotlight = %+v, want no comparison", s.Spotlight)
			}
		})
	}
}

func TestRefreshDropsStatesOfRemovedCards(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{respond: func(r bulk.Request) bulk.Result { return revenueRows(r.ID) }}
	h, reg := newTestHydrator(t, runner)
	ctx := context.Background()
	if _, err := h.Refresh(ctx, "ops", TriggerManual); err != nil {
		t.Fatal(err)
	}

	d := testDashboard()
	d.Cards = d.Cards[:1]
	if err := reg.Put(ctx, d); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Refresh(ctx, "ops", TriggerManual); err != nil {
		t.Fatal(err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.states["ops"]) != 1 || h.states["ops"]["chart"] == nil {
		ids := make([]string, 0, len(h.states["ops"]))
		for id := range h.states["ops"] {
			ids = append(ids, id)
		}
		t.Errorf("states = %v, want [chart]", ids)
	}
}
