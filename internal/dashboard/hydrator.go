// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/innkeeper/internal/bulk"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/metrics"
	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/period"
	"github.com/tomtom215/innkeeper/internal/scheduler"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// twinSuffix marks the comparison-window request of a spotlight card.
const twinSuffix = ":compare"

// Warnings for cards that cannot be hydrated.
const (
	WarnNoQuery     = "card has no query; re-save the card to configure one"
	WarnLegacyView  = "card uses a legacy view configuration; re-save the card to upgrade it"
	WarnNoDateField = "card has no date field or time axis; the dashboard period and comparison do not apply"
	msgPollTimedOut = "timed out waiting for results; retrying may succeed"
)

// ErrSuperseded is returned by Refresh when a newer refresh of the same
// dashboard started before this one finished. Its results are discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer refresh")

// ErrInvalidPeriod wraps period selections that do not resolve.
var ErrInvalidPeriod = errors.New("invalid period selection")

// QueryRunner executes card queries. It is satisfied by *engine.Engine.
type QueryRunner interface {
	Bulk(ctx context.Context, reqs []bulk.Request, nonce string) []bulk.Result
	GetJob(ctx context.Context, id string) (*models.JobStatus, error)
}

// Hydrator owns the hydration state of every dashboard card.
type Hydrator struct {
	registry Registry
	runner   QueryRunner
	pollCfg  scheduler.PollConfig
	clock    scheduler.Clock

	// editMu serializes read-modify-write cycles on the registry.
	editMu sync.Mutex

	mu     sync.Mutex
	states map[string]map[string]*CardState
	nonces map[string]string
}

// NewHydrator creates a Hydrator. A nil clock uses wall time.
func NewHydrator(registry Registry, runner QueryRunner, pollCfg scheduler.PollConfig, clock scheduler.Clock) *Hydrator {
	return &Hydrator{
		registry: registry,
		runner:   runner,
		pollCfg:  pollCfg,
		clock:    clock,
		states:   make(map[string]map[string]*CardState),
		nonces:   make(map[string]string),
	}
}

func (h *Hydrator) now() time.Time {
	if h.clock != nil {
		return h.clock.Now()
	}
	return time.Now()
}

// plannedCard is a card scheduled for hydration in one cycle.
type plannedCard struct {
	card  *Card
	state *CardState
	twin  bool
}

// Refresh hydrates every card of a dashboard from one snapshot and returns
// the resulting card states in dashboard order.
func (h *Hydrator) Refresh(ctx context.Context, dashboardID, trigger string) ([]CardState, error) {
	d, err := h.registry.Get(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	metrics.RecordDashboardRefresh(trigger)

	snap := h.snapshot(d)
	planned, reqs := h.begin(d, snap)

	results := make(map[string]result, len(reqs))
	if len(reqs) > 0 {
		results = h.execute(ctx, reqs, snap.Nonce)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nonces[d.ID] != snap.Nonce {
		logging.Ctx(ctx).Debug().
			Str("dashboard_id", d.ID).
			Str("nonce", snap.Nonce).
			Msg("Discarding superseded dashboard refresh")
		return nil, ErrSuperseded
	}

	for _, p := range planned {
		st := *p.state
		h.finish(ctx, &st, p, results)
		h.states[d.ID][p.card.ID] = &st
	}
	logging.Ctx(ctx).Debug().
		Str("dashboard_id", d.ID).
		Str("trigger", trigger).
		Int("cards", len(d.Cards)).
		Int("requests", len(reqs)).
		Msg("Dashboard refreshed")
	return h.ordered(d), nil
}

// snapshot resolves every card period against one instant.
func (h *Hydrator) snapshot(d *Dashboard) Snapshot {
	snap := Snapshot{
		Nonce:   uuid.New().String(),
		Now:     h.now(),
		Periods: make(map[string]period.Range, len(d.Cards)),
	}
	loc := d.Location()
	for i := range d.Cards {
		sel := d.Period
		if d.Cards[i].Period != nil {
			sel = *d.Cards[i].Period
		}
		if r, err := period.Resolve(sel, snap.Now, loc); err == nil {
			snap.Periods[d.Cards[i].ID] = r
		}
	}
	return snap
}

// begin publishes the loading states of the cycle and builds its bulk
// requests.
func (h *Hydrator) begin(d *Dashboard, snap Snapshot) ([]plannedCard, []bulk.Request) {
	loc := d.Location()
	var (
		planned []plannedCard
		reqs    []bulk.Request
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nonces[d.ID] = snap.Nonce
	if h.states[d.ID] == nil {
		h.states[d.ID] = make(map[string]*CardState)
	}
	for id := range h.states[d.ID] {
		if _, ok := d.Card(id); !ok {
			delete(h.states[d.ID], id)
		}
	}

	for i := range d.Cards {
		card := &d.Cards[i]
		st := &CardState{CardID: card.ID, Mode: card.View.Mode, Nonce: snap.Nonce, UpdatedAt: snap.Now}

		switch {
		case card.Query == nil:
			st.State, st.Warning = StateIdle, WarnNoQuery
		case !card.View.Resolvable():
			st.State, st.Warning = StateIdle, WarnLegacyView
		}
		if st.State == StateIdle {
			metrics.RecordCardHydration(st.Mode, st.State)
			h.states[d.ID][card.ID] = st
			continue
		}

		r, ok := snap.Periods[card.ID]
		if !ok {
			st.State, st.ErrorKind, st.Error = StateError, spec.KindValidation, "card period cannot be resolved"
			metrics.RecordCardHydration(st.Mode, st.State)
			h.states[d.ID][card.ID] = st
			continue
		}
		st.State, st.Period = StateLoading, &r
		if prev := h.states[d.ID][card.ID]; prev != nil {
			st.Visual, st.Spotlight, st.Table, st.result = prev.Visual, prev.Spotlight, prev.Table, prev.result
		}
		h.states[d.ID][card.ID] = st

		p := plannedCard{card: card, state: st}
		if !periodApplies(card) {
			// The query would run unchanged for every window, so a twin
			// could only compare the card against itself.
			st.Warning = WarnNoDateField
			reqs = append(reqs, bulk.Request{ID: card.ID, Config: card.Query})
			planned = append(planned, p)
			continue
		}

		field := spec.FieldRef{}
		if card.DateField != nil {
			field = *card.DateField
		}
		reqs = append(reqs, bulk.Request{ID: card.ID, Config: period.Apply(card.Query, field, r)})

		if sc := card.View.Spotlight; card.View.Mode == ModeSpotlight && sc.ComparisonMode != "" {
			if cr, ok := period.ResolveComparison(sc.ComparisonMode, r, sc.ComparisonRange, loc); ok {
				reqs = append(reqs, bulk.Request{ID: card.ID + twinSuffix, Config: period.Apply(card.Query, field, cr)})
				p.twin = true
			}
		}
		planned = append(planned, p)
	}
	return planned, reqs
}

// periodApplies reports whether a period changes the card's query: it needs
// a date field to filter on or a time axis to bound.
func periodApplies(c *Card) bool {
	if c.DateField != nil && c.DateField.ModelID != "" && c.DateField.FieldID != "" {
		return true
	}
	return c.Query.Time != nil
}

// execute runs the batch and waits for every async entry.
func (h *Hydrator) execute(ctx context.Context, reqs []bulk.Request, nonce string) map[string]result {
	batch := h.runner.Bulk(ctx, reqs, nonce)
	out := make([]result, len(batch))

	poller := scheduler.NewPoller(h.pollCfg, h.runner.GetJob, h.clock)
	var g errgroup.Group
	for i, res := range batch {
		i, res := i, res
		switch {
		case res.Status != bulk.StatusSuccess:
			out[i] = result{err: errors.New(res.Message), kind: res.Kind}
		case res.Response == nil:
			out[i] = result{err: errors.New("empty response"), kind: scheduler.KindExecution}
		case !res.Response.IsAsync():
			out[i] = result{data: res.Response.QueryResult}
		default:
			jobID := res.Response.JobHandle.JobID
			g.Go(func() error {
				out[i] = h.await(logging.ContextWithCardID(ctx, cardOf(res.ID)), poller, jobID)
				return nil
			})
		}
	}
	_ = g.Wait()

	byID := make(map[string]result, len(batch))
	for i, res := range batch {
		byID[res.ID] = out[i]
	}
	return byID
}

func (h *Hydrator) await(ctx context.Context, poller *scheduler.Poller, jobID string) result {
	st, err := poller.Poll(logging.ContextWithJobID(ctx, jobID), jobID, nil)
	var te *scheduler.TimeoutError
	switch {
	case errors.As(err, &te):
		logging.Ctx(ctx).Warn().Str("job_id", jobID).Msg("Gave up waiting for card job")
		return result{jobID: jobID, err: errors.New(msgPollTimedOut), kind: scheduler.KindTimeout}
	case err != nil:
		return result{jobID: jobID, err: err, kind: scheduler.KindExecution}
	case st.Status == scheduler.StatusFailed:
		msg, kind := "job failed", scheduler.KindExecution
		if st.Error != nil {
			msg, kind = st.Error.Message, st.Error.Kind
		}
		return result{jobID: jobID, err: errors.New(msg), kind: kind}
	}
	return result{jobID: jobID, data: st.Result}
}

// finish maps the results of a planned card into st.
func (h *Hydrator) finish(ctx context.Context, st *CardState, p plannedCard, results map[string]result) {
	res := results[p.card.ID]
	st.JobID = res.jobID
	st.UpdatedAt = h.now()

	if res.err != nil {
		st.State, st.Error, st.ErrorKind = StateError, res.err.Error(), res.kind
		logging.Ctx(logging.ContextWithCardID(ctx, p.card.ID)).Warn().
			Str("error_kind", res.kind).
			Str("error", res.err.Error()).
			Msg("Card hydration failed")
		metrics.RecordCardHydration(st.Mode, st.State)
		return
	}

	st.State, st.Error, st.ErrorKind = StateSuccess, "", ""
	st.Visual, st.Spotlight, st.Table, st.result = nil, nil, nil, nil
	switch p.card.View.Mode {
	case ModeVisual:
		st.Visual = MapVisual(p.card.View.Visual, res.data)
	case ModeSpotlight:
		var twin *models.QueryResult
		if p.twin {
			tr := results[p.card.ID+twinSuffix]
			if tr.err != nil {
				st.Warning = "comparison unavailable: " + tr.err.Error()
			}
			twin = tr.data
		}
		st.Spotlight = MapSpotlight(p.card.View.Spotlight, res.data, twin)
	case ModePreviewTable:
		st.Table = PageRows(p.card.View.PreviewTable, res.data, 1)
		st.result = res.data
	case ModeLegacy:
		st.State, st.Warning = StateIdle, WarnLegacyView
	}
	metrics.RecordCardHydration(st.Mode, st.State)
}

func cardOf(requestID string) string {
	return strings.TrimSuffix(requestID, twinSuffix)
}

// ordered returns the states of d's cards in dashboard order. Cards never
// hydrated are idle. The caller holds h.mu.
func (h *Hydrator) ordered(d *Dashboard) []CardState {
	out := make([]CardState, 0, len(d.Cards))
	for _, c := range d.Cards {
		if st := h.states[d.ID][c.ID]; st != nil {
			out = append(out, *st)
			continue
		}
		out = append(out, CardState{CardID: c.ID, Mode: c.View.Mode, State: StateIdle})
	}
	return out
}

// Cards returns the current card states of a dashboard.
func (h *Hydrator) Cards(ctx context.Context, dashboardID string) ([]CardState, error) {
	d, err := h.registry.Get(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ordered(d), nil
}

// Page returns another page of a preview table card from its last result.
func (h *Hydrator) Page(ctx context.Context, dashboardID, cardID string, page int) (*TablePage, error) {
	d, err := h.registry.Get(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	card, ok := d.Card(cardID)
	if !ok || card.View.Mode != ModePreviewTable {
		return nil, ErrNotFound
	}
	h.mu.Lock()
	st := h.states[d.ID][cardID]
	h.mu.Unlock()
	var res *models.QueryResult
	if st != nil {
		res = st.result
	}
	return PageRows(card.View.PreviewTable, res, page), nil
}

// SetPeriod changes the period of a card. A linked card propagates the
// change to every linked card of its group. It returns the ids of the
// changed cards.
func (h *Hydrator) SetPeriod(ctx context.Context, dashboardID, cardID string, sel period.Selection) ([]string, error) {
	h.editMu.Lock()
	defer h.editMu.Unlock()

	d, err := h.registry.Get(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	if _, err := period.Resolve(sel, h.now(), d.Location()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}
	card, ok := d.Card(cardID)
	if !ok {
		return nil, ErrNotFound
	}

	group := card.LinkGroup()
	var changed []string
	for i := range d.Cards {
		c := &d.Cards[i]
		target := c.ID == cardID ||
			(card.Linked && c.Linked && group != "" && c.LinkGroup() == group)
		if !target {
			continue
		}
		s := sel
		c.Period = &s
		changed = append(changed, c.ID)
	}
	if err := h.registry.Put(ctx, d); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().
		Str("dashboard_id", d.ID).
		Str("card_id", cardID).
		Str("preset", sel.Preset).
		Strs("changed", changed).
		Msg("Card period changed")
	return changed, nil
}

// Link joins a card to its period group.
func (h *Hydrator) Link(ctx context.Context, dashboardID, cardID string) error {
	return h.setLinked(ctx, dashboardID, cardID, true)
}

// Unlink isolates a card from later group-wide period changes. Its current
// period and state are kept.
func (h *Hydrator) Unlink(ctx context.Context, dashboardID, cardID string) error {
	return h.setLinked(ctx, dashboardID, cardID, false)
}

func (h *Hydrator) setLinked(ctx context.Context, dashboardID, cardID string, linked bool) error {
	h.editMu.Lock()
	defer h.editMu.Unlock()

	d, err := h.registry.Get(ctx, dashboardID)
	if err != nil {
		return err
	}
	card, ok := d.Card(cardID)
	if !ok {
		return ErrNotFound
	}
	card.Linked = linked
	return h.registry.Put(ctx, d)
}
