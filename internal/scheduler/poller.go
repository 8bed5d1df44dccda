// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package scheduler

import (
	"context"
	"time"

	"github.com/tomtom215/innkeeper/internal/models"
)

// Backoff strategies.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// PollConfig describes how a caller polls a job.
type PollConfig struct {
	Interval    time.Duration `koanf:"poll_interval"`
	Timeout     time.Duration `koanf:"poll_timeout"`
	Backoff     string        `koanf:"backoff"`
	MaxInterval time.Duration `koanf:"poll_max_interval"`
	Multiplier  float64       `koanf:"poll_multiplier"`
}

// DefaultPollConfig polls every 1.5s for up to 60s.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    1500 * time.Millisecond,
		Timeout:     60 * time.Second,
		Backoff:     BackoffFixed,
		MaxInterval: 10 * time.Second,
		Multiplier:  2,
	}
}

// Delay returns the wait before poll number attempt+1.
func (c PollConfig) Delay(attempt int) time.Duration {
	if c.Backoff != BackoffExponential || attempt <= 0 {
		return c.Interval
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(c.Interval)
	for i := 0; i < attempt; i++ {
		d *= mult
		if c.MaxInterval > 0 && d >= float64(c.MaxInterval) {
			return c.MaxInterval
		}
	}
	return time.Duration(d)
}

// PollState is the explicit state of one polling loop.
type PollState struct {
	Attempt    int
	NextPollAt time.Time
	Deadline   time.Time
	// Status is the last status observed. Once terminal it never changes.
	Status string
}

// NewPollState starts polling immediately.
func NewPollState(cfg PollConfig, now time.Time) PollState {
	return PollState{NextPollAt: now, Deadline: now.Add(cfg.Timeout)}
}

// Done reports whether a terminal status has been observed.
func (s PollState) Done() bool {
	return IsTerminal(s.Status)
}

// Next folds an observed status into the state. A terminal status sticks:
// later observations cannot move the state back to queued or running. When
// the deadline passes without a terminal status, Next returns a client-side
// TimeoutError.
func (s PollState) Next(cfg PollConfig, now time.Time, observed string) (PollState, error) {
	if s.Done() {
		return s, nil
	}
	s.Status = observed
	if s.Done() {
		return s, nil
	}
	if !now.Before(s.Deadline) {
		return s, &TimeoutError{Op: "poll", After: cfg.Timeout, ClientSide: true}
	}
	next := now.Add(cfg.Delay(s.Attempt))
	if next.After(s.Deadline) {
		next = s.Deadline
	}
	s.Attempt++
	s.NextPollAt = next
	return s, nil
}

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// FetchFunc loads the current status of a job.
type FetchFunc func(ctx context.Context, jobID string) (*models.JobStatus, error)

// Poller waits for jobs to finish.
type Poller struct {
	cfg   PollConfig
	clock Clock
	fetch FetchFunc
}

// NewPoller creates a Poller. A nil clock uses wall time.
func NewPoller(cfg PollConfig, fetch FetchFunc, clock Clock) *Poller {
	if clock == nil {
		clock = realClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollConfig().Timeout
	}
	return &Poller{cfg: cfg, clock: clock, fetch: fetch}
}

// Poll fetches jobID until it completes or fails, returning the first
// terminal status seen. onStatus, if set, observes every poll.
func (p *Poller) Poll(ctx context.Context, jobID string, onStatus func(PollState)) (*models.JobStatus, error) {
	state := NewPollState(p.cfg, p.clock.Now())
	for {
		if wait := state.NextPollAt.Sub(p.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-p.clock.After(wait):
			}
		}

		st, err := p.fetch(ctx, jobID)
		if err != nil {
			return nil, err
		}

		state, err = state.Next(p.cfg, p.clock.Now(), st.Status)
		if onStatus != nil {
			onStatus(state)
		}
		if err != nil {
			return nil, err
		}
		if state.Done() {
			return st, nil
		}
	}
}
