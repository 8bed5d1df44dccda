// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/innkeeper/internal/models"
)

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

func sequenceFetch(statuses ...string) (FetchFunc, *int) {
	calls := 0
	return func(_ context.Context, id string) (*models.JobStatus, error) {
		s := statuses[len(statuses)-1]
		if calls < len(statuses) {
			s = statuses[calls]
		}
		calls++
		return &models.JobStatus{JobID: id, Status: s}, nil
	}, &calls
}

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestPollConfigDelay(t *testing.T) {
	t.Parallel()

	fixed := DefaultPollConfig()
	for attempt := 0; attempt < 5; attempt++ {
		if d := fixed.Delay(attempt); d != 1500*time.Millisecond {
			t.Errorf("fixed Delay(%d) = %v", attempt, d)
		}
	}

	exp := PollConfig{Interval: time.Second, Backoff: BackoffExponential, Multiplier: 2, MaxInterval: 10 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for attempt, w := range want {
		if d := exp.Delay(attempt); d != w {
			t.Errorf("exponential Delay(%d) = %v, want %v", attempt, d, w)
		}
	}
}

func TestPollStateTerminalSticks(t *testing.T) {
	t.Parallel()

	cfg := DefaultPollConfig()
	s := NewPollState(cfg, t0)
	var err error
	for _, status := range []string{StatusQueued, StatusRunning, StatusCompleted} {
		s, err = s.Next(cfg, t0, status)
		if err != nil {
			t.Fatalf("Next(%s): %v", status, err)
		}
	}
	if !s.Done() || s.Status != StatusCompleted {
		t.Fatalf("state = %+v", s)
	}
	attempt := s.Attempt

	for _, late := range []string{StatusRunning, StatusQueued, StatusFailed} {
		s, err = s.Next(cfg, t0.Add(time.Hour), late)
		if err != nil {
			t.Errorf("Next after terminal returned %v", err)
		}
		if s.Status != StatusCompleted {
			t.Errorf("observed %s after completed; state moved to %s", late, s.Status)
		}
	}
	if s.Attempt != attempt {
		t.Errorf("Attempt changed after terminal: %d → %d", attempt, s.Attempt)
	}
}

func TestPollStateSchedule(t *testing.T) {
	t.Parallel()

	cfg := DefaultPollConfig()
	s := NewPollState(cfg, t0)
	if !s.NextPollAt.Equal(t0) || !s.Deadline.Equal(t0.Add(60*time.Second)) {
		t.Fatalf("initial state = %+v", s)
	}

	s, err := s.Next(cfg, t0, StatusQueued)
	if err != nil {
		t.Fatal(err)
	}
	if s.Attempt != 1 || !s.NextPollAt.Equal(t0.Add(1500*time.Millisecond)) {
		t.Errorf("after first poll = %+v", s)
	}

	// The last poll is clamped to the deadline.
	s, err = s.Next(cfg, t0.Add(59*time.Second), StatusRunning)
	if err != nil {
		t.Fatal(err)
	}
	if !s.NextPollAt.Equal(s.Deadline) {
		t.Errorf("NextPollAt = %v, want deadline %v", s.NextPollAt, s.Deadline)
	}

	_, err = s.Next(cfg, s.Deadline, StatusRunning)
	var te *TimeoutError
	if !errors.As(err, &te) || !te.ClientSide {
		t.Errorf("err = %v, want client-side TimeoutError", err)
	}
}

func TestPollerStopsAtFirstTerminalStatus(t *testing.T) {
	t.Parallel()

	fetch, calls := sequenceFetch(StatusQueued, StatusRunning, StatusCompleted, StatusRunning)
	clock := &fakeClock{now: t0}
	p := NewPoller(DefaultPollConfig(), fetch, clock)

	var seen []string
	st, err := p.Poll(context.Background(), "job-1", func(s PollState) { seen = append(seen, s.Status) })
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if st.Status != StatusCompleted {
		t.Errorf("Status = %s", st.Status)
	}
	if *calls != 3 {
		t.Errorf("fetches = %d, want 3", *calls)
	}
	want := []string{StatusQueued, StatusRunning, StatusCompleted}
	for i, s := range want {
		if seen[i] != s {
			t.Errorf("seen[%d] = %s, want %s", i, seen[i], s)
		}
	}
	if got := clock.Now().Sub(t0); got != 3*time.Second {
		t.Errorf("elapsed = %v, want two 1.5s intervals", got)
	}
}

func TestPollerClientTimeout(t *testing.T) {
	t.Parallel()

	fetch, calls := sequenceFetch(StatusRunning)
	clock := &fakeClock{now: t0}
	p := NewPoller(DefaultPollConfig(), fetch, clock)

	_, err := p.Poll(context.Background(), "job-1", nil)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if !te.ClientSide || te.After != 60*time.Second {
		t.Errorf("TimeoutError = %+v", te)
	}
	// Polls at 0, 1.5s, ... 60s.
	if *calls != 41 {
		t.Errorf("fetches = %d, want 41", *calls)
	}
}

func TestPollerExponentialBackoff(t *testing.T) {
	t.Parallel()

	fetch, calls := sequenceFetch(StatusRunning)
	clock := &fakeClock{now: t0}
	cfg := PollConfig{Interval: time.Second, Timeout: 30 * time.Second, Backoff: BackoffExponential, Multiplier: 2, MaxInterval: 10 * time.Second}

	_, err := NewPoller(cfg, fetch, clock).Poll(context.Background(), "job-1", nil)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	// Polls at 0, 1, 3, 7, 15, 25, 30.
	if *calls != 7 {
		t.Errorf("fetches = %d, want 7", *calls)
	}
}

func TestPollerFetchError(t *testing.T) {
	t.Parallel()

	fetch := func(context.Context, string) (*models.JobStatus, error) { return nil, ErrJobNotFound }
	_, err := NewPoller(DefaultPollConfig(), fetch, &fakeClock{now: t0}).Poll(context.Background(), "gone", nil)
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestPollerContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetch, _ := sequenceFetch(StatusRunning)
	// Wall clock: the first poll happens immediately, the second wait sees
	// the canceled context.
	_, err := NewPoller(DefaultPollConfig(), fetch, nil).Poll(ctx, "job-1", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
