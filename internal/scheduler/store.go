// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// JobStore persists jobs between submission and the end of their retention.
// Update applies fn atomically to the stored job; a non-nil error from fn
// leaves the job unchanged. Stores hand out copies.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error)
	Close() error
}

// MemoryStore keeps jobs in a map. Terminal jobs are dropped once they are
// older than the retention.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore creates a MemoryStore. A zero retention keeps jobs forever.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*Job),
		retention: retention,
		now:       time.Now,
	}
}

// Create stores a new job.
func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.clone()
	return nil
}

// Get returns a copy of the job.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok || s.expired(j) {
		return nil, ErrJobNotFound
	}
	return j.clone(), nil
}

// Update applies fn to a copy and stores it when fn succeeds.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Job) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || s.expired(j) {
		return nil, ErrJobNotFound
	}
	next := j.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.clone(), nil
}

// Sweep removes expired jobs and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if s.expired(j) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored jobs, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) expired(j *Job) bool {
	if s.retention <= 0 || j.FinishedAt == nil {
		return false
	}
	return s.now().Sub(*j.FinishedAt) > s.retention
}
