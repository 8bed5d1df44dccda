// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// stubService is a controllable suture.Service.
type stubService struct {
	name     string
	starts   atomic.Int32
	stops    atomic.Int32
	failures atomic.Int32

	mu       sync.Mutex
	maxFails int32
}

func newStubService(name string) *stubService {
	return &stubService{name: name}
}

func (s *stubService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	defer s.stops.Add(1)

	s.mu.Lock()
	maxFails := s.maxFails
	s.mu.Unlock()

	if maxFails > 0 && s.failures.Add(1) <= maxFails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

// failTimes makes the next n runs fail immediately.
func (s *stubService) failTimes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxFails = int32(n)
}

func (s *stubService) String() string {
	return s.name
}
