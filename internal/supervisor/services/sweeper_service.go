// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper drops expired entries and reports how many were removed.
type Sweeper interface {
	Sweep() int
}

// DefaultSweepInterval is used when the configured interval is not positive.
const DefaultSweepInterval = time.Minute

// SweeperService runs a Sweeper periodically.
type SweeperService struct {
	target   Sweeper
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewSweeperService creates a SweeperService named name.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSweeperService(name string, target Sweeper, interval time.Duration, logger zerolog.Logger) *SweeperService {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SweeperService{
		target:   target,
		interval: interval,
		logger:   logger.With().Str("service", name).Logger(),
		name:     name,
	}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug().Dur("interval", s.interval).Msg("sweeper running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.target.Sweep(); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("swept expired entries")
			}
		}
	}
}

// String returns the service name for logging.
func (s *SweeperService) String() string {
	return s.name
}
