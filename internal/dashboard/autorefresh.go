// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/innkeeper/internal/logging"
)

// DefaultAutoRefreshInterval is the automatic refresh period.
const DefaultAutoRefreshInterval = 60 * time.Second

// AutoRefresher refreshes every dashboard with AutoRefresh enabled on a
// fixed interval. It implements suture.Service.
type AutoRefresher struct {
	registry Registry
	hydrator *Hydrator
	interval time.Duration
}

// NewAutoRefresher creates an AutoRefresher. interval <= 0 uses
// DefaultAutoRefreshInterval.
func NewAutoRefresher(registry Registry, hydrator *Hydrator, interval time.Duration) *AutoRefresher {
	if interval <= 0 {
		interval = DefaultAutoRefreshInterval
	}
	return &AutoRefresher{registry: registry, hydrator: hydrator, interval: interval}
}

// Serve runs until ctx is canceled.
func (a *AutoRefresher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", a.interval).Msg("Dashboard auto refresh started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every auto-refresh dashboard once and returns how
// many were refreshed.
func (a *AutoRefresher) RefreshAll(ctx context.Context) int {
	dashboards, err := a.registry.List(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to list dashboards for auto refresh")
		return 0
	}
	n := 0
	for _, d := range dashboards {
		if !d.AutoRefresh {
			continue
		}
		if _, err := a.hydrator.Refresh(ctx, d.ID, TriggerAuto); err != nil {
			if !errors.Is(err, ErrSuperseded) {
				logging.Ctx(ctx).Warn().Err(err).Str("dashboard_id", d.ID).Msg("Auto refresh failed")
			}
			continue
		}
		n++
	}
	return n
}

// String implements fmt.Stringer for suture logging.
func (a *AutoRefresher) String() string {
	return "dashboard-auto-refresh"
}
