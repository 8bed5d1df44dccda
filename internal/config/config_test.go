// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package config

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"wildcard cors in production", func(c *Config) {
			c.Server.Environment = "production"
		}, true},
		{"explicit cors in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"https://backoffice.example.com"}
		}, false},
		{"rate limit too low", func(c *Config) { c.Security.RateLimitReqs = 0 }, true},
		{"rate limit ignored when disabled", func(c *Config) {
			c.Security.RateLimitReqs = 0
			c.Security.RateLimitDisabled = true
		}, false},
		{"query limit above route limit", func(c *Config) { c.Security.QueryRateLimitReqs = 500 }, true},
		{"query limit disabled", func(c *Config) { c.Security.QueryRateLimitReqs = 0 }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad breaker ratio", func(c *Config) { c.Warehouse.BreakerFailureRatio = 1.5 }, true},
		{"no workers", func(c *Config) { c.Scheduler.Workers = 0 }, true},
		{"negative cost threshold", func(c *Config) { c.Scheduler.Policy.MaxRows = -1 }, true},
		{"zero cost threshold disables check", func(c *Config) { c.Scheduler.Policy.MaxJoins = 0 }, false},
		{"badger job store", func(c *Config) { c.Scheduler.JobStore = "badger" }, false},
		{"unknown job store", func(c *Config) { c.Scheduler.JobStore = "redis" }, true},
		{"submit rate without burst", func(c *Config) { c.Scheduler.SubmitBurst = 0 }, true},
		{"poll interval above timeout", func(c *Config) { c.Dashboard.PollInterval = 2 * time.Minute }, true},
		{"unknown backoff", func(c *Config) { c.Dashboard.PollBackoff = "linear" }, true},
		{"unknown timezone", func(c *Config) { c.Dashboard.DefaultTimezone = "Mars/Olympus" }, true},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConversions(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Warehouse.BreakerTimeout = 5 * time.Second
	cfg.Dashboard.PollBackoff = "exponential"
	cfg.Dashboard.DefaultTimezone = "Europe/Lisbon"
	cfg.Logging.Format = "console"

	if b := cfg.Warehouse.Breaker(); b.Timeout != 5*time.Second || b.Name != "warehouse" {
		t.Errorf("Breaker() = %+v", b)
	}
	if d := cfg.Warehouse.DuckDB(); d.Path != "/data/innkeeper.duckdb" || d.MaxMemory != "2GB" {
		t.Errorf("DuckDB() = %+v", d)
	}
	if p := cfg.Dashboard.Poll(); p.Backoff != "exponential" || p.Interval != 1500*time.Millisecond {
		t.Errorf("Poll() = %+v", p)
	}
	if loc := cfg.Dashboard.Location(); loc.String() != "Europe/Lisbon" {
		t.Errorf("Location() = %v", loc)
	}
	if s := cfg.Scheduler.Options(); s.Workers != 4 || s.SyncTimeout != 30*time.Second {
		t.Errorf("Options() = %+v", s)
	}
	if l := cfg.LoggingOptions(); l.Format != "console" || !l.Timestamp {
		t.Errorf("LoggingOptions() = %+v", l)
	}
}
