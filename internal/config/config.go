// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package config

import (
	"time"

	"github.com/tomtom215/innkeeper/internal/engine"
	"github.com/tomtom215/innkeeper/internal/events"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/scheduler"
	"github.com/tomtom215/innkeeper/internal/warehouse"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting via environment variables
//
// Config is immutable after LoadWithKoanf() and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Cache     CacheConfig     `koanf:"cache"`
	Engine    engine.Config   `koanf:"engine"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Events    EventsConfig    `koanf:"events"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // "development", "staging", "production"
}

// SecurityConfig holds CORS and rate limiting settings
type SecurityConfig struct {
	RateLimitReqs      int           `koanf:"rate_limit_reqs"`
	QueryRateLimitReqs int           `koanf:"query_rate_limit_reqs"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled  bool          `koanf:"rate_limit_disabled"`
	CORSOrigins        []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig locates the schema catalog. An empty path uses the built-in
// hospitality catalog.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// WarehouseConfig holds DuckDB and circuit breaker settings
type WarehouseConfig struct {
	Path         string        `koanf:"path"`
	MaxMemory    string        `koanf:"max_memory"`
	Threads      int           `koanf:"threads"` // 0 = NumCPU
	MaxOpenConns int           `koanf:"max_open_conns"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	// Bootstrap creates empty catalog tables at startup.
	Bootstrap bool `koanf:"bootstrap"`

	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// SchedulerConfig holds execution scheduler settings
type SchedulerConfig struct {
	Workers     int                  `koanf:"workers"`
	QueueSize   int                  `koanf:"queue_size"`
	SyncTimeout time.Duration        `koanf:"sync_timeout"`
	SubmitRate  float64              `koanf:"submit_rate"` // async submissions per second, 0 = unlimited
	SubmitBurst int                  `koanf:"submit_burst"`
	Policy      scheduler.CostPolicy `koanf:"policy"`

	JobRetention time.Duration `koanf:"job_retention"`
	// JobStore is "memory" or "badger".
	JobStore     string `koanf:"job_store"`
	JobStorePath string `koanf:"job_store_path"`
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	MaxEntries      int           `koanf:"max_entries"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// DashboardConfig holds card hydration settings
type DashboardConfig struct {
	AutoRefreshInterval time.Duration `koanf:"auto_refresh_interval"`
	PollInterval        time.Duration `koanf:"poll_interval"`
	PollTimeout         time.Duration `koanf:"poll_timeout"`
	PollBackoff         string        `koanf:"poll_backoff"` // "fixed" or "exponential"
	PollMaxInterval     time.Duration `koanf:"poll_max_interval"`
	DefaultTimezone     string        `koanf:"default_timezone"`
}

// EventsConfig holds job event bus settings
type EventsConfig struct {
	Enabled      bool  `koanf:"enabled"`
	OutputBuffer int64 `koanf:"output_buffer"`
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}

// DuckDB converts the warehouse section.
func (w WarehouseConfig) DuckDB() warehouse.Config {
	return warehouse.Config{
		Path:         w.Path,
		Threads:      w.Threads,
		MaxMemory:    w.MaxMemory,
		MaxOpenConns: w.MaxOpenConns,
	}
}

// Breaker converts the breaker settings of the warehouse section.
func (w WarehouseConfig) Breaker() warehouse.BreakerConfig {
	cfg := warehouse.DefaultBreakerConfig()
	cfg.MaxRequests = w.BreakerMaxRequests
	cfg.Interval = w.BreakerInterval
	cfg.Timeout = w.BreakerTimeout
	cfg.MinRequests = w.BreakerMinRequests
	cfg.FailureRatio = w.BreakerFailureRatio
	return cfg
}

// Options converts the scheduler section.
func (s SchedulerConfig) Options() scheduler.Config {
	return scheduler.Config{
		Workers:     s.Workers,
		QueueSize:   s.QueueSize,
		SyncTimeout: s.SyncTimeout,
		SubmitRate:  s.SubmitRate,
		SubmitBurst: s.SubmitBurst,
		Policy:      s.Policy,
	}
}

// Bus converts the events section.
func (e EventsConfig) Bus() events.Config {
	cfg := events.DefaultConfig()
	cfg.OutputBuffer = e.OutputBuffer
	return cfg
}

// Poll converts the polling settings of the dashboard section.
func (d DashboardConfig) Poll() scheduler.PollConfig {
	cfg := scheduler.DefaultPollConfig()
	cfg.Interval = d.PollInterval
	cfg.Timeout = d.PollTimeout
	cfg.Backoff = d.PollBackoff
	cfg.MaxInterval = d.PollMaxInterval
	return cfg
}

// Location returns the default dashboard time zone.
func (d DashboardConfig) Location() *time.Location {
	if d.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
