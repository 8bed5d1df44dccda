// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/innkeeper/internal/scheduler"
)

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
		c.validateWarehouse,
		c.validateScheduler,
		c.validateCache,
		c.validateDashboard,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateSecurity validates rate limiting bounds and CORS
func (c *Config) validateSecurity() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed when ENVIRONMENT=production; " +
			"set specific origins, e.g. CORS_ORIGINS=https://backoffice.example.com")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.QueryRateLimitReqs < 0 || c.Security.QueryRateLimitReqs > c.Security.RateLimitReqs {
		return fmt.Errorf("QUERY_RATE_LIMIT_REQUESTS must be between 0 and RATE_LIMIT_REQUESTS (%d)", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS allows every origin
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateWarehouse validates warehouse and breaker configuration
func (c *Config) validateWarehouse() error {
	w := c.Warehouse
	if w.Threads < 0 || w.MaxOpenConns < 0 {
		return fmt.Errorf("WAREHOUSE_THREADS and WAREHOUSE_MAX_OPEN_CONNS must not be negative")
	}
	if w.QueryTimeout <= 0 {
		return fmt.Errorf("WAREHOUSE_QUERY_TIMEOUT must be positive")
	}
	if w.BreakerFailureRatio <= 0 || w.BreakerFailureRatio > 1 {
		return fmt.Errorf("WAREHOUSE_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if w.BreakerTimeout <= 0 {
		return fmt.Errorf("WAREHOUSE_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

// validJobStores defines the allowed job store backends
var validJobStores = map[string]bool{
	"memory": true,
	"badger": true,
}

// validateScheduler validates scheduler configuration
func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if s.Workers < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}
	if s.QueueSize < 1 {
		return fmt.Errorf("SCHEDULER_QUEUE_SIZE must be at least 1")
	}
	if s.SyncTimeout <= 0 {
		return fmt.Errorf("SCHEDULER_SYNC_TIMEOUT must be positive")
	}
	if s.SubmitRate < 0 {
		return fmt.Errorf("SCHEDULER_SUBMIT_RATE must not be negative")
	}
	if s.SubmitRate > 0 && s.SubmitBurst < 1 {
		return fmt.Errorf("SCHEDULER_SUBMIT_BURST must be at least 1 when a submit rate is set")
	}
	if s.Policy.MaxRows < 0 || s.Policy.MaxJoins < 0 || s.Policy.WindowRows < 0 {
		return fmt.Errorf("scheduler cost thresholds must not be negative")
	}
	if s.JobRetention <= 0 {
		return fmt.Errorf("SCHEDULER_JOB_RETENTION must be positive")
	}
	if !validJobStores[s.JobStore] {
		return fmt.Errorf("SCHEDULER_JOB_STORE must be one of: memory, badger")
	}
	return nil
}

// validateCache validates result cache configuration
func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must not be negative")
	}
	return nil
}

// validateDashboard validates hydration and polling configuration
func (c *Config) validateDashboard() error {
	d := c.Dashboard
	if d.AutoRefreshInterval < time.Second {
		return fmt.Errorf("DASHBOARD_AUTO_REFRESH_INTERVAL must be at least 1s")
	}
	if d.PollInterval <= 0 || d.PollTimeout <= 0 {
		return fmt.Errorf("DASHBOARD_POLL_INTERVAL and DASHBOARD_POLL_TIMEOUT must be positive")
	}
	if d.PollInterval > d.PollTimeout {
		return fmt.Errorf("DASHBOARD_POLL_INTERVAL must not exceed DASHBOARD_POLL_TIMEOUT")
	}
	if d.PollBackoff != scheduler.BackoffFixed && d.PollBackoff != scheduler.BackoffExponential {
		return fmt.Errorf("DASHBOARD_POLL_BACKOFF must be one of: fixed, exponential")
	}
	if d.DefaultTimezone != "" {
		if _, err := time.LoadLocation(d.DefaultTimezone); err != nil {
			return fmt.Errorf("DASHBOARD_TIMEZONE %q is not a known time zone: %w", d.DefaultTimezone, err)
		}
	}
	return nil
}
