// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/innkeeper/internal/engine"
	"github.com/tomtom215/innkeeper/internal/scheduler"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/innkeeper/config.yaml",
	"/etc/innkeeper/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	sched := scheduler.DefaultConfig()
	poll := scheduler.DefaultPollConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8420,
			Host:            "0.0.0.0",
			Timeout:         60 * time.Second, // above the 30s sync execution timeout
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			RateLimitReqs:      100,
			QueryRateLimitReqs: 30,
			RateLimitWindow:    1 * time.Minute,
			RateLimitDisabled:  false,
			CORSOrigins:        []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Catalog: CatalogConfig{
			Path: "", // built-in hospitality catalog
		},
		Warehouse: WarehouseConfig{
			Path:                "/data/innkeeper.duckdb",
			MaxMemory:           "2GB",
			Threads:             0,
			MaxOpenConns:        0,
			QueryTimeout:        2 * time.Minute,
			Bootstrap:           false,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
		},
		Scheduler: SchedulerConfig{
			Workers:      sched.Workers,
			QueueSize:    sched.QueueSize,
			SyncTimeout:  sched.SyncTimeout,
			SubmitRate:   sched.SubmitRate,
			SubmitBurst:  sched.SubmitBurst,
			Policy:       sched.Policy,
			JobRetention: time.Hour,
			JobStore:     "memory",
			JobStorePath: "/data/jobs",
		},
		Cache: CacheConfig{
			TTL:             5 * time.Minute,
			MaxEntries:      1000,
			CleanupInterval: time.Minute,
		},
		Engine: engine.DefaultConfig(),
		Dashboard: DashboardConfig{
			AutoRefreshInterval: 60 * time.Second,
			PollInterval:        poll.Interval,
			PollTimeout:         poll.Timeout,
			PollBackoff:         poll.Backoff,
			PollMaxInterval:     poll.MaxInterval,
			DefaultTimezone:     "UTC",
		},
		Events: EventsConfig{
			Enabled:      true,
			OutputBuffer: 256,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	return load(findConfigFile())
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// HTTP_PORT -> server.port, SCHEDULER_WORKERS -> scheduler.workers
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Security mappings
	"rate_limit_requests":       "security.rate_limit_reqs",
	"query_rate_limit_requests": "security.query_rate_limit_reqs",
	"rate_limit_window":         "security.rate_limit_window",
	"disable_rate_limit":        "security.rate_limit_disabled",
	"cors_origins":              "security.cors_origins",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Catalog mappings
	"catalog_path": "catalog.path",

	// Warehouse mappings
	"warehouse_path":                  "warehouse.path",
	"warehouse_max_memory":            "warehouse.max_memory",
	"warehouse_threads":               "warehouse.threads",
	"warehouse_max_open_conns":        "warehouse.max_open_conns",
	"warehouse_query_timeout":         "warehouse.query_timeout",
	"warehouse_bootstrap":             "warehouse.bootstrap",
	"warehouse_breaker_timeout":       "warehouse.breaker_timeout",
	"warehouse_breaker_failure_ratio": "warehouse.breaker_failure_ratio",

	// Scheduler mappings
	"scheduler_workers":        "scheduler.workers",
	"scheduler_queue_size":     "scheduler.queue_size",
	"scheduler_sync_timeout":   "scheduler.sync_timeout",
	"scheduler_submit_rate":    "scheduler.submit_rate",
	"scheduler_submit_burst":   "scheduler.submit_burst",
	"scheduler_max_rows":       "scheduler.policy.max_rows",
	"scheduler_max_joins":      "scheduler.policy.max_joins",
	"scheduler_window_rows":    "scheduler.policy.window_rows",
	"scheduler_job_retention":  "scheduler.job_retention",
	"scheduler_job_store":      "scheduler.job_store",
	"scheduler_job_store_path": "scheduler.job_store_path",

	// Cache mappings
	"cache_ttl":              "cache.ttl",
	"cache_max_entries":      "cache.max_entries",
	"cache_cleanup_interval": "cache.cleanup_interval",

	// Engine mappings
	"engine_strict_derived":    "engine.strict_derived",
	"engine_preview_row_limit": "engine.preview_row_limit",
	"engine_bulk_concurrency":  "engine.bulk_concurrency",
	"engine_pending_job_ttl":   "engine.pending_job_ttl",
	"engine_max_pending_jobs":  "engine.max_pending_jobs",

	// Dashboard mappings
	"dashboard_auto_refresh_interval": "dashboard.auto_refresh_interval",
	"dashboard_poll_interval":         "dashboard.poll_interval",
	"dashboard_poll_timeout":          "dashboard.poll_timeout",
	"dashboard_poll_backoff":          "dashboard.poll_backoff",
	"dashboard_poll_max_interval":     "dashboard.poll_max_interval",
	"dashboard_timezone":              "dashboard.default_timezone",

	// Events mappings
	"events_enabled":       "events.enabled",
	"events_output_buffer": "events.output_buffer",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return the empty string and are skipped so unrelated
// environment does not pollute the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
