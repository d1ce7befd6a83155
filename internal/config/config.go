// Package config loads geobase's configuration in three layers — built-in
// defaults, an optional YAML file, and environment variables — the same
// precedence the teacher repo (tomtom215/cartographus) uses via koanf.
package config

import "time"

// Config is the process-wide configuration, assembled by Load.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Ingestion  IngestionConfig  `koanf:"ingestion"`
	Events     EventsConfig     `koanf:"events"`
	PlaceDetection PlaceDetectionConfig `koanf:"place_detection"`
}

// DatabaseConfig holds DuckDB connection settings (spec.md §6's DATABASE_URL).
type DatabaseConfig struct {
	URL                    string `koanf:"url"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	MaxOpenConns           int    `koanf:"max_open_conns"` // 0 = runtime.NumCPU()
	MaxIdleConns           int    `koanf:"max_idle_conns"`
}

// ServerConfig holds HTTP listener settings (spec.md §6's HOST/PORT).
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Environment string        `koanf:"environment"` // "development" | "staging" | "production"
	ReadTimeout time.Duration `koanf:"read_timeout"`
	QueryBudget time.Duration `koanf:"query_budget"` // per-endpoint wall-clock budget, spec.md §5
}

// SecurityConfig holds auth and rate-limit settings.
type SecurityConfig struct {
	APIKey          string        `koanf:"api_key"` // spec.md §6's API_KEY
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds zerolog setup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "console" | "json"
}

// IngestionConfig holds ingestion-scheduler and plugin-directory settings
// (spec.md §6's plugin directory path and epoch default).
type IngestionConfig struct {
	PluginDir         string        `koanf:"plugin_dir"`
	DefaultEpoch      time.Time     `koanf:"default_epoch"`
	RateLimitPerSec   float64       `koanf:"rate_limit_per_sec"`
	RateLimitBurst    int           `koanf:"rate_limit_burst"`
	BreakerMaxRequests uint32       `koanf:"breaker_max_requests"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout"`
	EnrichmentSource  string        `koanf:"enrichment_source"` // defaults "arc" — Open Question #1, resolved
}

// EventsConfig holds the Watermill/NATS event-bus toggle.
type EventsConfig struct {
	NATSURL string `koanf:"nats_url"` // empty = in-process gochannel pubsub
}

// PlaceDetectionConfig tunes the Place/Visit Detector's clustering and
// visit-detection pass (spec.md §4.4.3).
type PlaceDetectionConfig struct {
	EpsilonMeters       float64       `koanf:"epsilon_meters"`
	MinSamples          int           `koanf:"min_samples"`
	MinVisitCount       int           `koanf:"min_visit_count"`
	MinTotalDwellHours  float64       `koanf:"min_total_dwell_hours"`
	MaxGap              time.Duration `koanf:"max_gap"`
	MinDwell            time.Duration `koanf:"min_dwell"`
	VersionStoreDir     string        `koanf:"version_store_dir"`
}
