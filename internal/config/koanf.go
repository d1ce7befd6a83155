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
)

// DefaultConfigPaths lists paths searched for an optional config file, in
// priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/geobase/config.yaml",
	"/etc/geobase/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:                    "geobase.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: true,
			MaxOpenConns:           0,
			MaxIdleConns:           2,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Environment: "development",
			ReadTimeout: 30 * time.Second,
			QueryBudget: 30 * time.Second,
		},
		Security: SecurityConfig{
			APIKey:          "",
			CORSOrigins:     nil,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Ingestion: IngestionConfig{
			PluginDir:          "",
			DefaultEpoch:       time.Unix(0, 0).UTC(),
			RateLimitPerSec:    5,
			RateLimitBurst:     10,
			BreakerMaxRequests: 1,
			BreakerTimeout:     60 * time.Second,
			EnrichmentSource:   "arc",
		},
		Events: EventsConfig{
			NATSURL: "",
		},
		PlaceDetection: PlaceDetectionConfig{
			EpsilonMeters:      150,
			MinSamples:         5,
			MinVisitCount:      2,
			MinTotalDwellHours: 1,
			MaxGap:             30 * time.Minute,
			MinDwell:           10 * time.Minute,
			VersionStoreDir:    "geobase-placedetect.badger",
		},
	}
}

// sliceConfigPaths lists koanf paths that should be parsed as comma-separated
// slices when they arrive as a single environment-variable string.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// Load assembles Config from defaults, an optional YAML file, then
// environment variables (highest precedence), mirroring the teacher's
// LoadWithKoanf three-layer precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
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

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
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

// envTransformFunc maps the flat environment variable names spec.md §6 names
// (DATABASE_URL, API_KEY, HOST, PORT, ...) plus geobase's own operational
// variables onto koanf's nested dotted paths.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	mappings := map[string]string{
		"database_url":              "database.url",
		"database_max_memory":       "database.max_memory",
		"database_threads":          "database.threads",
		"host":                      "server.host",
		"port":                      "server.port",
		"environment":               "server.environment",
		"query_budget":              "server.query_budget",
		"api_key":                   "security.api_key",
		"cors_origins":              "security.cors_origins",
		"rate_limit_reqs":           "security.rate_limit_reqs",
		"rate_limit_window":         "security.rate_limit_window",
		"log_level":                 "logging.level",
		"log_format":                "logging.format",
		"plugin_dir":                "ingestion.plugin_dir",
		"default_epoch":             "ingestion.default_epoch",
		"ingestion_rate_per_sec":    "ingestion.rate_limit_per_sec",
		"ingestion_rate_burst":      "ingestion.rate_limit_burst",
		"enrichment_source":         "ingestion.enrichment_source",
		"nats_url":                  "events.nats_url",
		"place_epsilon_meters":      "place_detection.epsilon_meters",
		"place_min_samples":         "place_detection.min_samples",
		"place_min_visit_count":     "place_detection.min_visit_count",
		"place_min_total_dwell_hours": "place_detection.min_total_dwell_hours",
		"place_max_gap":             "place_detection.max_gap",
		"place_min_dwell":           "place_detection.min_dwell",
		"place_version_store_dir":   "place_detection.version_store_dir",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables never
	// pollute the config tree.
	return ""
}
