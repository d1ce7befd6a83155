// Package metrics exposes Prometheus instrumentation for the store, the
// ingestion engine, the resolver cache, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBQueryDuration tracks latency of store operations against DuckDB.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geobase_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_db_query_errors_total",
			Help: "Total number of store query errors",
		},
		[]string{"operation"},
	)

	// IngestionRunsTotal counts completed plugin runs by outcome.
	IngestionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_ingestion_runs_total",
			Help: "Total number of ingestion plugin runs",
		},
		[]string{"plugin", "outcome"},
	)

	IngestionRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geobase_ingestion_run_duration_seconds",
			Help:    "Duration of a single ingestion plugin run",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"plugin"},
	)

	IngestionEntitiesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_ingestion_entities_upserted_total",
			Help: "Total number of entities upserted by ingestion plugins",
		},
		[]string{"plugin"},
	)

	IngestionBreakerOpen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_ingestion_breaker_open_total",
			Help: "Total number of times a plugin's circuit breaker tripped open",
		},
		[]string{"plugin"},
	)

	// ResolverCacheHits / Misses track the location enrichment cache.
	ResolverCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geobase_resolver_cache_hits_total",
			Help: "Total number of location resolver cache hits",
		},
	)

	ResolverCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geobase_resolver_cache_misses_total",
			Help: "Total number of location resolver cache misses",
		},
	)

	// DedupeFilterRejections counts records the bloom pre-check reported as
	// definitely new. It is a metric only: the store's unique index lookup
	// still runs for every upsert.
	DedupeFilterRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geobase_dedupe_filter_definite_new_total",
			Help: "Total number of upserts the dedupe bloom filter identified as definitely new",
		},
	)

	// PlaceDetectionRuns counts place/visit detector passes.
	PlaceDetectionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_place_detection_runs_total",
			Help: "Total number of place/visit detection passes",
		},
		[]string{"outcome"},
	)

	PlaceDetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geobase_place_detection_duration_seconds",
			Help:    "Duration of a place/visit detection pass",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	PlacesDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geobase_places_detected",
			Help: "Number of distinct places known after the last detection pass",
		},
	)

	VisitsDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geobase_visits_detected",
			Help: "Number of visit entities known after the last detection pass",
		},
	)

	// EventsPublished / EventsConsumed track the entity.upserted bus.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_events_published_total",
			Help: "Total number of events published to the event bus",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_events_consumed_total",
			Help: "Total number of events consumed from the event bus",
		},
		[]string{"topic", "subscriber"},
	)

	// API Metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geobase_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geobase_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobase_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"route"},
	)
)

// RecordDBQuery records a store operation's outcome and latency.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordIngestionRun records a completed plugin run.
func RecordIngestionRun(plugin string, duration time.Duration, upserted int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	IngestionRunsTotal.WithLabelValues(plugin, outcome).Inc()
	IngestionRunDuration.WithLabelValues(plugin).Observe(duration.Seconds())
	if upserted > 0 {
		IngestionEntitiesUpserted.WithLabelValues(plugin).Add(float64(upserted))
	}
}

// RecordBreakerOpen records a circuit breaker trip for a plugin.
func RecordBreakerOpen(plugin string) {
	IngestionBreakerOpen.WithLabelValues(plugin).Inc()
}

// RecordResolverLookup records a resolver cache hit or miss.
func RecordResolverLookup(hit bool) {
	if hit {
		ResolverCacheHits.Inc()
		return
	}
	ResolverCacheMisses.Inc()
}

// RecordPlaceDetection records the outcome of a detection pass.
func RecordPlaceDetection(duration time.Duration, places, visits int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PlaceDetectionRuns.WithLabelValues(outcome).Inc()
	PlaceDetectionDuration.Observe(duration.Seconds())
	if err == nil {
		PlacesDetected.Set(float64(places))
		VisitsDetected.Set(float64(visits))
	}
}

// RecordAPIRequest records a completed HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordRateLimitHit records a rejected request for a route.
func RecordRateLimitHit(route string) {
	APIRateLimitHits.WithLabelValues(route).Inc()
}
