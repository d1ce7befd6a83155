package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/geobase/geobase/internal/cache"
	"github.com/geobase/geobase/internal/logging"
	"github.com/geobase/geobase/internal/metrics"
	"github.com/geobase/geobase/internal/models"
)

// Store is the subset of *database.Store the Engine needs to drive the Run
// Protocol, kept as an interface so tests substitute an in-memory fake.
type Store interface {
	Upsert(ctx context.Context, e *models.Entity) (id, status string, err error)
	GetWatermark(ctx context.Context, source string) (*models.Watermark, error)
	SetWatermark(ctx context.Context, source string, lastRun time.Time, count int) error
}

// Resolver fills in coordinates for entities that arrive without their own
// (spec.md §4.3).
type Resolver interface {
	Resolve(ctx context.Context, instant time.Time) (lat, lon float64, ok bool)
}

// EventPublisher is notified after each successful upsert, the hook the
// Resolver's cache invalidation subscribes to.
type EventPublisher interface {
	PublishUpserted(e *models.Entity)
}

// RunStats summarizes one plugin run, returned by Engine.Run.
type RunStats struct {
	Source    string
	Processed int
	Inserted  int
	Updated   int
}

// breakerConfig is the per-plugin gobreaker tuning the Engine applies; every
// plugin gets its own instance so one misbehaving source can't trip another.
var breakerConfig = gobreaker.Settings{
	MaxRequests: 1,
	Interval:    0,
	Timeout:     30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	},
}

// Engine executes the Run Protocol for registered plugins: load watermark,
// discover, resolve missing coordinates, upsert, advance watermark — all
// bounded by a per-plugin circuit breaker and rate limiter so a failing or
// noisy source degrades in isolation (spec.md §4.4.2).
type Engine struct {
	store     Store
	resolver  Resolver
	publisher EventPublisher

	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[[]Record]
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	burst     int
	dedupe    *cache.DedupeFilter
}

// NewEngine builds an Engine that runs plugins from the process-wide
// registry (see Register). ratePerSec/burst
// configure every plugin's discover-call rate limiter
// (config.IngestionConfig's RateLimitPerSec/RateLimitBurst).
func NewEngine(store Store, resolver Resolver, publisher EventPublisher, ratePerSec float64, burst int) *Engine {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Engine{
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		breakers:  make(map[string]*gobreaker.CircuitBreaker[[]Record]),
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: rate.Limit(ratePerSec),
		burst:     burst,
		dedupe:    cache.NewDedupeFilter(50000),
	}
}

// Run executes one pass of the Run Protocol for the named plugin.
func (e *Engine) Run(ctx context.Context, name string) (RunStats, error) {
	start := time.Now()
	stats, err := e.run(ctx, name)
	metrics.RecordIngestionRun(name, time.Since(start), stats.Inserted+stats.Updated, err)
	return stats, err
}

func (e *Engine) run(ctx context.Context, name string) (RunStats, error) {
	plugins := Registered()
	p, ok := plugins[name]
	if !ok {
		return RunStats{}, fmt.Errorf("ingestion: unknown plugin %q", name)
	}

	wm, err := e.store.GetWatermark(ctx, name)
	if err != nil {
		return RunStats{}, fmt.Errorf("load watermark for %s: %w", name, err)
	}

	limiter := e.limiterFor(name)
	if err := limiter.Wait(ctx); err != nil {
		return RunStats{}, fmt.Errorf("rate limit wait for %s: %w", name, err)
	}

	breaker := e.breakerFor(name)
	records, err := breaker.Execute(func() ([]Record, error) {
		return p.Discover(ctx, wm)
	})
	if err != nil {
		return RunStats{}, fmt.Errorf("discover for %s: %w", name, err)
	}

	stats := RunStats{Source: name}
	var latest time.Time
	if wm != nil {
		latest = wm.LastRun
	}

	for _, rec := range records {
		entity := rec.Entity
		if entity.Source == nil {
			src := name
			entity.Source = &src
		}

		if !p.HasNativeLocation() && !entity.HasCoordinates() && e.resolver != nil {
			if lat, lon, ok := e.resolver.Resolve(ctx, entity.TStart); ok {
				entity.Lat = &lat
				entity.Lon = &lon
				entity.LocSource = models.LocationInferred
			}
		} else if entity.HasCoordinates() {
			entity.LocSource = models.LocationNative
		}

		if src, extID, ok := entity.DedupeKey(); ok {
			key := src + "\x00" + extID
			if !e.dedupe.MaybeSeen(key) {
				metrics.DedupeFilterRejections.Inc()
			}
			e.dedupe.Observe(key)
		}

		_, status, err := e.store.Upsert(ctx, entity)
		if err != nil {
			return stats, fmt.Errorf("upsert record from %s: %w", name, err)
		}

		stats.Processed++
		switch status {
		case "inserted":
			stats.Inserted++
		case "updated":
			stats.Updated++
		}

		if e.publisher != nil {
			e.publisher.PublishUpserted(entity)
		}

		if entity.TStart.After(latest) {
			latest = entity.TStart
		}
	}

	// The watermark only advances once every record in this run has upserted
	// without error — a partially-failed run must never advance it.
	if latest.IsZero() {
		latest = time.Now().UTC()
	}
	if err := e.store.SetWatermark(ctx, name, latest, stats.Processed); err != nil {
		return stats, fmt.Errorf("advance watermark for %s: %w", name, err)
	}

	logging.Info().Str("source", name).Int("processed", stats.Processed).Msg("ingestion run completed")
	return stats, nil
}

func (e *Engine) breakerFor(name string) *gobreaker.CircuitBreaker[[]Record] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.breakers[name]; ok {
		return b
	}
	cfg := breakerConfig
	cfg.Name = name
	cfg.OnStateChange = func(_ string, from, to gobreaker.State) {
		if to == gobreaker.StateOpen && from != gobreaker.StateOpen {
			metrics.RecordBreakerOpen(name)
		}
	}
	b := gobreaker.NewCircuitBreaker[[]Record](cfg)
	e.breakers[name] = b
	return b
}

func (e *Engine) limiterFor(name string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l, ok := e.limiters[name]; ok {
		return l
	}
	l := rate.NewLimiter(e.rateLimit, e.burst)
	e.limiters[name] = l
	return l
}
