// Package resolver implements the Location Enrichment Resolver: answering
// "where was the user at time T" for entities that arrive without their own
// coordinates, by looking up the nearest earlier fix from a configured
// backbone source (spec.md §4.3). Adapted from the teacher repo's pattern of
// a small, cache-fronted lookup service in front of the Store.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/cache"
	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/metrics"
	"github.com/geobase/geobase/internal/models"
)

// LocationStore is the subset of *database.Store the resolver depends on,
// kept as an interface so tests can substitute a fake without a real DuckDB
// connection.
type LocationStore interface {
	NearestLocationFix(ctx context.Context, source string, instant time.Time) (*models.Entity, error)
}

// fix is a cached resolved coordinate, tagged with the instant it was
// actually valid as-of so a cache hit can be rejected if it would answer a
// query for an earlier instant with a fix that didn't exist yet.
type fix struct {
	lat, lon float64
	at       time.Time
}

// Resolver answers location-enrichment lookups against a configured backbone
// source, caching results by a coarse time bucket so a burst of nearby-in-
// time ingestion from one plugin doesn't repeat the same Store query.
type Resolver struct {
	store      LocationStore
	source     string
	bucketSize time.Duration
	cache      *cache.LRU[fix]

	hits   int64
	misses int64
}

// Option configures a Resolver at construction.
type Option func(*Resolver)

// WithBucketSize overrides the cache key's time-bucket granularity. Smaller
// buckets reduce staleness risk at the cost of a lower cache hit rate.
func WithBucketSize(d time.Duration) Option {
	return func(r *Resolver) { r.bucketSize = d }
}

// New creates a Resolver for cfg.EnrichmentSource (spec.md §9's parameterized
// backbone source, default "arc").
func New(store LocationStore, cfg *config.IngestionConfig, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		source:     cfg.EnrichmentSource,
		bucketSize: 10 * time.Second,
		cache:      cache.NewLRU[fix](4096, time.Minute),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the backbone source's most recent fix at or before instant.
// ok is false if no such fix exists yet.
func (r *Resolver) Resolve(ctx context.Context, instant time.Time) (lat, lon float64, ok bool) {
	key := r.bucketKey(instant)
	if v, hit := r.cache.Get(key); hit && !v.at.After(instant) {
		r.hits++
		metrics.RecordResolverLookup(true)
		return v.lat, v.lon, true
	}
	r.misses++
	metrics.RecordResolverLookup(false)

	e, err := r.store.NearestLocationFix(ctx, r.source, instant)
	if err != nil || e == nil || !e.HasCoordinates() {
		return 0, 0, false
	}

	// Keyed on the fix's own bucket, not instant's: a later query landing in
	// the same bucket but before this fix's t_start must miss and re-query,
	// not be served a fix from the future relative to its own instant (the
	// step-function contract forbids forward-extrapolation).
	f := fix{lat: *e.Lat, lon: *e.Lon, at: e.TStart}
	r.cache.Add(r.bucketKey(e.TStart), f)
	return f.lat, f.lon, true
}

// Invalidate drops every cached fix. Called when a new location.gps row from
// the backbone source is upserted (subscribed to the entity.upserted event
// bus per spec.md's resolver design note), since a cached "nearest fix" may
// now be stale for instants between the old and new fix.
func (r *Resolver) Invalidate() {
	r.cache.Clear()
}

// Stats reports this Resolver's own cache hit/miss counts. The /metrics
// resolver counters are recorded separately, via metrics.RecordResolverLookup.
func (r *Resolver) Stats() (hits, misses int64) {
	return r.hits, r.misses
}

// bucketKey coarsens instant to r.bucketSize so resolver calls that land in
// the same bucket share a cache entry.
func (r *Resolver) bucketKey(instant time.Time) string {
	bucket := instant.Truncate(r.bucketSize)
	return fmt.Sprintf("%s|%d", r.source, bucket.UnixNano())
}
