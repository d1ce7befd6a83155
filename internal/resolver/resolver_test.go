package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/models"
)

type fakeStore struct {
	calls  int
	lat    float64
	lon    float64
	hasFix bool
}

func (f *fakeStore) NearestLocationFix(ctx context.Context, source string, instant time.Time) (*models.Entity, error) {
	f.calls++
	if !f.hasFix {
		return nil, nil
	}
	lat, lon := f.lat, f.lon
	return &models.Entity{Type: models.TypeLocationGPS, Source: &source, Lat: &lat, Lon: &lon, TStart: instant}, nil
}

func TestResolve_CachesWithinBucket(t *testing.T) {
	store := &fakeStore{hasFix: true, lat: 37.7749, lon: -122.4194}
	r := New(store, &config.IngestionConfig{EnrichmentSource: "arc"}, WithBucketSize(time.Minute))

	bucketStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lat1, lon1, ok1 := r.Resolve(context.Background(), bucketStart)
	require.True(t, ok1)
	require.Equal(t, 37.7749, lat1)
	require.Equal(t, -122.4194, lon1)

	_, _, ok2 := r.Resolve(context.Background(), bucketStart.Add(5*time.Second))
	require.True(t, ok2)
	require.Equal(t, 1, store.calls, "second call within the same bucket should hit the cache")
}

func TestResolve_NoFixReturnsNotOK(t *testing.T) {
	store := &fakeStore{hasFix: false}
	r := New(store, &config.IngestionConfig{EnrichmentSource: "arc"})

	_, _, ok := r.Resolve(context.Background(), time.Now())
	require.False(t, ok)
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	store := &fakeStore{hasFix: true, lat: 1, lon: 2}
	r := New(store, &config.IngestionConfig{EnrichmentSource: "arc"}, WithBucketSize(time.Hour))

	now := time.Now()
	_, _, _ = r.Resolve(context.Background(), now)
	require.Equal(t, 1, store.calls)

	r.Invalidate()
	_, _, _ = r.Resolve(context.Background(), now)
	require.Equal(t, 2, store.calls, "invalidate should force a re-fetch even within the same bucket")
}

func TestResolve_DoesNotExtrapolateForwardWithinBucket(t *testing.T) {
	store := &fakeStore{hasFix: true, lat: 1, lon: 2}
	r := New(store, &config.IngestionConfig{EnrichmentSource: "arc"}, WithBucketSize(10*time.Second))

	bucketStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := bucketStart.Add(8 * time.Second)
	earlier := bucketStart.Add(2 * time.Second)

	_, _, ok := r.Resolve(context.Background(), later)
	require.True(t, ok)
	require.Equal(t, 1, store.calls)

	_, _, ok = r.Resolve(context.Background(), earlier)
	require.True(t, ok)
	require.Equal(t, 2, store.calls, "a fix resolved for a later instant must not answer an earlier query in the same bucket")
}

func TestStats_TracksHitsAndMisses(t *testing.T) {
	store := &fakeStore{hasFix: true, lat: 1, lon: 2}
	r := New(store, &config.IngestionConfig{EnrichmentSource: "arc"}, WithBucketSize(time.Hour))

	now := time.Now()
	_, _, _ = r.Resolve(context.Background(), now)
	_, _, _ = r.Resolve(context.Background(), now)

	hits, misses := r.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(1), misses)
}
