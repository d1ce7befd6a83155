package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/models"
)

type fakePlaceStore struct {
	locations []*models.Entity
	upserted  []*models.Entity
}

func (f *fakePlaceStore) AllLocations(ctx context.Context) ([]*models.Entity, error) {
	return f.locations, nil
}

func (f *fakePlaceStore) BulkUpsert(ctx context.Context, entities []*models.Entity) ([]models.UpsertResult, error) {
	f.upserted = append(f.upserted, entities...)
	results := make([]models.UpsertResult, len(entities))
	for i, e := range entities {
		results[i] = models.UpsertResult{ID: e.ID.String(), Status: "inserted"}
	}
	return results, nil
}

func fix(lat, lon float64, at time.Time) *models.Entity {
	return &models.Entity{
		Type:   models.TypeLocationGPS,
		TStart: at,
		Lat:    &lat,
		Lon:    &lon,
	}
}

func TestDetector_Run_FindsSignificantPlace(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var locations []*models.Entity
	// Ten samples clustered tightly together, 5 minutes apart, dwelling ~45 min.
	for i := 0; i < 10; i++ {
		locations = append(locations, fix(37.7749+float64(i)*0.00001, -122.4194, base.Add(time.Duration(i)*5*time.Minute)))
	}

	store := &fakePlaceStore{locations: locations}
	cfg := config.PlaceDetectionConfig{
		EpsilonMeters:      150,
		MinSamples:         3,
		MinVisitCount:      1,
		MinTotalDwellHours: 0.5,
		MaxGap:             30 * time.Minute,
		MinDwell:           10 * time.Minute,
	}
	d := NewDetector(store, cfg, nil)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Places)
	assert.Equal(t, 1, res.Visits)
	assert.Equal(t, 1, res.Version)

	var sawPlace, sawVisit bool
	for _, e := range store.upserted {
		switch e.Type {
		case models.TypePlace:
			sawPlace = true
		case models.TypePlaceVisit:
			sawVisit = true
			meta, err := models.DecodeVisitMeta(e)
			require.NoError(t, err)
			assert.NotEqual(t, "", meta.PlaceID.String())
			assert.Greater(t, meta.DwellMinutes, 40.0)
		}
	}
	assert.True(t, sawPlace)
	assert.True(t, sawVisit)
}

func TestDetector_Run_PlaceIDStableAcrossRuns(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var locations []*models.Entity
	for i := 0; i < 10; i++ {
		locations = append(locations, fix(37.7749+float64(i)*0.00001, -122.4194, base.Add(time.Duration(i)*5*time.Minute)))
	}

	store := &fakePlaceStore{locations: locations}
	cfg := config.PlaceDetectionConfig{
		EpsilonMeters:      150,
		MinSamples:         3,
		MinVisitCount:      1,
		MinTotalDwellHours: 0.5,
		MaxGap:             30 * time.Minute,
		MinDwell:           10 * time.Minute,
	}
	d := NewDetector(store, cfg, nil)

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	var firstPlaceID, firstVisitPlaceID string
	for _, e := range store.upserted {
		if e.Type == models.TypePlace {
			firstPlaceID = e.ID.String()
		}
		if e.Type == models.TypePlaceVisit {
			meta, err := models.DecodeVisitMeta(e)
			require.NoError(t, err)
			firstVisitPlaceID = meta.PlaceID.String()
		}
	}

	store.upserted = nil
	_, err = d.Run(context.Background())
	require.NoError(t, err)
	var secondPlaceID, secondVisitPlaceID string
	for _, e := range store.upserted {
		if e.Type == models.TypePlace {
			secondPlaceID = e.ID.String()
		}
		if e.Type == models.TypePlaceVisit {
			meta, err := models.DecodeVisitMeta(e)
			require.NoError(t, err)
			secondVisitPlaceID = meta.PlaceID.String()
		}
	}

	assert.Equal(t, firstPlaceID, secondPlaceID, "the same cluster must keep the same place id across runs")
	assert.Equal(t, firstVisitPlaceID, secondVisitPlaceID)
	assert.Equal(t, firstPlaceID, firstVisitPlaceID, "a visit's place_id must match its place's id")
}

func TestDetector_Run_RejectsSparseCluster(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakePlaceStore{locations: []*models.Entity{
		fix(37.7749, -122.4194, base),
		fix(37.9, -122.5, base.Add(time.Hour)), // far away, no cluster
	}}
	cfg := config.PlaceDetectionConfig{
		EpsilonMeters: 150,
		MinSamples:    3,
	}
	d := NewDetector(store, cfg, nil)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Places)
	assert.Equal(t, 0, res.Visits)
	assert.Empty(t, store.upserted)
}
