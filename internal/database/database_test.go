package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.DatabaseConfig{
		URL:                    ":memory:",
		MaxMemory:              "512MB",
		PreserveInsertionOrder: true,
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestUpsert_InsertThenUpdateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &models.Entity{
		Type:       "music",
		TStart:     time.Date(2026, 2, 16, 14, 30, 0, 0, time.UTC),
		TEnd:       ptr(time.Date(2026, 2, 16, 14, 33, 24, 0, time.UTC)),
		Source:     ptr("spotify"),
		ExternalID: ptr("ex-1"),
		Name:       ptr("Karma Police"),
	}

	id1, status1, err := s.Upsert(ctx, e)
	require.NoError(t, err)
	require.Equal(t, "inserted", status1)

	e2 := &models.Entity{
		Type:       "music",
		TStart:     e.TStart,
		TEnd:       e.TEnd,
		Source:     ptr("spotify"),
		ExternalID: ptr("ex-1"),
		Name:       ptr("Karma Police"),
	}
	id2, status2, err := s.Upsert(ctx, e2)
	require.NoError(t, err)
	require.Equal(t, "updated", status2)
	require.Equal(t, id1, id2)

	var count int
	require.NoError(t, s.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE source = ? AND external_id = ?", "spotify", "ex-1").Scan(&count))
	require.Equal(t, 1, count)
}

func TestQueryTime_OverlapAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, _, err := s.Upsert(ctx, &models.Entity{
			Type:       "location.gps",
			TStart:     base.Add(time.Duration(i) * time.Hour),
			Source:     ptr("gps"),
			ExternalID: ptr(fmt.Sprintf("gps-%d", i)),
		})
		require.NoError(t, err)
	}

	rows, err := s.QueryTime(ctx, []string{"location.gps"}, base, base.Add(2*time.Hour), 10, models.OrderTStartAsc)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.True(t, rows[0].TStart.Before(rows[1].TStart))
}

func TestQueryBBox_FiltersByEnvelope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	_, _, err := s.Upsert(ctx, &models.Entity{
		Type: "location.gps", TStart: ts,
		Lat: ptr(34.05), Lon: ptr(-118.24),
		Source: ptr("gps"), ExternalID: ptr("A"),
	})
	require.NoError(t, err)
	_, _, err = s.Upsert(ctx, &models.Entity{
		Type: "location.gps", TStart: ts,
		Lat: ptr(40.75), Lon: ptr(-73.98),
		Source: ptr("gps"), ExternalID: ptr("B"),
	})
	require.NoError(t, err)

	rows, err := s.QueryBBox(ctx, []string{"location.gps"}, [4]float64{-118.6, 33.7, -118.1, 34.3}, nil, 10, models.OrderTStartDesc)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "A", *rows[0].ExternalID)
}

func TestResample_PicksNearestPerBin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		_, _, err := s.Upsert(ctx, &models.Entity{
			Type:       "location.gps",
			TStart:     base.Add(time.Duration(i) * time.Minute),
			Source:     ptr("gps"),
			ExternalID: ptr(fmt.Sprintf("gps-%d", i)),
		})
		require.NoError(t, err)
	}

	end := base.Add(16*time.Hour + 40*time.Minute)
	rows, err := s.Resample(ctx, []string{"location.gps"}, base, end, 10)
	require.NoError(t, err)
	require.LessOrEqual(t, len(rows), 10)
	for i := 1; i < len(rows); i++ {
		require.True(t, rows[i].TStart.After(rows[i-1].TStart))
	}
}

func TestStreamAll_EmitsEveryRowOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _, err := s.Upsert(ctx, &models.Entity{
			Type:       "music",
			TStart:     time.Now().UTC().Add(time.Duration(i) * time.Second),
			Source:     ptr("spotify"),
			ExternalID: ptr(fmt.Sprintf("track-%d", i)),
		})
		require.NoError(t, err)
	}

	total, err := s.CountAll(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(10), total)

	stream, err := s.StreamAll(ctx, nil, models.StreamOldest)
	require.NoError(t, err)
	defer stream.Close()

	n := 0
	for stream.Next() {
		require.NotNil(t, stream.Entity())
		n++
	}
	require.Equal(t, 10, n)
}

func TestWatermark_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wm, err := s.GetWatermark(ctx, "spotify")
	require.NoError(t, err)
	require.Nil(t, wm)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SetWatermark(ctx, "spotify", now, 42))

	wm, err = s.GetWatermark(ctx, "spotify")
	require.NoError(t, err)
	require.NotNil(t, wm)
	require.Equal(t, 42, wm.LastCount)
	require.WithinDuration(t, now, wm.LastRun, time.Second)
}

func TestRenamePlace_PropagatesToVisits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	placeID, _, err := s.Upsert(ctx, &models.Entity{
		Type:       "place",
		TStart:     time.Unix(0, 0).UTC(),
		ExternalID: ptr("cluster_0"),
		Source:     ptr("place-detector"),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		payload, err := models.EncodePayload(models.VisitMetaPayload{PlaceID: mustParseUUID(t, placeID)})
		require.NoError(t, err)
		_, _, err = s.Upsert(ctx, &models.Entity{
			Type:       "place.visit",
			TStart:     time.Now().UTC().Add(time.Duration(i) * time.Hour),
			ExternalID: ptr(fmt.Sprintf("visit_%d", i)),
			Source:     ptr("place-detector"),
			Payload:    payload,
		})
		require.NoError(t, err)
	}

	renamed, updatedVisits, err := s.RenamePlace(ctx, placeID, ptr("Home"), ptr("#4CAF50"))
	require.NoError(t, err)
	require.Equal(t, "Home", *renamed.Name)
	require.Equal(t, 3, updatedVisits)
}

func mustParseUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	parsed, err := uuid.Parse(s)
	require.NoError(t, err)
	return parsed
}
