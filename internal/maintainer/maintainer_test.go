package maintainer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/models"
)

func TestApply_SetsCreatedAndUpdatedAt(t *testing.T) {
	e := &models.Entity{ID: uuid.New(), Type: "music", TStart: time.Now()}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	Apply(e, now, true)

	assert.Equal(t, now, e.CreatedAt)
	assert.Equal(t, now, e.UpdatedAt)
}

func TestApply_UpdateNeverTouchesCreatedAt(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &models.Entity{ID: uuid.New(), Type: "music", CreatedAt: created}
	later := created.Add(time.Hour)

	Apply(e, later, false)

	assert.Equal(t, created, e.CreatedAt, "update must not move created_at")
	assert.Equal(t, later, e.UpdatedAt)
}

func TestNormalizeLocation_PartialCoordinatesCollapseToAbsent(t *testing.T) {
	lat := 34.1
	e := &models.Entity{Lat: &lat, Lon: nil}

	Apply(e, time.Now(), true)

	assert.Nil(t, e.Lat)
	assert.Nil(t, e.Lon)
	assert.False(t, e.HasCoordinates())
}

func TestTimeRange_NoEnd(t *testing.T) {
	start := time.Date(2026, 2, 16, 14, 30, 0, 0, time.UTC)
	e := &models.Entity{TStart: start}

	tr := TimeRange(e)

	require.Equal(t, start, tr.Start)
	require.Equal(t, start, tr.End)
}

func TestTimeRange_WithEnd(t *testing.T) {
	start := time.Date(2026, 2, 16, 14, 30, 0, 0, time.UTC)
	end := start.Add(3*time.Minute + 24*time.Second)
	e := &models.Entity{TStart: start, TEnd: &end}

	tr := TimeRange(e)

	assert.Equal(t, start, tr.Start)
	assert.Equal(t, end, tr.End)
}

func TestOverlaps(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	// Entity with no t_end, t_start inside the window, overlaps.
	instant := t0.Add(9 * time.Hour)
	e := &models.Entity{TStart: instant}
	window := models.TimeRange{Start: t0, End: t1}

	assert.True(t, e.TimeRange().Overlaps(window))

	outside := &models.Entity{TStart: t1.Add(time.Hour)}
	assert.False(t, outside.TimeRange().Overlaps(window))
}
