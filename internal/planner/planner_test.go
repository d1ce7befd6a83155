package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/database"
	"github.com/geobase/geobase/internal/models"
)

type fakeStore struct {
	timeCalls, bboxCalls, resampleCalls int
	lastTimeLimit, lastBBoxLimit        int
	lastTimeOrder                       models.Order
	lastBBoxOrder                       models.Order
	entities                            []*models.Entity
	streamTypes                         []string
	streamOrder                         models.StreamOrder
}

func (f *fakeStore) QueryTime(ctx context.Context, types []string, start, end time.Time, limit int, order models.Order) ([]*models.Entity, error) {
	f.timeCalls++
	f.lastTimeLimit = limit
	f.lastTimeOrder = order
	return f.entities, nil
}

func (f *fakeStore) QueryBBox(ctx context.Context, types []string, bbox [4]float64, window *models.TimeWindow, limit int, order models.Order) ([]*models.Entity, error) {
	f.bboxCalls++
	f.lastBBoxLimit = limit
	f.lastBBoxOrder = order
	return f.entities, nil
}

func (f *fakeStore) Resample(ctx context.Context, types []string, start, end time.Time, n int) ([]*models.Entity, error) {
	f.resampleCalls++
	return f.entities, nil
}

func (f *fakeStore) StreamAll(ctx context.Context, types []string, order models.StreamOrder) (*database.EntityStream, error) {
	f.streamTypes = types
	f.streamOrder = order
	return nil, nil
}

func (f *fakeStore) CountAll(ctx context.Context, types []string) (int64, error) {
	return int64(len(f.entities)), nil
}

func TestPlanTime_RejectsInvertedWindow(t *testing.T) {
	p := New(&fakeStore{})
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := p.PlanTime(context.Background(), models.TimeQueryRequest{Types: []string{"music"}, Start: start, End: end})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPlanTime_DefaultsLimitAndOrder(t *testing.T) {
	store := &fakeStore{}
	p := New(store)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := p.PlanTime(context.Background(), models.TimeQueryRequest{
		Types: []string{"music"}, Start: start, End: start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.timeCalls)
	assert.Equal(t, DefaultTimeLimit, store.lastTimeLimit)
	assert.Equal(t, models.OrderTStartAsc, store.lastTimeOrder)
}

func TestPlanTime_ResampleAndLimitMutuallyExclusive(t *testing.T) {
	p := New(&fakeStore{})
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := p.PlanTime(context.Background(), models.TimeQueryRequest{
		Types: []string{"music"}, Start: start, End: start.Add(time.Hour),
		Limit:    100,
		Resample: &models.Resample{Method: "uniform_time", N: 10},
	})
	require.Error(t, err)
}

func TestPlanTime_ResampleOutOfRangeRejected(t *testing.T) {
	p := New(&fakeStore{})
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := p.PlanTime(context.Background(), models.TimeQueryRequest{
		Types: []string{"music"}, Start: start, End: start.Add(time.Hour),
		Resample: &models.Resample{Method: "uniform_time", N: 0},
	})
	require.Error(t, err)

	_, err = p.PlanTime(context.Background(), models.TimeQueryRequest{
		Types: []string{"music"}, Start: start, End: start.Add(time.Hour),
		Resample: &models.Resample{Method: "uniform_time", N: 10001},
	})
	require.Error(t, err)
}

func TestPlanTime_UsesResampleOperator(t *testing.T) {
	store := &fakeStore{}
	p := New(store)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := p.PlanTime(context.Background(), models.TimeQueryRequest{
		Types: []string{"location.gps"}, Start: start, End: start.Add(16*time.Hour + 40*time.Minute),
		Resample: &models.Resample{Method: "uniform_time", N: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.resampleCalls)
	assert.Equal(t, 0, store.timeCalls)
}

func TestPlanTime_RejectsLimitOverCap(t *testing.T) {
	p := New(&fakeStore{})
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := p.PlanTime(context.Background(), models.TimeQueryRequest{
		Types: []string{"music"}, Start: start, End: start.Add(time.Hour), Limit: 10001,
	})
	require.Error(t, err)
}

func TestPlanBBox_RejectsInvertedBox(t *testing.T) {
	p := New(&fakeStore{})
	_, err := p.PlanBBox(context.Background(), models.BBoxQueryRequest{
		Types: []string{"location.gps"},
		BBox:  [4]float64{10, 10, -10, -10},
	})
	require.Error(t, err)
}

func TestPlanBBox_RejectsOutOfWGS84Bounds(t *testing.T) {
	p := New(&fakeStore{})
	_, err := p.PlanBBox(context.Background(), models.BBoxQueryRequest{
		Types: []string{"location.gps"},
		BBox:  [4]float64{-200, -10, -190, 10},
	})
	require.Error(t, err)
}

func TestPlanBBox_DefaultsLimitAndOrder(t *testing.T) {
	store := &fakeStore{}
	p := New(store)
	_, err := p.PlanBBox(context.Background(), models.BBoxQueryRequest{
		Types: []string{"location.gps"},
		BBox:  [4]float64{-118.5, 34.0, -118.0, 34.5},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultBBoxLimit, store.lastBBoxLimit)
	assert.Equal(t, models.OrderTStartDesc, store.lastBBoxOrder)
}

func TestPlanExport_DefaultsToNewestAndCountsFirst(t *testing.T) {
	store := &fakeStore{entities: []*models.Entity{{}, {}, {}}}
	p := New(store)

	_, total, err := p.PlanExport(context.Background(), nil, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, models.StreamNewest, store.streamOrder)
}
