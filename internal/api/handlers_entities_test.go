package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/models"
)

type fakeEntityStore struct {
	upsertCalls int
	bulkCalls   int
}

func (f *fakeEntityStore) Upsert(ctx context.Context, e *models.Entity) (string, string, error) {
	f.upsertCalls++
	return e.ID.String(), "inserted", nil
}

func (f *fakeEntityStore) BulkUpsert(ctx context.Context, entities []*models.Entity) ([]models.UpsertResult, error) {
	f.bulkCalls++
	results := make([]models.UpsertResult, len(entities))
	for i, e := range entities {
		results[i] = models.UpsertResult{ID: e.ID.String(), Status: "inserted"}
	}
	return results, nil
}

func (f *fakeEntityStore) ListPlaces(ctx context.Context) ([]*models.Entity, error) { return nil, nil }
func (f *fakeEntityStore) GetPlace(ctx context.Context, id string) (*models.Entity, error) {
	return nil, nil
}
func (f *fakeEntityStore) RecentVisits(ctx context.Context, placeID string, limit int) ([]*models.Entity, error) {
	return nil, nil
}
func (f *fakeEntityStore) RenamePlace(ctx context.Context, id string, name, color *string) (*models.Entity, int, error) {
	return nil, 0, nil
}
func (f *fakeEntityStore) DeleteVisits(ctx context.Context, version *int) (int64, error) {
	return 0, nil
}
func (f *fakeEntityStore) Ping(ctx context.Context) error { return nil }
func (f *fakeEntityStore) Stats(ctx context.Context, uptimeSeconds float64) (*models.StatsResponse, error) {
	return nil, nil
}

type fakePublisher struct {
	published []*models.Entity
}

func (f *fakePublisher) PublishUpserted(e *models.Entity) {
	f.published = append(f.published, e)
}

func newTestAPI(store Store, pub EventPublisher) *API {
	return &API{store: store, publisher: pub, startedAt: time.Now()}
}

func TestHandleUpsertEntity_RejectsInvertedRange(t *testing.T) {
	store := &fakeEntityStore{}
	pub := &fakePublisher{}
	a := newTestAPI(store, pub)

	start := time.Now().UTC()
	end := start.Add(-time.Hour)
	body, err := json.Marshal(models.Entity{Type: "location.gps", TStart: start, TEnd: &end})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/entity", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.handleUpsertEntity(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 0, store.upsertCalls)
	assert.Empty(t, pub.published)
}

func TestHandleUpsertEntity_RejectsMissingRequiredFields(t *testing.T) {
	store := &fakeEntityStore{}
	a := newTestAPI(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/entity", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	a.handleUpsertEntity(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 0, store.upsertCalls)
}

func TestHandleUpsertEntity_ValidBodyUpsertsAndPublishes(t *testing.T) {
	store := &fakeEntityStore{}
	pub := &fakePublisher{}
	a := newTestAPI(store, pub)

	body, err := json.Marshal(models.Entity{Type: "location.gps", TStart: time.Now().UTC()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/entity", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.handleUpsertEntity(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.upsertCalls)
	assert.Len(t, pub.published, 1)
}

func TestHandleBatchUpsert_RejectsAnyInvalidEntity(t *testing.T) {
	store := &fakeEntityStore{}
	a := newTestAPI(store, nil)

	good := models.Entity{Type: "location.gps", TStart: time.Now().UTC()}
	bad := models.Entity{Type: "location.gps"} // missing t_start
	body, err := json.Marshal([]models.Entity{good, bad})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/entities/batch", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.handleBatchUpsert(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 0, store.bulkCalls)
}
