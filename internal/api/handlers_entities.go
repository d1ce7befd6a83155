package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/geobase/geobase/internal/models"
	"github.com/geobase/geobase/internal/validation"
)

// handleUpsertEntity implements POST /v1/entity (spec.md §4.6): direct
// upsert of one entity.
func (a *API) handleUpsertEntity(w http.ResponseWriter, r *http.Request) {
	var e models.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity body: "+err.Error())
		return
	}
	if verr := validation.ValidateStruct(&e); verr != nil {
		writeError(w, http.StatusUnprocessableEntity, verr.Detail())
		return
	}

	id, status, err := a.store.Upsert(r.Context(), &e)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	a.publish(&e)
	writeJSON(w, http.StatusOK, models.UpsertResult{ID: id, Status: status})
}

// handleBatchUpsert implements POST /v1/entities/batch (spec.md §4.6).
func (a *API) handleBatchUpsert(w http.ResponseWriter, r *http.Request) {
	var entities []*models.Entity
	if err := json.NewDecoder(r.Body).Decode(&entities); err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch body: "+err.Error())
		return
	}
	if len(entities) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "batch must contain at least one entity")
		return
	}
	for _, e := range entities {
		if verr := validation.ValidateStruct(e); verr != nil {
			writeError(w, http.StatusUnprocessableEntity, verr.Detail())
			return
		}
	}

	results, err := a.store.BulkUpsert(r.Context(), entities)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	for _, e := range entities {
		a.publish(e)
	}
	writeJSON(w, http.StatusOK, models.BatchUpsertResponse{Results: results})
}

// publish notifies the event bus after a successful direct-write upsert, the
// same entity.upserted signal the ingestion engine fires, so the resolver
// cache invalidates promptly instead of waiting out its LRU TTL. a.publisher
// is nil in tests that don't wire an event bus.
func (a *API) publish(e *models.Entity) {
	if a.publisher != nil {
		a.publisher.PublishUpserted(e)
	}
}
