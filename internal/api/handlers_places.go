package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/geobase/geobase/internal/models"
	"github.com/geobase/geobase/internal/validation"
)

// handleListPlaces implements GET /v1/places (spec.md §4.6).
func (a *API) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := a.store.ListPlaces(r.Context())
	if err != nil {
		writeQueryError(w, err)
		return
	}

	out := make([]models.PlaceResponse, 0, len(places))
	for _, p := range places {
		stats := placeStats(p)
		out = append(out, models.PlaceResponse{Entity: *p, Stats: stats})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetPlace implements GET /v1/places/{id} (spec.md §4.6): place
// detail plus recent visits.
func (a *API) handleGetPlace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	place, err := a.store.GetPlace(r.Context(), id)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if place == nil {
		writeError(w, http.StatusNotFound, "place not found")
		return
	}

	visits, err := a.store.RecentVisits(r.Context(), id, 50)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	recent := make([]models.Entity, 0, len(visits))
	for _, v := range visits {
		recent = append(recent, *v)
	}

	writeJSON(w, http.StatusOK, models.PlaceDetailResponse{Entity: *place, Stats: placeStats(place), RecentVisits: recent})
}

// handleRenamePlace implements PATCH /v1/places/{id} (spec.md §4.6):
// rename and/or color change, propagated to visits in one transaction.
func (a *API) handleRenamePlace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.RenamePlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		writeError(w, http.StatusUnprocessableEntity, verr.Detail())
		return
	}

	place, updated, err := a.store.RenamePlace(r.Context(), id, req.Name, req.Color)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "place not found")
		return
	}
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RenamePlaceResponse{Entity: *place, UpdatedVisits: updated})
}

// handleDeleteVisits implements DELETE /v1/visits (spec.md §4.6): bulk
// delete of place.visit rows, requiring an explicit confirm=yes to guard
// against accidental mass deletion, optionally restricted to a cluster-run
// version.
func (a *API) handleDeleteVisits(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "yes" {
		writeError(w, http.StatusUnprocessableEntity, "delete requires confirm=yes")
		return
	}

	var version *int
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "version must be an integer")
			return
		}
		version = &v
	}

	deleted, err := a.store.DeleteVisits(r.Context(), version)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Deleted int64 `json:"deleted"`
	}{Deleted: deleted})
}

// placeStats decodes a place's stats payload, falling back to the zero
// value if the row predates a payload field or decoding fails.
func placeStats(e *models.Entity) models.PlaceMetaPayload {
	stats, err := models.DecodePlaceMeta(e)
	if err != nil || stats == nil {
		return models.PlaceMetaPayload{}
	}
	return *stats
}
