package api

import (
	"compress/gzip"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/geobase/geobase/internal/models"
	"github.com/geobase/geobase/internal/validation"
)

// handleQueryTime implements POST /v1/query/time (spec.md §4.5/§4.6).
func (a *API) handleQueryTime(w http.ResponseWriter, r *http.Request) {
	var req models.TimeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		writeError(w, http.StatusUnprocessableEntity, verr.Detail())
		return
	}

	entities, err := a.planner.PlanTime(r.Context(), req)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

// handleQueryBBox implements POST /v1/query/bbox (spec.md §4.5/§4.6).
func (a *API) handleQueryBBox(w http.ResponseWriter, r *http.Request) {
	var req models.BBoxQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		writeError(w, http.StatusUnprocessableEntity, verr.Detail())
		return
	}

	entities, err := a.planner.PlanBBox(r.Context(), req)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

// handleExport implements GET /v1/query/export (spec.md §4.5/§6): an
// NDJSON stream led by a {"total": N} line, gzipped when the client
// advertises support, draining the Planner's server-side cursor one row at
// a time so memory stays bounded independent of total.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var types []string
	if raw := q.Get("types"); raw != "" {
		types = strings.Split(raw, ",")
	}
	order := models.StreamOrder(q.Get("order"))

	stream, total, err := a.planner.PlanExport(r.Context(), types, order)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")

	var out writeFlusher = w
	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		out = gz
	}

	enc := json.NewEncoder(out)
	if err := enc.Encode(struct {
		Total int64 `json:"total"`
	}{Total: total}); err != nil {
		return
	}

	for stream.Next() {
		if err := enc.Encode(stream.Entity()); err != nil {
			return
		}
		if f, ok := out.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
}

// writeFlusher is the subset of io.Writer the export encoder needs; both
// http.ResponseWriter and *gzip.Writer satisfy it.
type writeFlusher interface {
	Write(p []byte) (int, error)
}

func acceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(enc) == "gzip" {
			return true
		}
	}
	return false
}
