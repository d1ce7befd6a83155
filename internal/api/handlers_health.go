package api

import (
	"net/http"
	"time"
)

// handleHealth implements GET /health (spec.md §4.6): liveness, pings the
// Store's connection pool.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// handleStats implements GET /stats (spec.md §4.6/§6).
func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(a.startedAt).Seconds()
	stats, err := a.store.Stats(r.Context(), uptime)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
