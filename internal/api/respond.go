package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/geobase/geobase/internal/logging"
)

// errorBody is the wire shape of every error response (spec.md §6's
// {"detail": "<message>"}, replacing the teacher's APIResponse envelope —
// see DESIGN.md "Keep HOW, replace WHAT").
type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON writes v as the bare JSON payload spec.md §6 requires: no
// envelope around success responses.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("write response")
	}
}

// writeError writes the {"detail": "..."} error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Detail: message})
}
