package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/geobase/geobase/internal/planner"
)

// isStoreUnavailable mirrors database's isConnectionError check (spec.md
// §7's StoreUnavailable kind): pool exhaustion or a lost connection.
func isStoreUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "database is closed")
}

// writeQueryError maps a Planner/Store error to the transport status codes
// spec.md §7 names for its error kinds (ValidationError, NotFound,
// StoreUnavailable), defaulting to 500 with a generic reason otherwise.
func writeQueryError(w http.ResponseWriter, err error) {
	var verr *planner.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if isStoreUnavailable(err) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "query failed")
}
