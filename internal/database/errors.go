package database

import "strings"

// isTransactionConflict checks for a DuckDB transaction-conflict error —
// the retryable case the per-key lock can't fully eliminate because a
// concurrent reader transaction may still be holding a snapshot.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "cannot update a table that has been altered")
}

// isInternalError checks for a DuckDB INTERNAL error, which per-key locking
// is specifically meant to prevent; seeing one anyway means retrying won't
// help.
func isInternalError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "INTERNAL Error")
}

// isConnectionError checks if an error indicates the pool lost its
// connection, the condition the API surface maps to a 503 StoreUnavailable
// (spec.md §7).
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "driver: bad connection") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "sql: database is closed")
}
