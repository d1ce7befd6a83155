package database

import (
	"context"
	"fmt"

	"github.com/geobase/geobase/internal/models"
)

// EntityStream is a lazy, finite, non-restartable sequence of entities
// backed by a DuckDB server-side cursor, holding at most one decoded row in
// memory at a time — the constant-memory contract spec.md §4.1's stream_all
// and §9's streaming-export design note require.
type EntityStream struct {
	rows    sqlRows
	current *models.Entity
}

// sqlRows is the subset of *sql.Rows EntityStream needs; kept as an
// interface so tests can substitute a fake cursor.
type sqlRows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close() error
}

// Next advances the cursor. Returns false at end of stream, and also when the
// cursor or a row scan fails; EntityStream does not report which happened.
func (es *EntityStream) Next() bool {
	if !es.rows.Next() {
		return false
	}
	e, err := scanEntity(es.rows)
	if err != nil {
		es.current = nil
		return false
	}
	es.current = e
	return true
}

// Entity returns the row decoded by the most recent successful Next call.
func (es *EntityStream) Entity() *models.Entity {
	return es.current
}

// Close releases the cursor. Safe to call multiple times.
func (es *EntityStream) Close() error {
	return es.rows.Close()
}

// StreamAll opens a server-side cursor over every entity, optionally
// filtered by type, ordered newest-or-oldest first (spec.md §4.1).
func (s *Store) StreamAll(ctx context.Context, types []string, order models.StreamOrder) (*EntityStream, error) {
	direction := "DESC"
	if order == models.StreamOldest {
		direction = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM entities", selectColumnsSQL())
	var args []any
	if len(types) > 0 {
		placeholders, typeArgs := inClausePlaceholders(types)
		query += fmt.Sprintf(" WHERE type IN (%s)", placeholders)
		args = typeArgs
	}
	query += fmt.Sprintf(" ORDER BY t_start %s", direction)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stream_all: %w", err)
	}
	return &EntityStream{rows: rows}, nil
}

// CountAll returns the number of entities StreamAll with the same types
// filter would yield, used to emit the export's leading {"total": N} line.
func (s *Store) CountAll(ctx context.Context, types []string) (int64, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	query := "SELECT COUNT(*) FROM entities"
	var args []any
	if len(types) > 0 {
		placeholders, typeArgs := inClausePlaceholders(types)
		query += fmt.Sprintf(" WHERE type IN (%s)", placeholders)
		args = typeArgs
	}

	var total int64
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count_all: %w", err)
	}
	return total, nil
}
