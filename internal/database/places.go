package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/models"
)

// ListPlaces returns every place entity (spec.md §4.4.3's "place" rows).
func (s *Store) ListPlaces(ctx context.Context) ([]*models.Entity, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM entities WHERE type = ? ORDER BY created_at DESC", selectColumnsSQL())
	rows, err := s.conn.QueryContext(ctx, query, models.TypePlace)
	if err != nil {
		return nil, fmt.Errorf("list_places: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// GetPlace returns one place by id, or nil if not found.
func (s *Store) GetPlace(ctx context.Context, id string) (*models.Entity, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM entities WHERE type = ? AND id = ?", selectColumnsSQL())
	row := s.conn.QueryRowContext(ctx, query, models.TypePlace, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_place: %w", err)
	}
	return e, nil
}

// RecentVisits returns the most recent place.visit entities referencing
// placeID, newest first, bounded by limit.
func (s *Store) RecentVisits(ctx context.Context, placeID string, limit int) ([]*models.Entity, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM entities
		WHERE type = ? AND payload->>'place_id' = ?
		ORDER BY t_start DESC
		LIMIT ?`, selectColumnsSQL())

	rows, err := s.conn.QueryContext(ctx, query, models.TypePlaceVisit, placeID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent_visits: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// RenamePlace updates a place's name/color and propagates the name/color to
// every place.visit referencing it, in one transaction (spec.md §4.4.3).
// Returns the updated place and the number of visits touched, a testable
// invariant (spec.md §8).
func (s *Store) RenamePlace(ctx context.Context, id string, name, color *string) (*models.Entity, int, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin rename tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		"UPDATE entities SET name = COALESCE(?, name), color = COALESCE(?, color), updated_at = ? WHERE id = ? AND type = ?",
		name, color, now, id, models.TypePlace,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("rename place: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, 0, sql.ErrNoRows
	}

	visitRes, err := tx.ExecContext(ctx,
		`UPDATE entities SET name = COALESCE(?, name), color = COALESCE(?, color), updated_at = ?
		 WHERE type = ? AND payload->>'place_id' = ?`,
		name, color, now, models.TypePlaceVisit, id,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("propagate rename to visits: %w", err)
	}
	updatedVisits, err := visitRes.RowsAffected()
	if err != nil {
		return nil, 0, fmt.Errorf("count updated visits: %w", err)
	}

	row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM entities WHERE id = ?", selectColumnsSQL()), id)
	place, err := scanEntity(row)
	if err != nil {
		return nil, 0, fmt.Errorf("reload renamed place: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit rename: %w", err)
	}

	return place, int(updatedVisits), nil
}

// DeleteVisits bulk-deletes place.visit rows, optionally restricted to a
// cluster-run version (spec.md §4.1's delete_visits(version?)).
func (s *Store) DeleteVisits(ctx context.Context, version *int) (int64, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	query := "DELETE FROM entities WHERE type = ?"
	args := []any{models.TypePlaceVisit}
	if version != nil {
		query += " AND payload->>'version' = ?"
		args = append(args, fmt.Sprintf("%d", *version))
	}

	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete_visits: %w", err)
	}
	return res.RowsAffected()
}

// DeleteVisitsInWindow bulk-deletes place.visit rows whose t_range overlaps
// w (spec.md §4.1's delete_visits_in_window(w)).
func (s *Store) DeleteVisitsInWindow(ctx context.Context, w models.TimeWindow) (int64, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM entities WHERE type = ? AND t_range_start <= ? AND ? <= t_range_end",
		models.TypePlaceVisit, w.End, w.Start,
	)
	if err != nil {
		return 0, fmt.Errorf("delete_visits_in_window: %w", err)
	}
	return res.RowsAffected()
}
