package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/metrics"
	"github.com/geobase/geobase/internal/models"
)

// QueryTime returns entities whose t_range overlaps [start,end] and whose
// type is in types, ordered by t_start and bounded by limit (spec.md §4.1).
func (s *Store) QueryTime(ctx context.Context, types []string, start, end time.Time, limit int, order models.Order) (_ []*models.Entity, err error) {
	queryStart := time.Now()
	defer func() { metrics.RecordDBQuery("query_time", time.Since(queryStart), err) }()

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	placeholders, args := inClausePlaceholders(types)
	direction := "ASC"
	if order == models.OrderTStartDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM entities
		WHERE type IN (%s) AND t_range_start <= ? AND ? <= t_range_end
		ORDER BY t_start %s
		LIMIT ?`, selectColumnsSQL(), placeholders, direction)

	args = append(args, end, start, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query_time: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// QueryBBox returns entities inside the envelope, optionally intersecting a
// time window, bounded by limit (spec.md §4.1).
func (s *Store) QueryBBox(ctx context.Context, types []string, bbox [4]float64, window *models.TimeWindow, limit int, order models.Order) (_ []*models.Entity, err error) {
	queryStart := time.Now()
	defer func() { metrics.RecordDBQuery("query_bbox", time.Since(queryStart), err) }()

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	placeholders, args := inClausePlaceholders(types)
	lonMin, latMin, lonMax, latMax := bbox[0], bbox[1], bbox[2], bbox[3]

	var query string
	if s.spatialAvailable {
		query = fmt.Sprintf(`
		SELECT %s FROM entities
		WHERE type IN (%s) AND ST_Intersects(geom, ST_MakeEnvelope(?, ?, ?, ?))`,
			selectColumnsSQL(), placeholders)
		args = append(args, lonMin, latMin, lonMax, latMax)
	} else {
		query = fmt.Sprintf(`
		SELECT %s FROM entities
		WHERE type IN (%s) AND lon BETWEEN ? AND ? AND lat BETWEEN ? AND ?`,
			selectColumnsSQL(), placeholders)
		args = append(args, lonMin, lonMax, latMin, latMax)
	}

	if window != nil {
		query += " AND t_range_start <= ? AND ? <= t_range_end"
		args = append(args, window.End, window.Start)
	}

	switch order {
	case models.OrderTStartAsc:
		query += " ORDER BY t_start ASC"
	case models.OrderRandom:
		query += " ORDER BY random()"
	default:
		query += " ORDER BY t_start DESC"
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query_bbox: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// Resample implements spec.md §4.1's uniform-time resample operator: n
// adjacent half-open bins, one bounded nearest-neighbor lookup per bin using
// the (type, t_start) index, rather than a full scan.
func (s *Store) Resample(ctx context.Context, types []string, start, end time.Time, n int) (_ []*models.Entity, err error) {
	queryStart := time.Now()
	defer func() { metrics.RecordDBQuery("resample", time.Since(queryStart), err) }()

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	placeholders, typeArgs := inClausePlaceholders(types)
	width := end.Sub(start) / time.Duration(n)

	query := fmt.Sprintf(`
		SELECT %s FROM entities
		WHERE type IN (%s) AND t_start >= ? AND t_start < ?
		ORDER BY ABS(epoch(t_start) - epoch(CAST(? AS TIMESTAMP))), t_start ASC, id ASC
		LIMIT 1`, selectColumnsSQL(), placeholders)

	results := make([]*models.Entity, 0, n)
	for i := 0; i < n; i++ {
		binStart := start.Add(width * time.Duration(i))
		binEnd := binStart.Add(width)
		center := start.Add(time.Duration(float64(end.Sub(start)) * (float64(i) + 0.5) / float64(n)))

		args := make([]any, 0, len(typeArgs)+3)
		args = append(args, typeArgs...)
		args = append(args, binStart, binEnd, center)

		row := s.conn.QueryRowContext(ctx, query, args...)
		e, err := scanEntity(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("resample bin %d: %w", i, err)
		}
		results = append(results, e)
	}
	return results, nil
}

// AllLocations returns every location.gps row ordered by t_start ascending,
// the full input the Place/Visit Detector clusters over (spec.md §4.4.3).
func (s *Store) AllLocations(ctx context.Context) (_ []*models.Entity, err error) {
	queryStart := time.Now()
	defer func() { metrics.RecordDBQuery("all_locations", time.Since(queryStart), err) }()

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM entities WHERE type = ? ORDER BY t_start ASC", selectColumnsSQL())
	rows, err := s.conn.QueryContext(ctx, query, models.TypeLocationGPS)
	if err != nil {
		return nil, fmt.Errorf("all_locations: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// NearestLocationFix returns the most recent source row at or before instant
// (spec.md §4.3's enrichment lookup: type=location.gps, t_start <= instant,
// ORDER BY t_start DESC LIMIT 1), or nil if the source has no fix that early.
func (s *Store) NearestLocationFix(ctx context.Context, source string, instant time.Time) (*models.Entity, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM entities
		WHERE type = ? AND source = ? AND t_start <= ?
		ORDER BY t_start DESC
		LIMIT 1`, selectColumnsSQL())

	row := s.conn.QueryRowContext(ctx, query, models.TypeLocationGPS, source, instant)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nearest_location_fix: %w", err)
	}
	return e, nil
}

func inClausePlaceholders(items []string) (string, []any) {
	placeholders := ""
	args := make([]any, 0, len(items))
	for i, item := range items {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, item)
	}
	return placeholders, args
}

func scanEntities(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]*models.Entity, error) {
	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
