package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/geobase/geobase/internal/models"
)

// Stats assembles the GET /stats response (spec.md §6).
func (s *Store) Stats(ctx context.Context, startedAt float64) (*models.StatsResponse, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	var total int64
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&total); err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}

	byType, err := s.entitiesByType(ctx)
	if err != nil {
		return nil, err
	}

	coverage, err := s.timeCoverage(ctx)
	if err != nil {
		return nil, err
	}

	dbStats := s.databaseStats()

	return &models.StatsResponse{
		TotalEntities:  total,
		EntitiesByType: byType,
		TimeCoverage:   coverage,
		Database:       dbStats,
		UptimeSeconds:  startedAt,
	}, nil
}

func (s *Store) entitiesByType(ctx context.Context) ([]models.TypeCount, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT type, COUNT(*) FROM entities GROUP BY type ORDER BY type")
	if err != nil {
		return nil, fmt.Errorf("entities_by_type: %w", err)
	}
	defer rows.Close()

	var out []models.TypeCount
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *Store) timeCoverage(ctx context.Context) (models.TimeCoverage, error) {
	var oldest, newest sql.NullTime
	err := s.conn.QueryRowContext(ctx, "SELECT MIN(t_start), MAX(t_start) FROM entities").Scan(&oldest, &newest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.TimeCoverage{}, fmt.Errorf("time_coverage: %w", err)
	}
	var tc models.TimeCoverage
	if oldest.Valid {
		tc.Oldest = &oldest.Time
	}
	if newest.Valid {
		tc.Newest = &newest.Time
	}
	return tc, nil
}

// databaseStats reports on-disk size in megabytes; best-effort since DuckDB
// does not expose a direct table/index size split the way some engines do.
func (s *Store) databaseStats() models.DatabaseStats {
	info, err := os.Stat(s.cfg.URL)
	if err != nil {
		return models.DatabaseStats{}
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	return models.DatabaseStats{
		SizeMB:      sizeMB,
		TableSizeMB: sizeMB,
		IndexSizeMB: 0,
	}
}
