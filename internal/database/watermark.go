package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/models"
)

// GetWatermark returns the source's progress marker, or nil if the source
// has never completed a run (spec.md §3.2).
func (s *Store) GetWatermark(ctx context.Context, source string) (*models.Watermark, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	var wm models.Watermark
	err := s.conn.QueryRowContext(ctx,
		"SELECT source, last_run, last_count, updated_at FROM source_state WHERE source = ?", source,
	).Scan(&wm.Source, &wm.LastRun, &wm.LastCount, &wm.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_watermark: %w", err)
	}
	return &wm, nil
}

// SetWatermark advances the source's watermark after a successful run. It
// is called only after the ingestion run's iterator terminates without
// error (spec.md §4.4.2) — a partially-failed run must never reach here.
func (s *Store) SetWatermark(ctx context.Context, source string, lastRun time.Time, count int) error {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO source_state (source, last_run, last_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source) DO UPDATE SET
			last_run = EXCLUDED.last_run,
			last_count = EXCLUDED.last_count,
			updated_at = EXCLUDED.updated_at`,
		source, lastRun, count, now,
	)
	if err != nil {
		return fmt.Errorf("set_watermark: %w", err)
	}
	return nil
}
