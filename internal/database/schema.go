package database

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the entities and source_state tables (spec.md
// §3.1, §3.2) if they don't already exist.
func (s *Store) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	geomType := "DOUBLE[]" // placeholder column kept NULL when spatial is unavailable
	if s.spatialAvailable {
		geomType = "GEOMETRY"
	}

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entities (
			id UUID PRIMARY KEY,
			type VARCHAR NOT NULL,
			t_start TIMESTAMP NOT NULL,
			t_end TIMESTAMP,
			lat DOUBLE,
			lon DOUBLE,
			geom %s,
			t_range_start TIMESTAMP NOT NULL,
			t_range_end TIMESTAMP NOT NULL,
			name VARCHAR,
			color VARCHAR,
			render_offset DOUBLE NOT NULL DEFAULT 0,
			source VARCHAR,
			external_id VARCHAR,
			dedupe_key VARCHAR,
			loc_source VARCHAR,
			payload JSON,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`, geomType),

		`CREATE TABLE IF NOT EXISTS source_state (
			source VARCHAR PRIMARY KEY,
			last_run TIMESTAMP NOT NULL,
			last_count INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema query: %s: %w", q, err)
		}
	}
	return nil
}

// createIndexes creates the indices spec.md §4.1 requires at design level.
// The partial-unique constraint on (source, external_id) is realized as a
// plain UNIQUE index over a nullable dedupe_key column: SQL unique indexes
// permit any number of NULLs, so rows lacking source/external_id never
// collide, which is exactly the "WHERE both non-null" behavior the spec
// describes (DuckDB does not support partial/filtered indexes).
func (s *Store) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_entities_type_tstart ON entities(type, t_start DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_tstart ON entities(t_start);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_tend ON entities(t_end);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_trange ON entities(t_range_start, t_range_end);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_dedupe_key ON entities(dedupe_key);`,
	}
	for _, q := range indexes {
		if _, err := s.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", q, err)
		}
	}

	if s.spatialAvailable {
		spatialIdx := `CREATE INDEX IF NOT EXISTS idx_entities_geom ON entities USING RTREE (geom);`
		if _, err := s.conn.ExecContext(ctx, spatialIdx); err != nil {
			return fmt.Errorf("failed to create spatial index: %w", err)
		}
	}

	return nil
}
