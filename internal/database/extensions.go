package database

import (
	"context"
	"fmt"
	"time"
)

// installSpatialExtension installs and loads DuckDB's spatial extension.
// geobase needs only this one extension (ST_Point, ST_MakeEnvelope,
// ST_Intersects, the RTREE index type) — unlike the teacher, which also loads icu/json/inet/
// sqlite/rapidfuzz/datasketches for unrelated analytics features that have
// no home in geobase's scope (see DESIGN.md).
func (s *Store) installSpatialExtension() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.conn.ExecContext(ctx, "INSTALL spatial;"); err != nil {
		if _, loadErr := s.conn.ExecContext(ctx, "LOAD spatial;"); loadErr != nil {
			return fmt.Errorf("install spatial: %w (load also failed: %v)", err, loadErr)
		}
		return nil
	}

	if _, err := s.conn.ExecContext(ctx, "LOAD spatial;"); err != nil {
		return fmt.Errorf("load spatial: %w", err)
	}
	return nil
}
