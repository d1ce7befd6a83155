// Package maintainer keeps an Entity's derived fields synchronized with their
// scalar sources on every write (spec §4.2): Apply collapses a half-set
// lat/lon pair to absent and stamps created_at/updated_at. The geom column
// itself is built from lat/lon by the Store's INSERT/UPDATE statement, and
// t_range_start/t_range_end come from Entity.TimeRange. It is called from
// the Store's write path, never from a
// database trigger: the teacher repo (tomtom215/cartographus) does the
// equivalent derivation in Go rather than relying on DuckDB trigger support,
// and geobase follows the same pattern.
//
// Callers may not set geom, t_range, or updated_at directly; models.Entity
// carries no exported fields for geom/t_range at all, and Apply always
// overwrites any caller-supplied updated_at.
package maintainer

import (
	"time"

	"github.com/geobase/geobase/internal/models"
)

// Apply recomputes every derived field on e in place, immediately before a
// Store write. now is passed in rather than read from time.Now() so tests and
// batch upserts can give every row in one transaction an identical, or
// deterministically advancing, timestamp.
func Apply(e *models.Entity, now time.Time, created bool) {
	normalizeLocation(e)
	if created {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

// normalizeLocation upholds invariant I2 (geom absent iff either coordinate
// is absent) by ensuring Lat/Lon are either both present or both nil — a
// partially-set pair from a malformed caller is collapsed to "absent" rather
// than persisted as a contradiction the Store's geom column cannot represent.
func normalizeLocation(e *models.Entity) {
	if e.Lat == nil || e.Lon == nil {
		e.Lat = nil
		e.Lon = nil
	}
}

// TimeRange computes invariant I3 — the closed interval
// [TStart, TEnd ?? TStart] — the same interval the Store's write path stores
// in its plain t_range_start/t_range_end columns via Entity.TimeRange.
func TimeRange(e *models.Entity) models.TimeRange {
	return e.TimeRange()
}
