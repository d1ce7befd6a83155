package database

import (
	"database/sql"
	"fmt"

	"github.com/geobase/geobase/internal/models"
	"github.com/google/uuid"
)

// dedupeKey computes the Store's internal uniqueness key for (source,
// external_id). It is ∅ unless both are set, so rows without a dedup pair
// never collide in the unique index (spec.md I4).
func dedupeKey(source, externalID *string) *string {
	if source == nil || externalID == nil || *source == "" || *externalID == "" {
		return nil
	}
	key := *source + "\x00" + *externalID
	return &key
}

// entityColumns lists the columns shared by every SELECT against entities,
// in the order scanEntity expects them.
var entityColumns = []string{
	"id", "type", "t_start", "t_end", "lat", "lon",
	"name", "color", "render_offset", "source", "external_id",
	"loc_source", "payload", "created_at", "updated_at",
}

func selectColumnsSQL() string {
	sql := ""
	for i, c := range entityColumns {
		if i > 0 {
			sql += ", "
		}
		sql += c
	}
	return sql
}

// scanEntity scans one row shaped like entityColumns into an Entity.
func scanEntity(row interface{ Scan(...any) error }) (*models.Entity, error) {
	var e models.Entity
	var tEnd sql.NullTime
	var lat, lon, renderOffset sql.NullFloat64
	var name, color, source, externalID, locSource sql.NullString
	var payload []byte

	err := row.Scan(
		&e.ID, &e.Type, &e.TStart, &tEnd, &lat, &lon,
		&name, &color, &renderOffset, &source, &externalID,
		&locSource, &payload, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tEnd.Valid {
		e.TEnd = &tEnd.Time
	}
	if lat.Valid {
		v := lat.Float64
		e.Lat = &v
	}
	if lon.Valid {
		v := lon.Float64
		e.Lon = &v
	}
	if renderOffset.Valid {
		e.RenderOffset = renderOffset.Float64
	}
	if name.Valid {
		e.Name = &name.String
	}
	if color.Valid {
		e.Color = &color.String
	}
	if source.Valid {
		e.Source = &source.String
	}
	if externalID.Valid {
		e.ExternalID = &externalID.String
	}
	if locSource.Valid {
		e.LocSource = models.LocationSource(locSource.String)
	}
	if len(payload) > 0 {
		e.Payload = payload
	}
	return &e, nil
}

// geomExpr returns the SQL expression used to populate the geom column on
// write: ST_Point(?, ?), which takes lon,lat placeholder args, when the
// spatial extension is loaded, and NULL otherwise.
func (s *Store) geomExpr() string {
	if !s.spatialAvailable {
		return "NULL"
	}
	return "ST_Point(?, ?)"
}

func insertArgs(s *Store, e *models.Entity, key *string) (string, []any) {
	tr := e.TimeRange()

	cols := []string{
		"id", "type", "t_start", "t_end", "lat", "lon", "geom",
		"t_range_start", "t_range_end", "name", "color", "render_offset",
		"source", "external_id", "dedupe_key", "loc_source", "payload",
		"created_at", "updated_at",
	}
	placeholders := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)

	for _, c := range cols {
		switch c {
		case "geom":
			placeholders = append(placeholders, s.geomExpr())
			if s.spatialAvailable {
				if e.Lon != nil && e.Lat != nil {
					args = append(args, *e.Lon, *e.Lat)
				} else {
					// ST_Point(?, ?) still needs two bind args; bind NULLs
					// so the expression evaluates to an absent geom.
					args = append(args, nil, nil)
				}
			}
		default:
			placeholders = append(placeholders, "?")
			args = append(args, columnValue(c, e, key, tr))
		}
	}

	query := fmt.Sprintf("INSERT INTO entities (%s) VALUES (%s)",
		joinCols(cols), joinCols(placeholders))
	return query, args
}

func updateArgs(s *Store, e *models.Entity, key *string) (string, []any) {
	tr := e.TimeRange()

	cols := []string{
		"type", "t_start", "t_end", "lat", "lon", "geom",
		"t_range_start", "t_range_end", "name", "color", "render_offset",
		"source", "external_id", "dedupe_key", "loc_source", "payload",
		"updated_at",
	}
	setClauses := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+3)

	for _, c := range cols {
		switch c {
		case "geom":
			setClauses = append(setClauses, "geom = "+s.geomExpr())
			if s.spatialAvailable {
				if e.Lon != nil && e.Lat != nil {
					args = append(args, *e.Lon, *e.Lat)
				} else {
					args = append(args, nil, nil)
				}
			}
		default:
			setClauses = append(setClauses, c+" = ?")
			args = append(args, columnValue(c, e, key, tr))
		}
	}

	query := fmt.Sprintf("UPDATE entities SET %s WHERE id = ?", joinCols(setClauses))
	args = append(args, e.ID)
	return query, args
}

func columnValue(col string, e *models.Entity, key *string, tr models.TimeRange) any {
	switch col {
	case "id":
		return e.ID
	case "type":
		return e.Type
	case "t_start":
		return e.TStart
	case "t_end":
		if e.TEnd == nil {
			return nil
		}
		return *e.TEnd
	case "lat":
		if e.Lat == nil {
			return nil
		}
		return *e.Lat
	case "lon":
		if e.Lon == nil {
			return nil
		}
		return *e.Lon
	case "t_range_start":
		return tr.Start
	case "t_range_end":
		return tr.End
	case "name":
		if e.Name == nil {
			return nil
		}
		return *e.Name
	case "color":
		if e.Color == nil {
			return nil
		}
		return *e.Color
	case "render_offset":
		return e.RenderOffset
	case "source":
		if e.Source == nil {
			return nil
		}
		return *e.Source
	case "external_id":
		if e.ExternalID == nil {
			return nil
		}
		return *e.ExternalID
	case "dedupe_key":
		if key == nil {
			return nil
		}
		return *key
	case "loc_source":
		if e.LocSource == "" {
			return nil
		}
		return string(e.LocSource)
	case "payload":
		if len(e.Payload) == 0 {
			return nil
		}
		return []byte(e.Payload)
	case "created_at":
		return e.CreatedAt
	case "updated_at":
		return e.UpdatedAt
	default:
		return nil
	}
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func newEntityID() uuid.UUID {
	return uuid.New()
}

func isZeroUUID(id uuid.UUID) bool {
	return id == uuid.Nil
}

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
