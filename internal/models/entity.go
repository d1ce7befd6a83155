package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// LocationSource records the provenance of an Entity's coordinates.
type LocationSource string

const (
	// LocationNative means the originating plugin supplied the coordinates.
	LocationNative LocationSource = "native"
	// LocationInferred means the Resolver supplied the coordinates.
	LocationInferred LocationSource = "inferred"
)

// TimeRange is the closed UTC interval [Start, End] derived from an Entity's
// TStart/TEnd by the Derived-Column Maintainer. It is never set directly by
// callers; see internal/maintainer.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two closed intervals share at least one instant:
// [a,b] and [c,d] overlap iff a <= d && c <= b.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return !tr.Start.After(other.End) && !other.Start.After(tr.End)
}

// Entity is the single unified record shape hosting every ingested source's
// data (spec §3.1). Type-specific detail lives in Payload.
type Entity struct {
	ID uuid.UUID `json:"id"`

	// Type is a short, dot-namespaced tag, e.g. "location.gps", "place.visit".
	Type string `json:"type" validate:"required"`

	TStart time.Time  `json:"t_start" validate:"required"`
	TEnd   *time.Time `json:"t_end,omitempty" validate:"omitempty,gtefield=TStart"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`

	// RenderOffset is a vertical placement hint for timeline UIs. Default 0.
	RenderOffset float64 `json:"render_offset"`

	Source     *string `json:"source,omitempty"`
	ExternalID *string `json:"external_id,omitempty"`

	LocSource LocationSource `json:"loc_source,omitempty"`

	// Payload is a type-specific extension document. See payload.go for the
	// typed accessors layered over this raw form.
	Payload json.RawMessage `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCoordinates reports whether both Lat and Lon are populated (invariant I2:
// geom is absent iff either is absent).
func (e *Entity) HasCoordinates() bool {
	return e.Lat != nil && e.Lon != nil
}

// TimeRange computes the derived closed interval per invariant I3:
// [TStart, TEnd ?? TStart].
func (e *Entity) TimeRange() TimeRange {
	end := e.TStart
	if e.TEnd != nil {
		end = *e.TEnd
	}
	return TimeRange{Start: e.TStart, End: end}
}

// DedupeKey returns the (source, external_id) pair used for upsert, and
// whether both halves are present (invariant I4 only applies when so).
func (e *Entity) DedupeKey() (source, externalID string, ok bool) {
	if e.Source == nil || e.ExternalID == nil {
		return "", "", false
	}
	return *e.Source, *e.ExternalID, true
}
