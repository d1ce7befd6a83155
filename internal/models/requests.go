package models

import "time"

// Order is the sort direction for a time-window or bbox query.
type Order string

const (
	OrderTStartAsc  Order = "t_start_asc"
	OrderTStartDesc Order = "t_start_desc"
	OrderRandom     Order = "random"
)

// StreamOrder is the sort direction for the export stream.
type StreamOrder string

const (
	StreamNewest StreamOrder = "newest"
	StreamOldest StreamOrder = "oldest"
)

// Resample requests the uniform-time resampling operator (spec §4.1, §6).
type Resample struct {
	Method string `json:"method" validate:"required,eq=uniform_time"`
	N      int    `json:"n" validate:"required,min=1,max=10000"`
}

// TimeQueryRequest is the body of POST /v1/query/time.
type TimeQueryRequest struct {
	Types     []string   `json:"types" validate:"required,min=1"`
	Start     time.Time  `json:"start" validate:"required"`
	End       time.Time  `json:"end" validate:"required,gtfield=Start"`
	Limit     int        `json:"limit,omitempty" validate:"omitempty,min=1,max=10000"`
	Order     Order      `json:"order,omitempty" validate:"omitempty,oneof=t_start_asc t_start_desc"`
	Resample  *Resample  `json:"resample,omitempty"`
}

// TimeWindow is an optional time filter embedded in a bbox query.
type TimeWindow struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// BBoxQueryRequest is the body of POST /v1/query/bbox.
type BBoxQueryRequest struct {
	Types []string    `json:"types" validate:"required,min=1"`
	BBox  [4]float64  `json:"bbox" validate:"required"`
	Time  *TimeWindow `json:"time,omitempty"`
	Limit int         `json:"limit,omitempty" validate:"omitempty,min=1,max=10000"`
	Order Order       `json:"order,omitempty" validate:"omitempty,oneof=t_start_asc t_start_desc random"`
}

// UpsertResult is returned by a single-entity or batch upsert.
type UpsertResult struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "inserted" or "updated"
}

// BatchUpsertResponse is the body of POST /v1/entities/batch.
type BatchUpsertResponse struct {
	Results []UpsertResult `json:"results"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	TotalEntities   int64            `json:"total_entities"`
	EntitiesByType  []TypeCount      `json:"entities_by_type"`
	TimeCoverage    TimeCoverage     `json:"time_coverage"`
	Database        DatabaseStats    `json:"database"`
	UptimeSeconds   float64          `json:"uptime_seconds"`
}

// TypeCount is one row of the by-type entity count breakdown.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// TimeCoverage reports the oldest and newest t_start in the store.
type TimeCoverage struct {
	Oldest *time.Time `json:"oldest"`
	Newest *time.Time `json:"newest"`
}

// DatabaseStats reports on-disk size breakdown.
type DatabaseStats struct {
	SizeMB      float64 `json:"size_mb"`
	TableSizeMB float64 `json:"table_size_mb"`
	IndexSizeMB float64 `json:"index_size_mb"`
}

// PlaceResponse is one row of GET /v1/places.
type PlaceResponse struct {
	Entity
	Stats PlaceMetaPayload `json:"stats"`
}

// PlaceDetailResponse is the body of GET /v1/places/{id}.
type PlaceDetailResponse struct {
	Entity
	Stats        PlaceMetaPayload `json:"stats"`
	RecentVisits []Entity         `json:"recent_visits"`
}

// RenamePlaceRequest is the body of PATCH /v1/places/{id}.
type RenamePlaceRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty" validate:"omitempty,len=7"`
}

// RenamePlaceResponse reports how many visits were updated in the same
// transaction as the place rename (spec §4.4.3, a testable invariant).
type RenamePlaceResponse struct {
	Entity
	UpdatedVisits int `json:"updated_visits"`
}
