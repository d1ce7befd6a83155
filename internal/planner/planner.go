// Package planner translates the three public query shapes (time, bbox,
// export) into Store calls, enforcing the bounds and defaults spec.md §4.5
// names before a single row is fetched.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/database"
	"github.com/geobase/geobase/internal/models"
)

// Default and hard-cap limits, per endpoint (spec.md §4.5/§6).
const (
	DefaultTimeLimit = 2000
	DefaultBBoxLimit = 5000
	MaxLimit         = 10000

	MinResampleN = 1
	MaxResampleN = 10000
)

// WGS84 coordinate bounds.
const (
	minLon = -180.0
	maxLon = 180.0
	minLat = -90.0
	maxLat = 90.0
)

// ValidationError reports a request shape or range failure (spec.md §7's
// ValidationError kind, transport-mapped to 400/422 by the API layer).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Store is the subset of *database.Store the Planner drives.
type Store interface {
	QueryTime(ctx context.Context, types []string, start, end time.Time, limit int, order models.Order) ([]*models.Entity, error)
	QueryBBox(ctx context.Context, types []string, bbox [4]float64, window *models.TimeWindow, limit int, order models.Order) ([]*models.Entity, error)
	Resample(ctx context.Context, types []string, start, end time.Time, n int) ([]*models.Entity, error)
	StreamAll(ctx context.Context, types []string, order models.StreamOrder) (*database.EntityStream, error)
	CountAll(ctx context.Context, types []string) (int64, error)
}

// Planner holds the Store it plans queries against.
type Planner struct {
	store Store
}

// New builds a Planner over store.
func New(store Store) *Planner {
	return &Planner{store: store}
}

// PlanTime executes a POST /v1/query/time request (spec.md §4.5): a plain
// range-overlap query when req.Resample is nil, or the resample operator of
// §4.1 when it's present. resample.n and limit are mutually exclusive.
func (p *Planner) PlanTime(ctx context.Context, req models.TimeQueryRequest) ([]*models.Entity, error) {
	if !req.Start.Before(req.End) {
		return nil, invalid("start must be before end")
	}

	if req.Resample != nil {
		if req.Limit != 0 {
			return nil, invalid("resample and limit are mutually exclusive")
		}
		if req.Resample.N < MinResampleN || req.Resample.N > MaxResampleN {
			return nil, invalid("resample.n must be in [%d, %d]", MinResampleN, MaxResampleN)
		}
		return p.store.Resample(ctx, req.Types, req.Start, req.End, req.Resample.N)
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultTimeLimit
	}
	if limit > MaxLimit {
		return nil, invalid("limit must be at most %d", MaxLimit)
	}

	order := req.Order
	if order == "" {
		order = models.OrderTStartAsc
	}

	return p.store.QueryTime(ctx, req.Types, req.Start, req.End, limit, order)
}

// PlanBBox executes a POST /v1/query/bbox request (spec.md §4.5): a spatial
// envelope predicate, optionally narrowed by a time window, ordered asc,
// desc, or randomly.
func (p *Planner) PlanBBox(ctx context.Context, req models.BBoxQueryRequest) ([]*models.Entity, error) {
	lonMin, latMin, lonMax, latMax := req.BBox[0], req.BBox[1], req.BBox[2], req.BBox[3]
	if lonMin >= lonMax {
		return nil, invalid("bbox lonmin must be less than lonmax")
	}
	if latMin >= latMax {
		return nil, invalid("bbox latmin must be less than latmax")
	}
	if lonMin < minLon || lonMax > maxLon || latMin < minLat || latMax > maxLat {
		return nil, invalid("bbox coordinates must be within WGS84 bounds")
	}

	if req.Time != nil && !req.Time.Start.Before(req.Time.End) {
		return nil, invalid("time.start must be before time.end")
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultBBoxLimit
	}
	if limit > MaxLimit {
		return nil, invalid("limit must be at most %d", MaxLimit)
	}

	order := req.Order
	if order == "" {
		order = models.OrderTStartDesc
	}

	return p.store.QueryBBox(ctx, req.Types, req.BBox, req.Time, limit, order)
}

// PlanExport opens the GET /v1/query/export cursor (spec.md §4.5): no
// limit, optional type filter, sorted newest or oldest first. The caller
// drains the returned stream and must Close it.
func (p *Planner) PlanExport(ctx context.Context, types []string, order models.StreamOrder) (*database.EntityStream, int64, error) {
	if order == "" {
		order = models.StreamNewest
	}

	total, err := p.store.CountAll(ctx, types)
	if err != nil {
		return nil, 0, fmt.Errorf("count export rows: %w", err)
	}

	stream, err := p.store.StreamAll(ctx, types, order)
	if err != nil {
		return nil, 0, fmt.Errorf("open export stream: %w", err)
	}
	return stream, total, nil
}
