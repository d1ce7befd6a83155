// Package api wires geobase's HTTP surface: chi routing, the shared-secret
// auth/CORS/rate-limit middleware stack, and the handlers for every
// endpoint in spec.md §4.6, adapted from the teacher's chi-based
// internal/api package (internal/api/chi_router.go, chi_middleware.go).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/rs/zerolog"

	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/models"
	"github.com/geobase/geobase/internal/planner"
)

// Store is the subset of *database.Store the API handlers call.
type Store interface {
	Upsert(ctx context.Context, e *models.Entity) (string, string, error)
	BulkUpsert(ctx context.Context, entities []*models.Entity) ([]models.UpsertResult, error)
	ListPlaces(ctx context.Context) ([]*models.Entity, error)
	GetPlace(ctx context.Context, id string) (*models.Entity, error)
	RecentVisits(ctx context.Context, placeID string, limit int) ([]*models.Entity, error)
	RenamePlace(ctx context.Context, id string, name, color *string) (*models.Entity, int, error)
	DeleteVisits(ctx context.Context, version *int) (int64, error)
	Ping(ctx context.Context) error
	Stats(ctx context.Context, uptimeSeconds float64) (*models.StatsResponse, error)
}

// EventPublisher is notified after a direct write API upsert, the same
// entity.upserted hook the ingestion engine fires after its own upserts.
type EventPublisher interface {
	PublishUpserted(e *models.Entity)
}

// API holds the dependencies every handler needs.
type API struct {
	store     Store
	planner   *planner.Planner
	publisher EventPublisher
	startedAt time.Time
}

// New builds the chi router for the full endpoint surface. publisher may be
// nil, in which case direct writes don't publish entity.upserted.
func New(cfg config.Config, store Store, plan *planner.Planner, publisher EventPublisher, logger zerolog.Logger) http.Handler {
	a := &API{store: store, planner: plan, publisher: publisher, startedAt: time.Now()}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5, "application/json", "application/x-ndjson"))
	r.Use(requestLogging(logger))
	r.Use(newCORS(cfg.Security.CORSOrigins))
	r.Use(trackActive)

	r.Get("/health", a.handleHealth)
	r.Get("/stats", a.handleStats)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))
	r.Get("/docs/doc.json", serveSwaggerDoc)

	r.Group(func(r chi.Router) {
		r.Use(newRateLimiter(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		r.Use(authenticate(cfg.Security, cfg.Server.Environment))

		r.Post("/v1/entity", a.handleUpsertEntity)
		r.Post("/v1/entities/batch", a.handleBatchUpsert)
		r.Post("/v1/query/time", a.handleQueryTime)
		r.Post("/v1/query/bbox", a.handleQueryBBox)
		r.Get("/v1/query/export", a.handleExport)
		r.Get("/v1/places", a.handleListPlaces)
		r.Get("/v1/places/{id}", a.handleGetPlace)
		r.Patch("/v1/places/{id}", a.handleRenamePlace)
		r.Delete("/v1/visits", a.handleDeleteVisits)
	})

	return r
}
