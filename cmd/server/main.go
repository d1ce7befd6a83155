// Package main is the entry point for the geobase server.
//
// geobase is a personal spatiotemporal database: a single unified entity
// store that ingests timestamped, (usually) geolocated records from many
// small sources — GPS traces, listening history, calendars — enriches the
// ones that arrive without their own coordinates, detects the places a
// person actually stops at, and answers time/bbox/resample queries over the
// whole thing.
//
// # Application Architecture
//
// The server initializes components in order:
//
//  1. Configuration: koanf, layered defaults -> config file -> env vars
//  2. Database: embedded DuckDB, spatial extension loaded when available
//  3. Events: watermill bus (in-process gochannel, or NATS JetStream when
//     configured), feeding resolver invalidation
//  4. Resolver: location enrichment backed by the configured GPS backbone
//  5. Ingestion Engine + Scheduler: one suture-supervised job per
//     registered plugin, firing on that plugin's own cron cadence
//  6. Place/Visit Detector: a fixed-interval background clustering pass
//  7. HTTP Server: the full REST surface plus Prometheus metrics and
//     swagger docs
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the supervisor tree stops
// accepting new ingestion runs and HTTP connections, waits for in-flight
// work to finish, and closes the database and event bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/geobase/geobase/internal/api"
	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/database"
	"github.com/geobase/geobase/internal/events"
	"github.com/geobase/geobase/internal/ingestion"
	"github.com/geobase/geobase/internal/ingestion/plugins"
	"github.com/geobase/geobase/internal/logging"
	"github.com/geobase/geobase/internal/models"
	"github.com/geobase/geobase/internal/planner"
	"github.com/geobase/geobase/internal/resolver"
)

const placeDetectionInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().Msg("starting geobase")

	store, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	if store.IsSpatialAvailable() {
		logging.Info().Msg("duckdb spatial extension loaded, geometry queries use the RTREE index")
	} else {
		logging.Warn().Msg("duckdb spatial extension unavailable, falling back to scalar lon/lat bounds")
	}

	bus, err := events.New(cfg.Events, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing event bus")
		}
	}()

	loc := resolver.New(store, &cfg.Ingestion)
	bus.Subscribe("resolver-invalidate", func(ctx context.Context, evt events.Upserted) error {
		if evt.HasGeom {
			loc.Invalidate()
		}
		return nil
	})

	publisher := &busPublisher{bus: bus}

	registerPlugins()

	engine := ingestion.NewEngine(store, loc, publisher, cfg.Ingestion.RateLimitPerSec, cfg.Ingestion.RateLimitBurst)

	versions, err := ingestion.OpenVersionStore(cfg.PlaceDetection.VersionStoreDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open place-detector version store")
	}
	defer func() {
		if err := versions.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing version store")
		}
	}()
	detector := ingestion.NewDetector(store, cfg.PlaceDetection, versions)

	plan := planner.New(store)
	handler := api.New(*cfg, store, plan, publisher, logging.Logger())

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := suture.New("geobase", suture.Spec{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
	})

	root.Add(newHTTPService(server, 10*time.Second))
	root.Add(newRouterService("event-bus", bus.Run))
	root.Add(ingestion.NewScheduler(engine))
	root.Add(newIntervalService("place-detector", placeDetectionInterval, func(ctx context.Context) error {
		res, err := detector.Run(ctx)
		if err != nil {
			return err
		}
		logging.Info().Int("places", res.Places).Int("visits", res.Visits).Int("version", res.Version).Msg("place detection pass complete")
		return nil
	}, func(err error) {
		logging.Error().Err(err).Msg("place detection pass failed")
	}))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("serving")
	errCh := root.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for services to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, err := root.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", fmt.Sprint(svc.Service)).Msg("service failed to stop within timeout")
		}
	}

	logging.Info().Msg("geobase stopped gracefully")
}

// busPublisher adapts events.Bus to ingestion.EventPublisher: the engine
// fires and forgets, any publish failure is logged rather than surfaced up
// through the Run Protocol (a dropped notification degrades the resolver
// cache's freshness, not correctness of the store).
type busPublisher struct {
	bus *events.Bus
}

func (p *busPublisher) PublishUpserted(e *models.Entity) {
	evt := events.Upserted{
		EntityID: e.ID.String(),
		Type:     e.Type,
		HasGeom:  e.HasCoordinates(),
		At:       time.Now().UTC(),
	}
	if err := p.bus.Publish(context.Background(), evt); err != nil {
		logging.Error().Err(err).Str("entity_id", evt.EntityID).Msg("failed to publish entity.upserted")
	}
}

// registerPlugins installs geobase's example sources into the ingestion
// registry. Each carries an empty, deterministic data set; a real
// deployment replaces NewGPSPlugin/NewMusicPlugin/NewCalendarPlugin's
// argument with a parser reading that source's actual export.
func registerPlugins() {
	plugins.NewGPSPlugin(nil).Register()
	plugins.NewMusicPlugin(nil).Register()
	plugins.NewCalendarPlugin(nil).Register()
}
