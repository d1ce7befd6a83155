// Package plugins holds geobase's example ingestion sources: deterministic,
// in-memory stand-ins for the real parsers spec.md treats as out of scope,
// enough to exercise the full Run Protocol and Resolver wiring end to end.
package plugins

import (
	"context"
	"time"

	"github.com/geobase/geobase/internal/ingestion"
	"github.com/geobase/geobase/internal/models"
)

// GPSPluginName is the Entity.Source value the arc backbone plugin stamps.
const GPSPluginName = "arc"

// GPSPlugin simulates a continuous GPS trace backbone (spec.md §9's Open
// Question #1 default enrichment source, "arc"). HasNativeLocation is true:
// its records always carry their own coordinates.
type GPSPlugin struct {
	// Track is the full simulated trace, sorted ascending by time. Discover
	// returns the suffix strictly after the watermark's LastRun.
	Track []TrackPoint
}

// TrackPoint is one simulated fix.
type TrackPoint struct {
	At       time.Time
	Lat, Lon float64
}

// NewGPSPlugin builds a GPSPlugin from an explicit, deterministic track
// (tests and local runs supply one; a real deployment would replace this
// with a parser reading an export file).
func NewGPSPlugin(track []TrackPoint) *GPSPlugin {
	return &GPSPlugin{Track: track}
}

func (p *GPSPlugin) Name() string           { return GPSPluginName }
func (p *GPSPlugin) HasNativeLocation() bool { return true }

// Schedule runs the backbone every 5 minutes: it's the Resolver's source of
// truth, so it needs to stay close to real time.
func (p *GPSPlugin) Schedule() string { return "*/5 * * * *" }

// Discover returns every track point strictly after since.LastRun.
func (p *GPSPlugin) Discover(ctx context.Context, since *models.Watermark) ([]ingestion.Record, error) {
	var cutoff time.Time
	if since != nil {
		cutoff = since.LastRun
	}

	var out []ingestion.Record
	for _, pt := range p.Track {
		if !pt.At.After(cutoff) {
			continue
		}
		lat, lon := pt.Lat, pt.Lon
		externalID := pt.At.UTC().Format(time.RFC3339Nano)
		source := GPSPluginName
		out = append(out, ingestion.Record{Entity: &models.Entity{
			Type:       models.TypeLocationGPS,
			TStart:     pt.At,
			Lat:        &lat,
			Lon:        &lon,
			Source:     &source,
			ExternalID: &externalID,
			LocSource:  models.LocationNative,
		}})
	}
	return out, nil
}

// Register installs this plugin into the ingestion registry.
func (p *GPSPlugin) Register() { ingestion.Register(p) }
