package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/ingestion"
	"github.com/geobase/geobase/internal/models"
)

// MusicPluginName is the Entity.Source value the music plugin stamps.
const MusicPluginName = "music"

// PlayEvent is one simulated listening-history record (a spotify-like
// streaming export's unit of data).
type PlayEvent struct {
	At       time.Time
	Artist   string
	Album    string
	Track    string
	MsPlayed int64
}

// MusicPlugin simulates a listening-history source. HasNativeLocation is
// false: the Resolver fills in where the listener was via the GPS backbone.
type MusicPlugin struct {
	Plays []PlayEvent
}

// NewMusicPlugin builds a MusicPlugin from an explicit, deterministic event
// list.
func NewMusicPlugin(plays []PlayEvent) *MusicPlugin {
	return &MusicPlugin{Plays: plays}
}

func (p *MusicPlugin) Name() string           { return MusicPluginName }
func (p *MusicPlugin) HasNativeLocation() bool { return false }

// Schedule runs the listening-history import hourly: exports like this
// batch, they don't stream.
func (p *MusicPlugin) Schedule() string { return "0 * * * *" }

// Discover returns every play strictly after since.LastRun.
func (p *MusicPlugin) Discover(ctx context.Context, since *models.Watermark) ([]ingestion.Record, error) {
	var cutoff time.Time
	if since != nil {
		cutoff = since.LastRun
	}

	var out []ingestion.Record
	for i, play := range p.Plays {
		if !play.At.After(cutoff) {
			continue
		}
		payload, err := models.EncodePayload(models.MusicPayload{
			Artist:   play.Artist,
			Album:    play.Album,
			Track:    play.Track,
			MsPlayed: play.MsPlayed,
		})
		if err != nil {
			return nil, fmt.Errorf("encode music payload: %w", err)
		}
		externalID := fmt.Sprintf("%s_%d", play.At.UTC().Format(time.RFC3339Nano), i)
		source := MusicPluginName
		out = append(out, ingestion.Record{Entity: &models.Entity{
			Type:       models.TypeMusic,
			TStart:     play.At,
			Source:     &source,
			ExternalID: &externalID,
			Payload:    payload,
		}})
	}
	return out, nil
}

// Register installs this plugin into the ingestion registry.
func (p *MusicPlugin) Register() { ingestion.Register(p) }
