package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/geobase/geobase/internal/ingestion"
	"github.com/geobase/geobase/internal/models"
)

// CalendarPluginName is the Entity.Source value the calendar plugin stamps.
const CalendarPluginName = "calendar"

// CalendarEvent is one simulated calendar entry (a Google-Calendar-export-
// like event, identified by a stable UID).
type CalendarEvent struct {
	UID         string
	Start       time.Time
	End         time.Time
	Summary     string
	Calendar    string
	Attendees   []string
	Description string
}

// CalendarPlugin simulates a calendar export source. HasNativeLocation is
// false: these events have no coordinates of their own.
type CalendarPlugin struct {
	Events []CalendarEvent
}

// NewCalendarPlugin builds a CalendarPlugin from an explicit, deterministic
// event list.
func NewCalendarPlugin(events []CalendarEvent) *CalendarPlugin {
	return &CalendarPlugin{Events: events}
}

func (p *CalendarPlugin) Name() string           { return CalendarPluginName }
func (p *CalendarPlugin) HasNativeLocation() bool { return false }

// Schedule checks for new calendar events every 15 minutes.
func (p *CalendarPlugin) Schedule() string { return "*/15 * * * *" }

// Discover returns every event whose start is strictly after since.LastRun.
func (p *CalendarPlugin) Discover(ctx context.Context, since *models.Watermark) ([]ingestion.Record, error) {
	var cutoff time.Time
	if since != nil {
		cutoff = since.LastRun
	}

	var out []ingestion.Record
	for _, ev := range p.Events {
		if !ev.Start.After(cutoff) {
			continue
		}
		payload, err := models.EncodePayload(models.CalendarPayload{
			Calendar:    ev.Calendar,
			Attendees:   ev.Attendees,
			Description: ev.Description,
		})
		if err != nil {
			return nil, fmt.Errorf("encode calendar payload: %w", err)
		}
		end := ev.End
		name := ev.Summary
		source := CalendarPluginName
		externalID := ev.UID
		out = append(out, ingestion.Record{Entity: &models.Entity{
			Type:       models.TypeCalendar,
			TStart:     ev.Start,
			TEnd:       &end,
			Name:       &name,
			Source:     &source,
			ExternalID: &externalID,
			Payload:    payload,
		}})
	}
	return out, nil
}

// Register installs this plugin into the ingestion registry.
func (p *CalendarPlugin) Register() { ingestion.Register(p) }
