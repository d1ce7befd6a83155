package models

import (
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Payload-carrying Entity.Type values that the rest of geobase understands
// beyond the opaque document fallback. Source plugins are free to emit other
// type strings; those simply never decode into a typed variant below.
const (
	TypeLocationGPS   = "location.gps"
	TypeMusic         = "music"
	TypePhoto         = "photo"
	TypeSleep         = "sleep"
	TypeTransaction   = "transaction"
	TypeCalendar      = "calendar"
	TypePlace         = "place"
	TypePlaceVisit    = "place.visit"
)

// MusicPayload carries listening-history detail for Type == "music".
type MusicPayload struct {
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Track  string `json:"track,omitempty"`
	MsPlayed int64 `json:"ms_played,omitempty"`
}

// PhotoPayload carries EXIF-derived detail for Type == "photo".
type PhotoPayload struct {
	FilePath string  `json:"file_path,omitempty"`
	Camera   string  `json:"camera,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	GPSAlt   float64 `json:"gps_altitude,omitempty"`
}

// SleepPayload carries a sleep session's detail for Type == "sleep".
type SleepPayload struct {
	Stage       string  `json:"stage,omitempty"` // e.g. "asleep", "awake", "rem"
	QualityPct  float64 `json:"quality_pct,omitempty"`
	HeartRateBPM float64 `json:"heart_rate_bpm,omitempty"`
}

// TransactionPayload carries a financial transaction's detail for Type == "transaction".
type TransactionPayload struct {
	Amount       float64 `json:"amount,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Merchant     string  `json:"merchant,omitempty"`
	Category     string  `json:"category,omitempty"`
	AccountLast4 string  `json:"account_last4,omitempty"`
}

// CalendarPayload carries an event's detail for Type == "calendar".
type CalendarPayload struct {
	Calendar    string   `json:"calendar,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	Description string   `json:"description,omitempty"`
}

// PlaceMetaPayload carries the Place Detector's cluster detail for Type == "place".
type PlaceMetaPayload struct {
	ClusterIndex int     `json:"cluster_index"`
	RadiusMeters float64 `json:"radius_meters"`
	VisitCount   int     `json:"visit_count"`
	DwellHours   float64 `json:"dwell_hours"`
	Version      int     `json:"version"`
}

// VisitMetaPayload carries a place.visit's detail for Type == "place.visit".
type VisitMetaPayload struct {
	PlaceID        uuid.UUID `json:"place_id"`
	DwellMinutes   float64   `json:"dwell_minutes"`
	GapBeforeMins  float64   `json:"gap_before_minutes"`
	BoundingRadius float64   `json:"bounding_radius_meters"`
	EntrySample    SamplePoint `json:"entry_sample"`
	ExitSample     SamplePoint `json:"exit_sample"`
	Version        int       `json:"version"`
}

// SamplePoint is a single GPS fix referenced by a visit's entry/exit detail.
type SamplePoint struct {
	Lat float64   `json:"lat"`
	Lon float64   `json:"lon"`
	At  string    `json:"at"` // RFC3339 timestamp of the sample
}

// DecodeMusic decodes e.Payload as a MusicPayload. Returns an error if the
// payload isn't valid JSON; callers should only invoke this for entities of
// the matching Type.
func DecodeMusic(e *Entity) (*MusicPayload, error) { return decodePayload[MusicPayload](e) }

// DecodePhoto decodes e.Payload as a PhotoPayload.
func DecodePhoto(e *Entity) (*PhotoPayload, error) { return decodePayload[PhotoPayload](e) }

// DecodeSleep decodes e.Payload as a SleepPayload.
func DecodeSleep(e *Entity) (*SleepPayload, error) { return decodePayload[SleepPayload](e) }

// DecodeTransaction decodes e.Payload as a TransactionPayload.
func DecodeTransaction(e *Entity) (*TransactionPayload, error) {
	return decodePayload[TransactionPayload](e)
}

// DecodeCalendar decodes e.Payload as a CalendarPayload.
func DecodeCalendar(e *Entity) (*CalendarPayload, error) { return decodePayload[CalendarPayload](e) }

// DecodePlaceMeta decodes e.Payload as a PlaceMetaPayload.
func DecodePlaceMeta(e *Entity) (*PlaceMetaPayload, error) {
	return decodePayload[PlaceMetaPayload](e)
}

// DecodeVisitMeta decodes e.Payload as a VisitMetaPayload.
func DecodeVisitMeta(e *Entity) (*VisitMetaPayload, error) {
	return decodePayload[VisitMetaPayload](e)
}

// DecodeOpaque decodes e.Payload into a generic map, the fallback variant for
// any Type this package does not define a typed struct for. Forward
// compatible: unrecognized source types keep their full payload intact.
func DecodeOpaque(e *Entity) (map[string]any, error) {
	if len(e.Payload) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodePayload[T any](e *Entity) (*T, error) {
	var v T
	if len(e.Payload) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// EncodePayload marshals any typed payload variant back to the raw document
// form stored on Entity.Payload.
func EncodePayload(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
