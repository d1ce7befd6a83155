package models

import "time"

// Watermark is the per-source ingestion progress marker (spec §3.2): the
// lower bound used for a source plugin's next discover() call.
type Watermark struct {
	Source    string    `json:"source"`
	LastRun   time.Time `json:"last_run"`
	LastCount int       `json:"last_count"`
	UpdatedAt time.Time `json:"updated_at"`
}
