package plugins

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/models"
)

func TestGPSPlugin_DiscoverRespectsWatermark(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewGPSPlugin([]TrackPoint{
		{At: base, Lat: 1, Lon: 1},
		{At: base.Add(time.Hour), Lat: 2, Lon: 2},
		{At: base.Add(2 * time.Hour), Lat: 3, Lon: 3},
	})

	records, err := p.Discover(context.Background(), &models.Watermark{LastRun: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, base.Add(2*time.Hour), records[0].Entity.TStart)
	assert.True(t, records[0].Entity.HasCoordinates())
	assert.True(t, p.HasNativeLocation())
}

func TestGPSPlugin_DiscoverNilWatermarkReturnsAll(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewGPSPlugin([]TrackPoint{{At: base, Lat: 1, Lon: 1}})

	records, err := p.Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMusicPlugin_Discover(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewMusicPlugin([]PlayEvent{
		{At: base, Artist: "A", Track: "T1", MsPlayed: 1000},
		{At: base.Add(time.Minute), Artist: "B", Track: "T2", MsPlayed: 2000},
	})

	records, err := p.Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, p.HasNativeLocation())
	assert.False(t, records[0].Entity.HasCoordinates())

	meta, err := models.DecodeMusic(records[0].Entity)
	require.NoError(t, err)
	assert.Equal(t, "A", meta.Artist)
}

func TestCalendarPlugin_Discover(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	p := NewCalendarPlugin([]CalendarEvent{
		{UID: "evt-1", Start: base, End: base.Add(time.Hour), Summary: "Standup", Calendar: "work"},
	})

	records, err := p.Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Standup", *records[0].Entity.Name)
	assert.NotNil(t, records[0].Entity.TEnd)
}
