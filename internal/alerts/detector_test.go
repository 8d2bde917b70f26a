package alerts_test

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/alerts"
)

func newDetector(max int) *alerts.Detector {
	return alerts.NewDetector(alerts.Config{
		MaxAlerts: max,
		Logger:    zerolog.New(io.Discard),
		Now:       func() time.Time { return time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC) },
	})
}

func live(id string, lat, lng, aqi float64) airquality.Station {
	return airquality.Station{ID: id, Name: id, Lat: lat, Lng: lng, AQI: aqi, Provenance: airquality.ProvenanceLive}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		prev    float64
		hasPrev bool
		cur     float64
		want    alerts.Severity
		raised  bool
	}{
		{"first sighting below threshold", 0, false, 120, "", false},
		{"first sighting unhealthy", 0, false, 160, alerts.SeverityWarning, true},
		{"first sighting very unhealthy", 0, false, 250, alerts.SeverityCritical, true},
		{"sharp rise", 60, true, 115, alerts.SeverityWarning, true},
		{"rise of exactly 50 is not sharp", 60, true, 110, "", false},
		{"crossing 150", 140, true, 155, alerts.SeverityWarning, true},
		{"sharp rise into very unhealthy", 120, true, 210, alerts.SeverityCritical, true},
		{"crossing 200 slowly", 180, true, 205, alerts.SeverityCritical, true},
		{"already above 200", 210, true, 230, "", false},
		{"improvement", 140, true, 95, alerts.SeverityInfo, true},
		{"drop not low enough", 200, true, 150, "", false},
		{"small drop", 110, true, 90, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, msg, ok := alerts.Evaluate(tt.prev, tt.hasPrev, tt.cur)
			assert.Equal(t, tt.raised, ok)
			assert.Equal(t, tt.want, sev)
			if ok {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestDetector_KeysByCellNotID(t *testing.T) {
	d := newDetector(20)

	d.Observe([]airquality.Station{live("waqi-1", 28.6139, 77.2090, 120)})

	// Same place, different provider ID in the next cycle.
	raised := d.Observe([]airquality.Station{live("datagov-x", 28.6140, 77.2091, 180)})
	require.Len(t, raised, 1)
	assert.Equal(t, 120.0, raised[0].Previous)
	assert.True(t, raised[0].HasPrevious)
	assert.Equal(t, "datagov-x", raised[0].StationID)
	assert.Len(t, raised[0].Cell, 5)
}

func TestDetector_IgnoresSynthetic(t *testing.T) {
	d := newDetector(20)

	raised := d.Observe([]airquality.Station{{
		ID: "synthetic-ghaziabad", Lat: 28.66, Lng: 77.45, AQI: 280, Provenance: airquality.ProvenanceSynthetic,
	}})
	assert.Empty(t, raised)
	assert.Equal(t, 0, d.TrackedCells())
}

func TestDetector_PreviousReplacedEachCycle(t *testing.T) {
	d := newDetector(20)

	d.Observe([]airquality.Station{live("a", 28.6, 77.2, 100), live("b", 19.07, 72.87, 100)})
	assert.Equal(t, 2, d.TrackedCells())

	d.Observe([]airquality.Station{live("a", 28.6, 77.2, 100)})
	assert.Equal(t, 1, d.TrackedCells())

	// b reappears with no previous value, so only the absolute rule applies.
	raised := d.Observe([]airquality.Station{live("b", 19.07, 72.87, 140)})
	assert.Empty(t, raised)
}

func TestDetector_RecentIsCappedNewestFirst(t *testing.T) {
	d := newDetector(3)

	for i := 0; i < 5; i++ {
		d.Observe([]airquality.Station{live(fmt.Sprintf("s%d", i), 10+float64(i), 75, 160)})
	}

	recent := d.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "s4", recent[0].StationID)
	assert.Equal(t, "s3", recent[1].StationID)
	assert.Equal(t, "s2", recent[2].StationID)
}
