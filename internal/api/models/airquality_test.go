package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/alerts"
	"github.com/vayuwatch/vayuwatch/internal/api/models"
)

func TestNewStation_StatusAndProvenance(t *testing.T) {
	updated := time.Date(2025, 11, 3, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	s := models.NewStation(airquality.Station{
		ID:          "waqi-1234",
		Source:      airquality.SourceWAQI,
		Name:        "Anand Vihar",
		Lat:         28.6469,
		Lng:         77.3164,
		AQI:         312,
		PM25:        180.5,
		CO:          1.2,
		LastUpdated: updated,
		Provenance:  airquality.ProvenanceLive,
	})

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "hazardous", body["status"])
	assert.Equal(t, "live", body["provenance"])
	assert.Equal(t, "2025-11-03T03:30:00Z", body["lastUpdated"])
	assert.Equal(t, map[string]interface{}{"lat": 28.6469, "lon": 77.3164}, body["point"])
}

func TestNewStations_NeverNil(t *testing.T) {
	raw, err := json.Marshal(models.StationList{Items: models.NewStations(nil)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"items":[]`)
}

func TestTimestamp_ZeroIsNull(t *testing.T) {
	raw, err := json.Marshal(models.Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	var ts models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-11-03T09:00:00Z"`), &ts))
	assert.Equal(t, 2025, ts.Time().Year())
	assert.Error(t, json.Unmarshal([]byte(`1`), &ts))
}

func TestNewAlertList_PreviousOnlyWhenKnown(t *testing.T) {
	list := models.NewAlertList([]alerts.Alert{
		{ID: "a", Current: 160, Severity: alerts.SeverityWarning},
		{ID: "b", Previous: 120, HasPrevious: true, Current: 210, Severity: alerts.SeverityCritical},
	})

	require.Len(t, list.Items, 2)
	assert.Nil(t, list.Items[0].Previous)
	require.NotNil(t, list.Items[1].Previous)
	assert.Equal(t, 120.0, *list.Items[1].Previous)
	assert.Equal(t, "critical", list.Items[1].Severity)
}
