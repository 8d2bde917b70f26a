package airquality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

func delhiStations() []airquality.Station {
	return []airquality.Station{
		{ID: "waqi-1", Lat: 28.6139, Lng: 77.2090, AQI: 200, PM25: 120, Provenance: airquality.ProvenanceLive},
		{ID: "waqi-2", Lat: 28.6500, Lng: 77.3000, AQI: 100, PM25: 60, Provenance: airquality.ProvenanceLive},
		{ID: "waqi-3", Lat: 19.0760, Lng: 72.8777, AQI: 80, PM25: 40, Provenance: airquality.ProvenanceLive},
	}
}

func TestEstimator_OnTopOfStation(t *testing.T) {
	est, err := airquality.NewEstimator(airquality.EstimatorConfig{}).
		Estimate(28.6139, 77.2090, delhiStations())
	require.NoError(t, err)

	assert.Equal(t, 200.0, est.AQI)
	assert.Equal(t, "waqi-1", est.NearestID)
	assert.Equal(t, airquality.ConfidenceHigh, est.Confidence)
	assert.Len(t, est.Contributions, 2, "far station is out of range")
}

func TestEstimator_BetweenStationsIsWeighted(t *testing.T) {
	est, err := airquality.NewEstimator(airquality.EstimatorConfig{}).
		Estimate(28.632, 77.255, delhiStations())
	require.NoError(t, err)

	assert.Greater(t, est.AQI, 100.0)
	assert.Less(t, est.AQI, 200.0)

	var sum float64
	for _, c := range est.Contributions {
		sum += c.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, airquality.ProvenanceLive, est.Provenance)
}

func TestEstimator_NoneInRange(t *testing.T) {
	_, err := airquality.NewEstimator(airquality.EstimatorConfig{}).
		Estimate(8.5, 76.9, delhiStations())
	assert.ErrorIs(t, err, airquality.ErrNoStationsInRange)
}

func TestEstimator_SyntheticOnlyInput(t *testing.T) {
	stations := []airquality.Station{
		{ID: "synthetic-delhi", Lat: 28.6, Lng: 77.2, AQI: 150, Provenance: airquality.ProvenanceSynthetic},
	}
	est, err := airquality.NewEstimator(airquality.EstimatorConfig{}).Estimate(28.7, 77.2, stations)
	require.NoError(t, err)

	assert.Equal(t, airquality.ProvenanceSynthetic, est.Provenance)
	assert.Equal(t, airquality.ConfidenceMedium, est.Confidence)
}

func TestHaversineKm(t *testing.T) {
	// Delhi to Mumbai is roughly 1150 km.
	d := airquality.HaversineKm(28.6139, 77.2090, 19.0760, 72.8777)
	assert.InDelta(t, 1150, d, 20)
}
