// Package weather provides per-coordinate weather snapshots.
package weather

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Snapshot is the weather at one coordinate. Wind speed is in km/h and
// visibility in km regardless of what the provider reports.
type Snapshot struct {
	Lat float64
	Lng float64

	Temperature   float64 // °C
	Humidity      float64 // %
	WindSpeed     float64 // km/h
	WindDirection float64 // degrees
	Pressure      float64 // hPa
	Visibility    float64 // km

	Condition   Condition
	Description string

	ObservedAt time.Time
	Provenance airquality.Provenance
}

// Condition is the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionSmoke        Condition = "SMOKE"
	ConditionDust         Condition = "DUST"
	ConditionUnknown      Condition = "UNKNOWN"
)

// WindCategory grades how well wind disperses pollutants.
type WindCategory string

const (
	WindCalm     WindCategory = "CALM"     // < 3.6 km/h, pollutants accumulate
	WindLight    WindCategory = "LIGHT"    // < 10.8 km/h
	WindModerate WindCategory = "MODERATE" // < 28.8 km/h
	WindStrong   WindCategory = "STRONG"
)

// WindCategory returns the dispersion grade of the snapshot.
func (s *Snapshot) WindCategory() WindCategory {
	switch {
	case s.WindSpeed < 3.6:
		return WindCalm
	case s.WindSpeed < 10.8:
		return WindLight
	case s.WindSpeed < 28.8:
		return WindModerate
	default:
		return WindStrong
	}
}

// MetersPerSecondToKmh converts wind speed.
func MetersPerSecondToKmh(mps float64) float64 {
	return mps * 3.6
}

// MetersToKm converts visibility.
func MetersToKm(m float64) float64 {
	return m / 1000
}

// ValidateCoordinates rejects out-of-range or non-finite coordinates.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinates, lat, lng)
	}
	return nil
}

// CacheKey rounds the coordinate to two decimals (about 1 km).
func CacheKey(lat, lng float64) string {
	return fmt.Sprintf("weather:%.2f:%.2f", lat, lng)
}
