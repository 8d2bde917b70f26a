// Package satellite provides forecast-derived pollution samples and their
// synthetic fallback.
package satellite

import (
	"time"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

// Source labels where a datum came from.
type Source string

const (
	SourceISRO Source = "ISRO"
	SourceNASA Source = "NASA"
	SourceESA  Source = "ESA"
	SourceOWM  Source = "OWM"
)

// PollutantType is the dominant pollutant of a datum.
type PollutantType string

const (
	TypePM25 PollutantType = "PM2.5"
	TypeNO2  PollutantType = "NO2"
	TypeSO2  PollutantType = "SO2"
	TypeCO   PollutantType = "CO"
)

// Datum is one pollution sample at a coordinate.
type Datum struct {
	ID             string
	Timestamp      time.Time
	Lat            float64
	Lng            float64
	PollutionLevel float64
	Source         Source
	Type           PollutantType
	Provenance     airquality.Provenance
}

// Levels are component concentrations in canonical units: µg/m³, CO in mg/m³.
type Levels struct {
	PM25 float64
	NO2  float64
	SO2  float64
	CO   float64
}

// Dominant returns the component with the highest value and that value.
// Ties resolve in the order PM2.5, NO2, SO2, CO.
func Dominant(l Levels) (PollutantType, float64) {
	typ, level := TypePM25, l.PM25
	for _, c := range []struct {
		t PollutantType
		v float64
	}{
		{TypeNO2, l.NO2},
		{TypeSO2, l.SO2},
		{TypeCO, l.CO},
	} {
		if c.v > level {
			typ, level = c.t, c.v
		}
	}
	return typ, level
}
