// Package airquality provides the canonical station model and the
// multi-source aggregation of station readings.
package airquality

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Aggregation errors.
var (
	ErrNoAdapters     = errors.New("no air quality adapters configured")
	ErrAdapterSkipped = errors.New("adapter skipped: missing credentials")
)

// Status is the health category derived from an AQI value.
type Status string

const (
	StatusGood               Status = "good"
	StatusModerate           Status = "moderate"
	StatusUnhealthySensitive Status = "unhealthy_sensitive"
	StatusUnhealthy          Status = "unhealthy"
	StatusVeryUnhealthy      Status = "very_unhealthy"
	StatusHazardous          Status = "hazardous"
)

// Statuses lists every category in ascending severity.
var Statuses = []Status{
	StatusGood,
	StatusModerate,
	StatusUnhealthySensitive,
	StatusUnhealthy,
	StatusVeryUnhealthy,
	StatusHazardous,
}

// StatusFor returns the category for an AQI value. Boundaries belong to
// the lower category.
func StatusFor(aqi float64) Status {
	switch {
	case aqi <= 50:
		return StatusGood
	case aqi <= 100:
		return StatusModerate
	case aqi <= 150:
		return StatusUnhealthySensitive
	case aqi <= 200:
		return StatusUnhealthy
	case aqi <= 300:
		return StatusVeryUnhealthy
	default:
		return StatusHazardous
	}
}

// Provenance tells consumers whether a reading came from a live provider
// or from the synthetic generator.
type Provenance string

const (
	ProvenanceLive      Provenance = "live"
	ProvenanceSynthetic Provenance = "synthetic"
)

// Source tags used as the first half of a station ID.
const (
	SourceWAQI      = "waqi"
	SourceDataGov   = "datagov"
	SourceOWM       = "ow"
	SourceSynthetic = "synthetic"
)

// Station is a point-in-time air quality reading at a named location.
// Pollutant concentrations are in µg/m³ except CO, which is in mg/m³.
// Stations are never mutated after construction; each fetch cycle
// produces a new set.
type Station struct {
	// ID is "<source>-<provider local id>". Unique within a fetch cycle only.
	ID     string
	Source string
	Name   string
	Lat    float64
	Lng    float64

	// AQI is on the unified 0-500 scale.
	AQI float64

	PM25 float64
	PM10 float64
	NO2  float64
	SO2  float64
	CO   float64
	O3   float64

	LastUpdated time.Time
	Provenance  Provenance
}

// Status derives the category from AQI at read time.
func (s Station) Status() Status {
	return StatusFor(s.AQI)
}

// IsSynthetic reports whether the station came from the fallback generator.
func (s Station) IsSynthetic() bool {
	return s.Provenance == ProvenanceSynthetic
}

// StationID builds a source-qualified identifier.
func StationID(source, localID string) string {
	return fmt.Sprintf("%s-%s", source, localID)
}

// Slug lowercases a name and replaces runs of non-alphanumerics with '-'.
// Used to derive provider-local IDs from station or city names.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// CategoricalAQI maps a 1-5 categorical index onto the 0-500 scale.
// Values outside 1-5 map to 0.
func CategoricalAQI(category int) float64 {
	switch category {
	case 1:
		return 50
	case 2:
		return 100
	case 3:
		return 150
	case 4:
		return 200
	case 5:
		return 300
	default:
		return 0
	}
}

// MicrogramsToMilligrams converts a µg/m³ concentration to mg/m³.
func MicrogramsToMilligrams(ug float64) float64 {
	return ug / 1000
}

// SourceCounts tallies stations per source tag.
func SourceCounts(stations []Station) map[string]int {
	counts := make(map[string]int)
	for _, s := range stations {
		counts[s.Source]++
	}
	return counts
}
