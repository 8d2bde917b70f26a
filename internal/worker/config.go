// Package worker runs background jobs for VayuWatch: cache warming,
// Pub/Sub triggered refreshes and alert evaluation.
package worker

import (
	"sort"
	"time"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

// RefreshTarget is a city whose weather is kept warm in the cache.
type RefreshTarget struct {
	Name string

	// Points inside the city, typically the centre and pollution hotspots.
	Points []Point

	// Priority orders targets; lower runs first.
	Priority int
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Targets to warm (default: DefaultRefreshTargets).
	Targets []RefreshTarget

	// Concurrency is the number of weather workers (default: 3).
	Concurrency int

	// Timeout bounds each point (default: 30s).
	Timeout time.Duration

	RefreshStations  bool
	RefreshSatellite bool
	RefreshWeather   bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:          DefaultRefreshTargets(),
		Concurrency:      3,
		Timeout:          30 * time.Second,
		RefreshStations:  true,
		RefreshSatellite: true,
		RefreshWeather:   true,
	}
}

// extraPoints adds known hotspots to the major city centres.
var extraPoints = map[string][]Point{
	"Delhi": {
		{Lat: 28.6469, Lon: 77.3164}, // Anand Vihar
		{Lat: 28.5355, Lon: 77.2510}, // Okhla
		{Lat: 28.7041, Lon: 77.1025}, // Rohini
	},
	"Mumbai": {
		{Lat: 19.0596, Lon: 72.8295}, // Bandra
		{Lat: 19.0330, Lon: 73.0297}, // Navi Mumbai
	},
	"Kolkata": {
		{Lat: 22.6271, Lon: 88.3808}, // Dunlop
	},
	"Bangalore": {
		{Lat: 12.9352, Lon: 77.6245}, // Koramangala
	},
}

// DefaultRefreshTargets builds targets from the major metros. Delhi and
// Mumbai come first.
func DefaultRefreshTargets() []RefreshTarget {
	targets := make([]RefreshTarget, 0, len(airquality.MajorCities))
	for _, city := range airquality.MajorCities {
		priority := 2
		if city.Name == "Delhi" || city.Name == "Mumbai" {
			priority = 1
		}
		points := append([]Point{{Lat: city.Lat, Lon: city.Lng}}, extraPoints[city.Name]...)
		targets = append(targets, RefreshTarget{
			Name:     city.Name,
			Points:   points,
			Priority: priority,
		})
	}
	return targets
}

// AllPoints returns every point, ordered by target priority.
func (c RefreshConfig) AllPoints() []Point {
	targets := make([]RefreshTarget, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	points := make([]Point, 0, c.TotalPoints())
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the number of points across all targets.
func (c RefreshConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
