package airquality

import (
	"errors"
	"math"
	"sort"
)

// ErrNoStationsInRange is returned when no station lies within the
// estimator's search radius.
var ErrNoStationsInRange = errors.New("no stations within range")

// Confidence grades a point estimate by how close the nearest station is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// EstimatorConfig holds configuration for point estimates.
type EstimatorConfig struct {
	// MaxDistanceKm ignores stations farther than this (default: 50).
	MaxDistanceKm float64

	// MaxStations caps the nearest stations used (default: 5).
	MaxStations int

	// Power is the inverse distance weighting exponent (default: 2).
	Power float64

	// HighConfidenceKm and MediumConfidenceKm grade the nearest station
	// distance (defaults: 10 and 25).
	HighConfidenceKm   float64
	MediumConfidenceKm float64
}

// Contribution is one station's share of an estimate.
type Contribution struct {
	StationID  string
	DistanceKm float64
	AQI        float64
	Weight     float64
}

// PointEstimate is an inverse-distance-weighted AQI at an arbitrary point.
type PointEstimate struct {
	Lat           float64
	Lng           float64
	AQI           float64
	PM25          float64
	Confidence    Confidence
	NearestID     string
	NearestKm     float64
	Contributions []Contribution
	Provenance    Provenance
}

// Status derives the category from the estimated AQI.
func (p *PointEstimate) Status() Status {
	return StatusFor(p.AQI)
}

// Estimator computes point estimates from a station set.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator creates an estimator, filling zero fields with defaults.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = 50
	}
	if cfg.MaxStations <= 0 {
		cfg.MaxStations = 5
	}
	if cfg.Power <= 0 {
		cfg.Power = 2
	}
	if cfg.HighConfidenceKm <= 0 {
		cfg.HighConfidenceKm = 10
	}
	if cfg.MediumConfidenceKm <= 0 {
		cfg.MediumConfidenceKm = 25
	}
	return &Estimator{cfg: cfg}
}

type stationDistance struct {
	station Station
	km      float64
}

// Estimate returns the weighted AQI at (lat, lng) from the nearest stations.
// The estimate is synthetic only when every contributing station is.
func (e *Estimator) Estimate(lat, lng float64, stations []Station) (*PointEstimate, error) {
	var near []stationDistance
	for _, s := range stations {
		d := HaversineKm(lat, lng, s.Lat, s.Lng)
		if d <= e.cfg.MaxDistanceKm {
			near = append(near, stationDistance{station: s, km: d})
		}
	}
	if len(near) == 0 {
		return nil, ErrNoStationsInRange
	}

	sort.Slice(near, func(i, j int) bool { return near[i].km < near[j].km })
	if len(near) > e.cfg.MaxStations {
		near = near[:e.cfg.MaxStations]
	}

	est := &PointEstimate{
		Lat:           lat,
		Lng:           lng,
		NearestID:     near[0].station.ID,
		NearestKm:     near[0].km,
		Contributions: make([]Contribution, 0, len(near)),
		Provenance:    ProvenanceSynthetic,
	}

	var total float64
	for _, sd := range near {
		// Sitting on top of a station: its value dominates.
		weight := 1e10
		if sd.km >= 0.001 {
			weight = 1 / math.Pow(sd.km, e.cfg.Power)
		}
		total += weight
		est.Contributions = append(est.Contributions, Contribution{
			StationID:  sd.station.ID,
			DistanceKm: sd.km,
			AQI:        sd.station.AQI,
			Weight:     weight,
		})
		if !sd.station.IsSynthetic() {
			est.Provenance = ProvenanceLive
		}
	}

	for i := range est.Contributions {
		c := &est.Contributions[i]
		c.Weight /= total
		est.AQI += c.AQI * c.Weight
		est.PM25 += near[i].station.PM25 * c.Weight
	}
	est.AQI = math.Round(est.AQI)
	est.PM25 = round1(est.PM25)
	est.Confidence = e.confidence(est.NearestKm, len(near))

	return est, nil
}

func (e *Estimator) confidence(nearestKm float64, count int) Confidence {
	switch {
	case nearestKm <= e.cfg.HighConfidenceKm && count >= 2:
		return ConfidenceHigh
	case nearestKm <= e.cfg.MediumConfidenceKm:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0

	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
