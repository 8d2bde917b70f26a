package airquality

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// LocationKind classifies a synthetic location. Each kind has its own AQI
// range.
type LocationKind string

const (
	KindHill         LocationKind = "hill"
	KindCoastal      LocationKind = "coastal"
	KindUrban        LocationKind = "urban"
	KindIndustrial   LocationKind = "industrial"
	KindAgricultural LocationKind = "agricultural"
)

// AQIRange is an inclusive lower and exclusive upper AQI bound.
type AQIRange struct {
	Min, Max float64
}

// KindRanges maps location kinds to their plausible AQI band.
var KindRanges = map[LocationKind]AQIRange{
	KindHill:         {20, 60},
	KindCoastal:      {40, 110},
	KindUrban:        {80, 200},
	KindIndustrial:   {150, 300},
	KindAgricultural: {120, 280},
}

// SyntheticLocation is a fixed catalogue entry.
type SyntheticLocation struct {
	Name string
	Lat  float64
	Lng  float64
	Kind LocationKind
}

// DefaultSyntheticCatalogue covers Indian locations of every kind.
var DefaultSyntheticCatalogue = []SyntheticLocation{
	{"Shimla", 31.1048, 77.1734, KindHill},
	{"Darjeeling", 27.0410, 88.2663, KindHill},
	{"Ooty", 11.4102, 76.6950, KindHill},
	{"Munnar", 10.0889, 77.0595, KindHill},
	{"Gangtok", 27.3389, 88.6065, KindHill},

	{"Panaji", 15.4909, 73.8278, KindCoastal},
	{"Kochi", 9.9312, 76.2673, KindCoastal},
	{"Visakhapatnam", 17.6868, 83.2185, KindCoastal},
	{"Puducherry", 11.9416, 79.8083, KindCoastal},

	{"Delhi", 28.6139, 77.2090, KindUrban},
	{"Mumbai", 19.0760, 72.8777, KindUrban},
	{"Bangalore", 12.9716, 77.5946, KindUrban},
	{"Chennai", 13.0827, 80.2707, KindUrban},
	{"Kolkata", 22.5726, 88.3639, KindUrban},
	{"Hyderabad", 17.3850, 78.4867, KindUrban},
	{"Pune", 18.5204, 73.8567, KindUrban},
	{"Ahmedabad", 23.0225, 72.5714, KindUrban},
	{"Lucknow", 26.8467, 80.9462, KindUrban},
	{"Jaipur", 26.9124, 75.7873, KindUrban},

	{"Ghaziabad", 28.6692, 77.4538, KindIndustrial},
	{"Kanpur", 26.4499, 80.3319, KindIndustrial},
	{"Dhanbad", 23.7957, 86.4304, KindIndustrial},
	{"Korba", 22.3595, 82.7501, KindIndustrial},
	{"Angul", 20.8400, 85.1018, KindIndustrial},

	{"Ludhiana", 30.9010, 75.8573, KindAgricultural},
	{"Amritsar", 31.6340, 74.8723, KindAgricultural},
	{"Bathinda", 30.2110, 74.9455, KindAgricultural},
	{"Karnal", 29.6857, 76.9905, KindAgricultural},
	{"Hisar", 29.1492, 75.7217, KindAgricultural},
}

// SyntheticGenerator produces a plausible station set when no live data
// is available. The catalogue is fixed; only values vary between calls.
type SyntheticGenerator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	catalogue []SyntheticLocation
}

// NewSyntheticGenerator creates a generator over the default catalogue. A
// nil rng seeds one from the current time.
func NewSyntheticGenerator(rng *rand.Rand) *SyntheticGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // not security sensitive
	}
	return &SyntheticGenerator{
		rng:       rng,
		catalogue: DefaultSyntheticCatalogue,
	}
}

// Size returns the number of stations Generate produces.
func (g *SyntheticGenerator) Size() int {
	return len(g.catalogue)
}

// Generate returns one station per catalogue entry, stamped with now.
func (g *SyntheticGenerator) Generate(now time.Time) []Station {
	g.mu.Lock()
	defer g.mu.Unlock()

	stations := make([]Station, 0, len(g.catalogue))
	for _, loc := range g.catalogue {
		r := KindRanges[loc.Kind]
		aqi := math.Round(r.Min + g.rng.Float64()*(r.Max-r.Min))

		stations = append(stations, Station{
			ID:          StationID(SourceSynthetic, Slug(loc.Name)),
			Source:      SourceSynthetic,
			Name:        loc.Name,
			Lat:         loc.Lat,
			Lng:         loc.Lng,
			AQI:         aqi,
			PM25:        round1(aqi * (0.45 + g.rng.Float64()*0.15)),
			PM10:        round1(aqi * (0.8 + g.rng.Float64()*0.3)),
			NO2:         round1(aqi * (0.15 + g.rng.Float64()*0.1)),
			SO2:         round1(aqi * (0.05 + g.rng.Float64()*0.05)),
			CO:          round1(aqi * (0.005 + g.rng.Float64()*0.005)),
			O3:          round1(aqi * (0.2 + g.rng.Float64()*0.1)),
			LastUpdated: now,
			Provenance:  ProvenanceSynthetic,
		})
	}
	return stations
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
