package satellite

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

// SyntheticPoints is the size of the fallback set.
const SyntheticPoints = 20

var (
	syntheticSources = []Source{SourceISRO, SourceNASA, SourceESA}
	syntheticTypes   = []PollutantType{TypePM25, TypeNO2, TypeSO2, TypeCO}
	delhi            = airquality.City{Name: "Delhi", Lat: 28.6139, Lng: 77.2090}
)

// Synthetic generates points scattered within a degree of Delhi.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthetic creates a generator. A nil rng is seeded from the clock.
func NewSynthetic(rng *rand.Rand) *Synthetic {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // not security sensitive
	}
	return &Synthetic{rng: rng}
}

// Generate returns SyntheticPoints data stamped with now.
func (s *Synthetic) Generate(now time.Time) []Datum {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]Datum, 0, SyntheticPoints)
	for i := 0; i < SyntheticPoints; i++ {
		data = append(data, Datum{
			ID:             fmt.Sprintf("sat-%d", i),
			Timestamp:      now,
			Lat:            delhi.Lat + (s.rng.Float64()-0.5)*2,
			Lng:            delhi.Lng + (s.rng.Float64()-0.5)*2,
			PollutionLevel: math.Round((50+s.rng.Float64()*100)*10) / 10,
			Source:         syntheticSources[i%len(syntheticSources)],
			Type:           syntheticTypes[s.rng.Intn(len(syntheticTypes))],
			Provenance:     airquality.ProvenanceSynthetic,
		})
	}
	return data
}
