package airquality

import "math"

// DefaultDedupThreshold is roughly 10 km of latitude.
const DefaultDedupThreshold = 0.1

// Coordinates are compared in whole micro-degrees (about 0.1 m) so that
// float noise in the subtraction cannot pull a pair under the threshold.
const microDegrees = 1e6

// Dedup drops every station that lies within threshold degrees of an
// already accepted station in both latitude and longitude. Iteration is in
// input order and the first station seen wins. The pass is O(n²), which is
// fine for the tens to low hundreds of stations a cycle produces.
func Dedup(stations []Station, threshold float64) []Station {
	accepted := make([]Station, 0, len(stations))
	limit := math.Round(threshold * microDegrees)

	for _, candidate := range stations {
		duplicate := false
		for _, kept := range accepted {
			if within(kept.Lat, candidate.Lat, limit) && within(kept.Lng, candidate.Lng, limit) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			accepted = append(accepted, candidate)
		}
	}

	return accepted
}

func within(a, b, limit float64) bool {
	return math.Round(math.Abs(a-b)*microDegrees) < limit
}
