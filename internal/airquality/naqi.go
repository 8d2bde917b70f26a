package airquality

import "math"

// Pollutant identifies a criteria pollutant.
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM2.5"
	PollutantPM10 Pollutant = "PM10"
	PollutantNO2  Pollutant = "NO2"
	PollutantSO2  Pollutant = "SO2"
	PollutantCO   Pollutant = "CO"
	PollutantO3   Pollutant = "O3"
)

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// CPCB National AQI breakpoints. CO in mg/m³, everything else in µg/m³.
var naqiBreakpoints = map[Pollutant][]breakpoint{
	PollutantPM25: {
		{0, 30, 0, 50}, {31, 60, 51, 100}, {61, 90, 101, 200},
		{91, 120, 201, 300}, {121, 250, 301, 400}, {251, 500, 401, 500},
	},
	PollutantPM10: {
		{0, 50, 0, 50}, {51, 100, 51, 100}, {101, 250, 101, 200},
		{251, 350, 201, 300}, {351, 430, 301, 400}, {431, 600, 401, 500},
	},
	PollutantNO2: {
		{0, 40, 0, 50}, {41, 80, 51, 100}, {81, 180, 101, 200},
		{181, 280, 201, 300}, {281, 400, 301, 400}, {401, 1000, 401, 500},
	},
	PollutantSO2: {
		{0, 40, 0, 50}, {41, 80, 51, 100}, {81, 380, 101, 200},
		{381, 800, 201, 300}, {801, 1600, 301, 400}, {1601, 2600, 401, 500},
	},
	PollutantCO: {
		{0, 1, 0, 50}, {1.1, 2, 51, 100}, {2.1, 10, 101, 200},
		{10.1, 17, 201, 300}, {17.1, 34, 301, 400}, {34.1, 50, 401, 500},
	},
	PollutantO3: {
		{0, 50, 0, 50}, {51, 100, 51, 100}, {101, 168, 101, 200},
		{169, 208, 201, 300}, {209, 748, 301, 400}, {749, 1000, 401, 500},
	},
}

// SubIndex returns the CPCB sub-index for a concentration, linearly
// interpolated within its band. Concentrations between two bands snap to
// the upper band; values past the table cap at 500. Non-positive or
// unknown pollutants yield 0.
func SubIndex(p Pollutant, concentration float64) float64 {
	bands, ok := naqiBreakpoints[p]
	if !ok || concentration <= 0 {
		return 0
	}

	for _, b := range bands {
		if concentration > b.cHigh {
			continue
		}
		c := math.Max(concentration, b.cLow)
		idx := b.iLow + (c-b.cLow)*(b.iHigh-b.iLow)/(b.cHigh-b.cLow)
		return math.Round(idx)
	}
	return 500
}

// CompositeAQI is the maximum sub-index across the station's pollutants.
func CompositeAQI(s Station) float64 {
	values := map[Pollutant]float64{
		PollutantPM25: s.PM25,
		PollutantPM10: s.PM10,
		PollutantNO2:  s.NO2,
		PollutantSO2:  s.SO2,
		PollutantCO:   s.CO,
		PollutantO3:   s.O3,
	}

	var aqi float64
	for p, v := range values {
		aqi = math.Max(aqi, SubIndex(p, v))
	}
	return aqi
}
