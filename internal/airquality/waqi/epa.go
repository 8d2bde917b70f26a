package waqi

import "math"

// WAQI reports each pollutant as a US EPA sub-index, not a concentration.
// The tables below invert those indices back to concentrations so
// stations carry µg/m³ (CO in mg/m³) like every other source.

type epaBand struct {
	iLow, iHigh float64
	cLow, cHigh float64
}

// Concentration units per table: PM in µg/m³, NO2/SO2/O3 in ppb, CO in ppm.
var epaBands = map[string][]epaBand{
	"pm25": {
		{0, 50, 0, 12.0}, {51, 100, 12.1, 35.4}, {101, 150, 35.5, 55.4},
		{151, 200, 55.5, 150.4}, {201, 300, 150.5, 250.4}, {301, 400, 250.5, 350.4},
		{401, 500, 350.5, 500.4},
	},
	"pm10": {
		{0, 50, 0, 54}, {51, 100, 55, 154}, {101, 150, 155, 254},
		{151, 200, 255, 354}, {201, 300, 355, 424}, {301, 400, 425, 504},
		{401, 500, 505, 604},
	},
	"no2": {
		{0, 50, 0, 53}, {51, 100, 54, 100}, {101, 150, 101, 360},
		{151, 200, 361, 649}, {201, 300, 650, 1249}, {301, 400, 1250, 1649},
		{401, 500, 1650, 2049},
	},
	"so2": {
		{0, 50, 0, 35}, {51, 100, 36, 75}, {101, 150, 76, 185},
		{151, 200, 186, 304}, {201, 300, 305, 604}, {301, 400, 605, 804},
		{401, 500, 805, 1004},
	},
	"co": {
		{0, 50, 0, 4.4}, {51, 100, 4.5, 9.4}, {101, 150, 9.5, 12.4},
		{151, 200, 12.5, 15.4}, {201, 300, 15.5, 30.4}, {301, 400, 30.5, 40.4},
		{401, 500, 40.5, 50.4},
	},
	// 8-hour ozone is only defined up to 300.
	"o3": {
		{0, 50, 0, 54}, {51, 100, 55, 70}, {101, 150, 71, 85},
		{151, 200, 86, 105}, {201, 300, 106, 200},
	},
}

// Gas conversion at 25 °C and 1 atm: µg/m³ = ppb × molar mass / 24.45.
const molarVolume = 24.45

var molarMass = map[string]float64{
	"no2": 46.0055,
	"so2": 64.066,
	"o3":  47.9982,
	"co":  28.010,
}

// concentration converts a WAQI sub-index for key into canonical units:
// µg/m³, or mg/m³ for CO. Non-positive indices and unknown keys give 0;
// indices past the table cap at its top concentration.
func concentration(key string, index float64) float64 {
	bands, ok := epaBands[key]
	if !ok || index <= 0 || math.IsNaN(index) {
		return 0
	}

	raw := bands[len(bands)-1].cHigh
	for _, b := range bands {
		if index > b.iHigh {
			continue
		}
		i := math.Max(index, b.iLow)
		raw = b.cLow + (i-b.iLow)*(b.cHigh-b.cLow)/(b.iHigh-b.iLow)
		break
	}

	mass, gas := molarMass[key]
	switch {
	case !gas:
		return round(raw, 10)
	case key == "co":
		// ppm × M / 24.45 is already mg/m³.
		return round(raw*mass/molarVolume, 100)
	default:
		return round(raw*mass/molarVolume, 10)
	}
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}
