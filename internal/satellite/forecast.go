package satellite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/airquality/openweathermap"
)

// PollutionFetcher calls an OWM air pollution endpoint for one coordinate.
type PollutionFetcher interface {
	FetchPollution(ctx context.Context, path string, lat, lng float64, out *openweathermap.PollutionResponse) error
}

// ForecastConfig configures the forecast-derived source.
type ForecastConfig struct {
	Client PollutionFetcher

	// Cities default to airquality.MajorCities.
	Cities []airquality.City

	// Hours is how many forecast entries to keep per city (default: 3).
	Hours int

	Logger zerolog.Logger
}

// ForecastSource turns OWM pollution forecasts into data points.
type ForecastSource struct {
	client PollutionFetcher
	cities []airquality.City
	hours  int
	logger zerolog.Logger
}

// NewForecastSource creates a forecast source.
func NewForecastSource(cfg ForecastConfig) *ForecastSource {
	if len(cfg.Cities) == 0 {
		cfg.Cities = airquality.MajorCities
	}
	if cfg.Hours <= 0 {
		cfg.Hours = 3
	}
	return &ForecastSource{
		client: cfg.Client,
		cities: cfg.Cities,
		hours:  cfg.Hours,
		logger: cfg.Logger,
	}
}

// Fetch returns up to Hours data points per city. A failing city is
// skipped; the error is returned only if every city failed.
func (f *ForecastSource) Fetch(ctx context.Context) ([]Datum, error) {
	var data []Datum
	var lastErr error

	for _, city := range f.cities {
		if err := ctx.Err(); err != nil {
			return data, err
		}

		var resp openweathermap.PollutionResponse
		if err := f.client.FetchPollution(ctx, "/air_pollution/forecast", city.Lat, city.Lng, &resp); err != nil {
			f.logger.Warn().Err(err).Str("city", city.Name).Msg("pollution forecast failed")
			lastErr = err
			continue
		}

		for i, e := range resp.List {
			if i >= f.hours {
				break
			}
			data = append(data, forecastDatum(city, e))
		}
	}

	if len(data) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return data, nil
}

func forecastDatum(city airquality.City, e openweathermap.PollutionEntry) Datum {
	typ, level := Dominant(Levels{
		PM25: e.Components.PM25,
		NO2:  e.Components.NO2,
		SO2:  e.Components.SO2,
		CO:   airquality.MicrogramsToMilligrams(e.Components.CO),
	})

	return Datum{
		ID:             fmt.Sprintf("ow-%s-%d", airquality.Slug(city.Name), e.Dt),
		Timestamp:      time.Unix(e.Dt, 0).UTC(),
		Lat:            city.Lat,
		Lng:            city.Lng,
		PollutionLevel: level,
		Source:         SourceOWM,
		Type:           typ,
		Provenance:     airquality.ProvenanceLive,
	}
}
