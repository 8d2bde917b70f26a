package models

import (
	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/alerts"
	"github.com/vayuwatch/vayuwatch/internal/satellite"
	"github.com/vayuwatch/vayuwatch/internal/weather"
)

// Pollutants are concentrations in µg/m³, except CO in mg/m³.
type Pollutants struct {
	PM25 float64 `json:"pm25"`
	PM10 float64 `json:"pm10"`
	NO2  float64 `json:"no2"`
	SO2  float64 `json:"so2"`
	CO   float64 `json:"co"`
	O3   float64 `json:"o3"`
}

// Station is a monitoring station with its latest reading.
type Station struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Name        string     `json:"name"`
	Point       Point      `json:"point"`
	AQI         float64    `json:"aqi"`
	Status      string     `json:"status"`
	Pollutants  Pollutants `json:"pollutants"`
	LastUpdated Timestamp  `json:"lastUpdated"`
	Provenance  string     `json:"provenance"`
}

// StationListMeta describes one station list.
type StationListMeta struct {
	Count     int            `json:"count"`
	Sources   map[string]int `json:"sources"`
	FetchedAt Timestamp      `json:"fetchedAt"`
	Synthetic bool           `json:"synthetic"`
}

// StationList is the body of GET /v1/stations.
type StationList struct {
	Items []Station       `json:"items"`
	Meta  StationListMeta `json:"meta"`
}

// NewStation converts a domain station.
func NewStation(s airquality.Station) Station {
	return Station{
		ID:     s.ID,
		Source: s.Source,
		Name:   s.Name,
		Point:  Point{Lat: s.Lat, Lon: s.Lng},
		AQI:    s.AQI,
		Status: string(s.Status()),
		Pollutants: Pollutants{
			PM25: s.PM25,
			PM10: s.PM10,
			NO2:  s.NO2,
			SO2:  s.SO2,
			CO:   s.CO,
			O3:   s.O3,
		},
		LastUpdated: Timestamp(s.LastUpdated),
		Provenance:  string(s.Provenance),
	}
}

// NewStations converts a station slice. The result is never nil.
func NewStations(stations []airquality.Station) []Station {
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		out = append(out, NewStation(s))
	}
	return out
}

// SatelliteDatum is one satellite-derived reading.
type SatelliteDatum struct {
	ID             string    `json:"id"`
	Timestamp      Timestamp `json:"timestamp"`
	Point          Point     `json:"point"`
	PollutionLevel float64   `json:"pollutionLevel"`
	Source         string    `json:"source"`
	Type           string    `json:"type"`
	Provenance     string    `json:"provenance"`
}

// SatelliteList is the body of GET /v1/satellite.
type SatelliteList struct {
	Items []SatelliteDatum `json:"items"`
}

// NewSatelliteList converts satellite data.
func NewSatelliteList(data []satellite.Datum) SatelliteList {
	items := make([]SatelliteDatum, 0, len(data))
	for _, d := range data {
		items = append(items, SatelliteDatum{
			ID:             d.ID,
			Timestamp:      Timestamp(d.Timestamp),
			Point:          Point{Lat: d.Lat, Lon: d.Lng},
			PollutionLevel: d.PollutionLevel,
			Source:         string(d.Source),
			Type:           string(d.Type),
			Provenance:     string(d.Provenance),
		})
	}
	return SatelliteList{Items: items}
}

// Weather is the body of GET /v1/weather.
type Weather struct {
	Point         Point     `json:"point"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection float64   `json:"windDirection"`
	WindCategory  string    `json:"windCategory"`
	Pressure      float64   `json:"pressure"`
	Visibility    float64   `json:"visibility"`
	Condition     string    `json:"condition"`
	Description   string    `json:"description,omitempty"`
	ObservedAt    Timestamp `json:"observedAt"`
	Provenance    string    `json:"provenance"`
}

// NewWeather converts a weather snapshot.
func NewWeather(s *weather.Snapshot) Weather {
	return Weather{
		Point:         Point{Lat: s.Lat, Lon: s.Lng},
		Temperature:   s.Temperature,
		Humidity:      s.Humidity,
		WindSpeed:     s.WindSpeed,
		WindDirection: s.WindDirection,
		WindCategory:  string(s.WindCategory()),
		Pressure:      s.Pressure,
		Visibility:    s.Visibility,
		Condition:     string(s.Condition),
		Description:   s.Description,
		ObservedAt:    Timestamp(s.ObservedAt),
		Provenance:    string(s.Provenance),
	}
}

// EstimateContribution is one station's share of a point estimate.
type EstimateContribution struct {
	StationID  string  `json:"stationId"`
	DistanceKm float64 `json:"distanceKm"`
	AQI        float64 `json:"aqi"`
	Weight     float64 `json:"weight"`
}

// PointEstimate is the body of GET /v1/aqi.
type PointEstimate struct {
	Point            Point                  `json:"point"`
	AQI              float64                `json:"aqi"`
	PM25             float64                `json:"pm25"`
	Status           string                 `json:"status"`
	Confidence       string                 `json:"confidence"`
	NearestStationID string                 `json:"nearestStationId"`
	NearestKm        float64                `json:"nearestKm"`
	Contributions    []EstimateContribution `json:"contributions"`
	Provenance       string                 `json:"provenance"`
}

// NewPointEstimate converts an estimate.
func NewPointEstimate(e *airquality.PointEstimate) PointEstimate {
	contributions := make([]EstimateContribution, 0, len(e.Contributions))
	for _, c := range e.Contributions {
		contributions = append(contributions, EstimateContribution{
			StationID:  c.StationID,
			DistanceKm: c.DistanceKm,
			AQI:        c.AQI,
			Weight:     c.Weight,
		})
	}
	return PointEstimate{
		Point:            Point{Lat: e.Lat, Lon: e.Lng},
		AQI:              e.AQI,
		PM25:             e.PM25,
		Status:           string(e.Status()),
		Confidence:       string(e.Confidence),
		NearestStationID: e.NearestID,
		NearestKm:        e.NearestKm,
		Contributions:    contributions,
		Provenance:       string(e.Provenance),
	}
}

// Alert is one detected AQI change.
type Alert struct {
	ID          string    `json:"id"`
	Cell        string    `json:"cell"`
	StationID   string    `json:"stationId"`
	StationName string    `json:"stationName"`
	Point       Point     `json:"point"`
	Previous    *float64  `json:"previous,omitempty"`
	Current     float64   `json:"current"`
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// AlertList is the body of GET /v1/alerts.
type AlertList struct {
	Items []Alert `json:"items"`
}

// NewAlertList converts alerts, preserving order.
func NewAlertList(list []alerts.Alert) AlertList {
	items := make([]Alert, 0, len(list))
	for _, a := range list {
		item := Alert{
			ID:          a.ID,
			Cell:        a.Cell,
			StationID:   a.StationID,
			StationName: a.StationName,
			Point:       Point{Lat: a.Lat, Lon: a.Lng},
			Current:     a.Current,
			Severity:    string(a.Severity),
			Message:     a.Message,
			CreatedAt:   Timestamp(a.CreatedAt),
		}
		if a.HasPrevious {
			prev := a.Previous
			item.Previous = &prev
		}
		items = append(items, item)
	}
	return AlertList{Items: items}
}

// StreamMessage is one websocket frame on /v1/stations/stream.
type StreamMessage struct {
	Type  string      `json:"type"`
	Items []Station   `json:"items,omitempty"`
	Meta  *StreamMeta `json:"meta,omitempty"`
}

// StreamMeta accompanies each station push.
type StreamMeta struct {
	Count   int            `json:"count"`
	Sources map[string]int `json:"sources"`
	SentAt  Timestamp      `json:"sentAt"`
}

// Stream message types.
const (
	StreamTypeStations = "stations"
)
