package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/satellite"
	"github.com/vayuwatch/vayuwatch/internal/weather"
)

// Source is the cache-backed data layer the refresh job warms.
type Source interface {
	FetchRealTimeAQI(ctx context.Context) ([]airquality.Station, error)
	FetchSatelliteData(ctx context.Context) ([]satellite.Datum, error)
	FetchWeatherData(ctx context.Context, lat, lng float64) (*weather.Snapshot, error)
}

// RefreshJob warms the station, satellite and weather caches.
type RefreshJob struct {
	config  RefreshConfig
	logger  zerolog.Logger
	source  Source
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	StationRefresh    int64
	SatelliteRefresh  int64
	WeatherRefresh    int64
	SyntheticWeather  int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger
	Source Source
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultRefreshConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		source:  cfg.Source,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Stations is the size of the station list after the refresh; zero
	// when stations were not refreshed or the refresh failed.
	Stations          int
	SyntheticStations bool
	SatelliteData     int

	// Point counts cover weather only.
	TotalPoints      int
	Successful       int
	Failed           int
	SyntheticWeather int

	Errors []RefreshError
}

// NetworkFailed reports whether a network-wide refresh (stations or
// satellite) failed.
func (r *RefreshResult) NetworkFailed() bool {
	for _, e := range r.Errors {
		if e.Point == nil {
			return true
		}
	}
	return false
}

// RefreshError represents an error during refresh. Point is nil for
// network-wide refreshes.
type RefreshError struct {
	Provider string
	Point    *Point
	Error    string
}

// Run executes the refresh job for all configured targets.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	j.logger.Info().
		Int("total_points", j.config.TotalPoints()).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache refresh job")

	if j.config.RefreshStations {
		j.refreshStations(ctx, result)
	}
	if j.config.RefreshSatellite {
		j.refreshSatellite(ctx, result)
	}
	if j.config.RefreshWeather {
		j.refreshWeather(ctx, result)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("stations", result.Stations).
		Bool("synthetic_stations", result.SyntheticStations).
		Int("satellite", result.SatelliteData).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("cache refresh job completed")

	return result
}

func (j *RefreshJob) refreshStations(ctx context.Context, result *RefreshResult) {
	stations, err := j.source.FetchRealTimeAQI(ctx)
	if err != nil {
		result.Errors = append(result.Errors, RefreshError{Provider: "stations", Error: err.Error()})
		return
	}

	result.Stations = len(stations)
	result.SyntheticStations = len(stations) > 0 && stations[0].IsSynthetic()

	j.metrics.mu.Lock()
	j.metrics.StationRefresh++
	j.metrics.mu.Unlock()
}

func (j *RefreshJob) refreshSatellite(ctx context.Context, result *RefreshResult) {
	data, err := j.source.FetchSatelliteData(ctx)
	if err != nil {
		result.Errors = append(result.Errors, RefreshError{Provider: "satellite", Error: err.Error()})
		return
	}

	result.SatelliteData = len(data)

	j.metrics.mu.Lock()
	j.metrics.SatelliteRefresh++
	j.metrics.mu.Unlock()
}

type pointResult struct {
	point     Point
	synthetic bool
	err       error
}

// refreshWeather fans points out to a fixed pool of workers.
func (j *RefreshJob) refreshWeather(ctx context.Context, result *RefreshResult) {
	points := j.config.AllPoints()
	result.TotalPoints = len(points)

	pointsChan := make(chan Point, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.weatherWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.err != nil {
			p := pr.point
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				Provider: "weather",
				Point:    &p,
				Error:    pr.err.Error(),
			})
			continue
		}
		result.Successful++
		if pr.synthetic {
			result.SyntheticWeather++
		}
	}

	// Points never picked up because ctx ended count as failed.
	if skipped := result.TotalPoints - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}
}

func (j *RefreshJob) weatherWorker(ctx context.Context, points <-chan Point, results chan<- pointResult) {
	for point := range points {
		if ctx.Err() != nil {
			return
		}
		results <- j.refreshPoint(ctx, point)
	}
}

func (j *RefreshJob) refreshPoint(ctx context.Context, point Point) pointResult {
	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	snap, err := j.source.FetchWeatherData(pointCtx, point.Lat, point.Lon)
	if err != nil {
		j.logger.Debug().
			Err(err).
			Float64("lat", point.Lat).
			Float64("lon", point.Lon).
			Msg("weather refresh failed")
		return pointResult{point: point, err: err}
	}

	return pointResult{
		point:     point,
		synthetic: snap.Provenance == airquality.ProvenanceSynthetic,
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.WeatherRefresh += int64(result.Successful)
	j.metrics.SyntheticWeather += int64(result.SyntheticWeather)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		StationRefresh:      j.metrics.StationRefresh,
		SatelliteRefresh:    j.metrics.SatelliteRefresh,
		WeatherRefresh:      j.metrics.WeatherRefresh,
		SyntheticWeather:    j.metrics.SyntheticWeather,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for JSON output.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"station_refreshes":     m.StationRefresh,
		"satellite_refreshes":   m.SatelliteRefresh,
		"weather_refreshes":     m.WeatherRefresh,
		"synthetic_weather":     m.SyntheticWeather,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
