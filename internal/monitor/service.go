// Package monitor is the consumer-facing facade over aggregation, caching
// and polling. API handlers and the worker only talk to this package.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/cache"
	"github.com/vayuwatch/vayuwatch/internal/satellite"
	"github.com/vayuwatch/vayuwatch/internal/scheduler"
	"github.com/vayuwatch/vayuwatch/internal/weather"
)

// Cache keys.
const (
	StationsKey  = "stations:all"
	SatelliteKey = "satellite:all"
)

// CacheRecorder records cache lookups.
type CacheRecorder interface {
	RecordCacheLookup(ctx context.Context, key string, hit bool)
}

// Config holds configuration for the monitor service.
type Config struct {
	Aggregator *airquality.Aggregator
	Satellite  *satellite.Service
	Weather    *weather.Service
	Cache      *cache.Cache

	// Estimator for point estimates (default: NewEstimator with defaults).
	Estimator *airquality.Estimator

	// PollInterval for SetupRealTimeUpdates (default: scheduler.DefaultInterval).
	PollInterval time.Duration

	Metrics CacheRecorder
	Logger  zerolog.Logger
}

// StationSet is one cached aggregation result.
type StationSet struct {
	Stations  []airquality.Station
	Sources   map[string]int
	FetchedAt time.Time
	Seq       uint64
	Synthetic bool
}

// Service serves cached station, satellite and weather data.
type Service struct {
	aggregator *airquality.Aggregator
	satellite  *satellite.Service
	weather    *weather.Service
	cache      *cache.Cache
	estimator  *airquality.Estimator
	scheduler  *scheduler.Scheduler
	flight     singleflight.Group
	metrics    CacheRecorder
	logger     zerolog.Logger
}

// NewService creates a new monitor service.
func NewService(cfg Config) *Service {
	c := cfg.Cache
	if c == nil {
		c = cache.New(cache.Config{})
	}
	estimator := cfg.Estimator
	if estimator == nil {
		estimator = airquality.NewEstimator(airquality.EstimatorConfig{})
	}

	s := &Service{
		aggregator: cfg.Aggregator,
		satellite:  cfg.Satellite,
		weather:    cfg.Weather,
		cache:      c,
		estimator:  estimator,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}

	s.scheduler = scheduler.New(scheduler.Config{
		Fetch:    s.FetchRealTimeAQI,
		Interval: cfg.PollInterval,
		Logger:   cfg.Logger,
	})

	return s
}

// Start begins scheduled polling for any subscriptions.
func (s *Service) Start() {
	s.scheduler.Start()
}

// Stop halts polling. The returned context is done once running ticks finish.
func (s *Service) Stop() context.Context {
	return s.scheduler.Stop()
}

// Scheduler exposes the poller for manual triggers.
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Cache exposes the underlying cache.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// CacheTTL is how long fetched data is served before refetching.
func (s *Service) CacheTTL() time.Duration {
	return s.cache.TTL()
}

// FetchRealTimeAQI returns the current station list. The result is never
// empty: the aggregator falls back to synthetic data.
func (s *Service) FetchRealTimeAQI(ctx context.Context) ([]airquality.Station, error) {
	set, err := s.Stations(ctx)
	if err != nil {
		return nil, err
	}
	return set.Stations, nil
}

// Stations returns the current station list with its metadata, served
// from cache while fresh.
func (s *Service) Stations(ctx context.Context) (*StationSet, error) {
	if set, ok := cache.Lookup[*StationSet](s.cache, StationsKey); ok {
		s.recordLookup(ctx, StationsKey, true)
		return set, nil
	}
	s.recordLookup(ctx, StationsKey, false)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}

	// Concurrent misses share one aggregation. The shared fetch is detached
	// from any single caller's cancellation; adapters are bounded by the
	// aggregator timeout.
	ch := s.flight.DoChan(StationsKey, func() (interface{}, error) {
		return s.aggregate(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug().Msg("joined in-flight aggregation")
		}
		return res.Val.(*StationSet), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch stations: %w", ctx.Err())
	}
}

// aggregate runs one aggregation cycle and caches it unless a newer cycle
// already landed.
func (s *Service) aggregate(ctx context.Context) *StationSet {
	if set, ok := cache.Lookup[*StationSet](s.cache, StationsKey); ok {
		return set
	}

	cycle := s.aggregator.Fetch(ctx)
	set := &StationSet{
		Stations:  cycle.Stations,
		Sources:   airquality.SourceCounts(cycle.Stations),
		FetchedAt: cycle.FetchedAt,
		Seq:       cycle.Seq,
		Synthetic: cycle.Synthetic,
	}

	if !s.cache.PutVersion(StationsKey, set, cycle.Seq) {
		// A newer cycle finished first; serve that one.
		s.logger.Debug().
			Uint64("seq", cycle.Seq).
			Msg("discarding stale aggregation result")
		if newer, ok := cache.Lookup[*StationSet](s.cache, StationsKey); ok {
			return newer
		}
	}

	return set
}

// FetchSatelliteData returns satellite-derived readings, served from
// cache while fresh.
func (s *Service) FetchSatelliteData(ctx context.Context) ([]satellite.Datum, error) {
	if data, ok := cache.Lookup[[]satellite.Datum](s.cache, SatelliteKey); ok {
		s.recordLookup(ctx, SatelliteKey, true)
		return data, nil
	}
	s.recordLookup(ctx, SatelliteKey, false)

	data := s.satellite.FetchData(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch satellite data: %w", err)
	}

	s.cache.Put(SatelliteKey, data)
	return data, nil
}

// FetchWeatherData returns current weather at a coordinate. Results are
// cached per coordinate rounded to two decimal places.
func (s *Service) FetchWeatherData(ctx context.Context, lat, lng float64) (*weather.Snapshot, error) {
	if err := weather.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	key := weather.CacheKey(lat, lng)
	if snap, ok := cache.Lookup[*weather.Snapshot](s.cache, key); ok {
		s.recordLookup(ctx, "weather", true)
		return snap, nil
	}
	s.recordLookup(ctx, "weather", false)

	snap, err := s.weather.Current(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	// Synthetic snapshots are not cached so the next request retries upstream.
	if snap.Provenance != airquality.ProvenanceSynthetic {
		s.cache.Put(key, snap)
	}
	return snap, nil
}

// SetupRealTimeUpdates delivers the full station list immediately and then
// on every poll. The returned function cancels this subscription only.
func (s *Service) SetupRealTimeUpdates(callback func([]airquality.Station)) (unsubscribe func()) {
	return s.scheduler.Subscribe(callback)
}

// EstimateAQI interpolates AQI at a coordinate from the current stations.
func (s *Service) EstimateAQI(ctx context.Context, lat, lng float64) (*airquality.PointEstimate, error) {
	if err := weather.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	stations, err := s.FetchRealTimeAQI(ctx)
	if err != nil {
		return nil, err
	}

	return s.estimator.Estimate(lat, lng, stations)
}

// Refresh drops every cached entry and runs a poll for all subscribers.
func (s *Service) Refresh(ctx context.Context) error {
	s.cache.InvalidateAll()
	return s.scheduler.Trigger(ctx)
}

// Status summarises cache and polling state.
type Status struct {
	Cache         cache.Stats
	Subscriptions int
	PollInterval  time.Duration
	Ticks         uint64
	TickFailures  uint64
	Adapters      []string
	LastCycle     *StationSet
}

// Status returns the current service status.
func (s *Service) Status() Status {
	ticks, failures := s.scheduler.Stats()

	st := Status{
		Cache:         s.cache.Stats(),
		Subscriptions: s.scheduler.Subscriptions(),
		PollInterval:  s.scheduler.Interval(),
		Ticks:         ticks,
		TickFailures:  failures,
		Adapters:      s.aggregator.AdapterNames(),
	}
	if entry, ok := s.cache.Peek(StationsKey); ok {
		if set, ok := entry.Value.(*StationSet); ok {
			st.LastCycle = set
		}
	}
	return st
}

func (s *Service) recordLookup(ctx context.Context, key string, hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(ctx, key, hit)
	}
}
