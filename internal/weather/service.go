package weather

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

// Provider fetches current weather for a coordinate.
type Provider interface {
	GetCurrentWeather(ctx context.Context, lat, lng float64) (*Snapshot, error)
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider may be nil, in which case every call is synthetic.
	Provider Provider

	Logger zerolog.Logger

	// Rand drives the synthetic fallback. Nil seeds from the clock.
	Rand *rand.Rand
	Now  func() time.Time
}

// Service returns provider weather, or a synthetic snapshot when the
// provider is missing or fails.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates a weather service.
func NewService(cfg ServiceConfig) *Service {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // not security sensitive
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		now:      now,
		rng:      rng,
	}
}

// Current returns the weather at (lat, lng). Only invalid coordinates are
// an error.
func (s *Service) Current(ctx context.Context, lat, lng float64) (*Snapshot, error) {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	if s.provider != nil {
		snap, err := s.provider.GetCurrentWeather(ctx, lat, lng)
		if err == nil {
			return snap, nil
		}
		s.logger.Warn().
			Err(err).
			Str("provider", s.provider.Name()).
			Float64("lat", lat).
			Float64("lng", lng).
			Msg("weather fetch failed, serving synthetic snapshot")
	}

	return s.synthetic(lat, lng), nil
}

// synthetic mirrors typical north Indian conditions.
func (s *Service) synthetic(lat, lng float64) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Snapshot{
		Lat:           lat,
		Lng:           lng,
		Temperature:   round1(25 + s.rng.Float64()*10),
		Humidity:      math.Round(40 + s.rng.Float64()*40),
		WindSpeed:     round1(5 + s.rng.Float64()*15),
		WindDirection: math.Round(s.rng.Float64() * 360),
		Pressure:      math.Round(1005 + s.rng.Float64()*15),
		Visibility:    round1(2 + s.rng.Float64()*8),
		Condition:     ConditionHaze,
		ObservedAt:    s.now(),
		Provenance:    airquality.ProvenanceSynthetic,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
