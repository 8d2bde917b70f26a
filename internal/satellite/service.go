package satellite

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher returns live data points.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Datum, error)
}

// ServiceConfig configures the satellite service.
type ServiceConfig struct {
	// Source is optional. Without one only synthetic data is served.
	Source    Fetcher
	Synthetic *Synthetic
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service serves live data points, falling back to synthetic ones.
type Service struct {
	source    Fetcher
	synthetic *Synthetic
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a satellite service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Synthetic == nil {
		cfg.Synthetic = NewSynthetic(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		source:    cfg.Source,
		synthetic: cfg.Synthetic,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// FetchData never returns an empty set.
func (s *Service) FetchData(ctx context.Context) []Datum {
	if s.source != nil {
		data, err := s.source.Fetch(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("satellite source failed")
		}
		if len(data) > 0 {
			return data
		}
	}

	s.logger.Info().Msg("no live satellite data, serving synthetic points")
	return s.synthetic.Generate(s.now())
}
