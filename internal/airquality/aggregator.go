package airquality

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vayuwatch/vayuwatch/internal/airquality"

// Adapter fetches stations from one upstream provider and converts them to
// canonical Station records.
type Adapter interface {
	// Name identifies the adapter for logging, metrics and priority ordering.
	Name() string

	// FetchStations returns the provider's current stations.
	FetchStations(ctx context.Context) ([]Station, error)
}

// RequestRecorder records adapter call metrics.
type RequestRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// HealthRecorder tracks adapter success and failure.
type HealthRecorder interface {
	RecordSuccess(name string)
	RecordFailure(name string, err error)
}

// AggregatorConfig holds configuration for the aggregator.
type AggregatorConfig struct {
	// Adapters in priority order. When two stations fall within the dedup
	// threshold, the one from the earlier adapter survives.
	Adapters []Adapter

	// Logger for aggregation operations.
	Logger zerolog.Logger

	// AdapterTimeout bounds each adapter call (default: 10s).
	AdapterTimeout time.Duration

	// DedupThreshold is the lat/lng delta in degrees under which two
	// stations are considered the same place (default: 0.1).
	DedupThreshold float64

	// Synthetic generates the fallback catalogue (default: NewSyntheticGenerator).
	Synthetic *SyntheticGenerator

	// Metrics and Health are optional.
	Metrics RequestRecorder
	Health  HealthRecorder
}

// Aggregator fans out to all adapters, merges and deduplicates their
// results, and falls back to synthetic data when nothing comes back.
type Aggregator struct {
	adapters       []Adapter
	logger         zerolog.Logger
	adapterTimeout time.Duration
	dedupThreshold float64
	synthetic      *SyntheticGenerator
	metrics        RequestRecorder
	health         HealthRecorder
	tracer         trace.Tracer

	seq atomic.Uint64
}

// NewAggregator creates a new aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	timeout := cfg.AdapterTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	threshold := cfg.DedupThreshold
	if threshold == 0 {
		threshold = DefaultDedupThreshold
	}

	synthetic := cfg.Synthetic
	if synthetic == nil {
		synthetic = NewSyntheticGenerator(nil)
	}

	return &Aggregator{
		adapters:       cfg.Adapters,
		logger:         cfg.Logger,
		adapterTimeout: timeout,
		dedupThreshold: threshold,
		synthetic:      synthetic,
		metrics:        cfg.Metrics,
		health:         cfg.Health,
		tracer:         otel.Tracer(tracerName),
	}
}

// AdapterOutcome reports how one adapter fared in a cycle.
type AdapterOutcome struct {
	Adapter  string
	Stations int
	Duration time.Duration
	Err      error
}

// Cycle is the result of one aggregation pass.
type Cycle struct {
	// Seq increases monotonically per aggregator. Consumers use it to
	// discard results that land after a newer cycle.
	Seq       uint64
	Stations  []Station
	Outcomes  []AdapterOutcome
	Merged    int
	Synthetic bool
	FetchedAt time.Time
}

// AdapterNames returns adapter names in priority order.
func (a *Aggregator) AdapterNames() []string {
	names := make([]string, 0, len(a.adapters))
	for _, ad := range a.adapters {
		names = append(names, ad.Name())
	}
	return names
}

// FetchAllStations runs one cycle and returns its stations. It never fails:
// when every adapter errors or returns nothing the synthetic catalogue is
// returned instead.
func (a *Aggregator) FetchAllStations(ctx context.Context) []Station {
	return a.Fetch(ctx).Stations
}

// Fetch runs one aggregation cycle.
func (a *Aggregator) Fetch(ctx context.Context) *Cycle {
	seq := a.seq.Add(1)

	ctx, span := a.tracer.Start(ctx, "airquality.Aggregate",
		trace.WithAttributes(
			attribute.Int64("aggregation.seq", int64(seq)), //nolint:gosec // sequence fits
			attribute.Int("aggregation.adapters", len(a.adapters)),
		),
	)
	defer span.End()

	start := time.Now()
	results := make([][]Station, len(a.adapters))
	outcomes := make([]AdapterOutcome, len(a.adapters))

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()
			results[i], outcomes[i] = a.runAdapter(ctx, adapter)
		}(i, adapter)
	}
	wg.Wait()

	// Concatenate in declared order so dedup tie-breaks are deterministic.
	var merged []Station
	for _, r := range results {
		merged = append(merged, r...)
	}

	stations := Dedup(merged, a.dedupThreshold)

	cycle := &Cycle{
		Seq:       seq,
		Outcomes:  outcomes,
		Merged:    len(merged),
		FetchedAt: time.Now(),
	}

	if len(stations) == 0 {
		a.logger.Warn().
			Uint64("seq", seq).
			Int("adapters", len(a.adapters)).
			Msg("no live stations from any adapter, serving synthetic catalogue")
		stations = a.synthetic.Generate(cycle.FetchedAt)
		cycle.Synthetic = true
		span.SetAttributes(attribute.Bool("aggregation.synthetic", true))
	}
	cycle.Stations = stations

	span.SetAttributes(
		attribute.Int("aggregation.merged", len(merged)),
		attribute.Int("aggregation.stations", len(stations)),
	)

	a.logger.Info().
		Uint64("seq", seq).
		Int("merged", len(merged)).
		Int("stations", len(stations)).
		Bool("synthetic", cycle.Synthetic).
		Dur("duration", time.Since(start)).
		Msg("air quality aggregation completed")

	return cycle
}

// runAdapter calls one adapter under its own timeout. Errors and panics
// become an empty result so one broken provider cannot affect the others.
func (a *Aggregator) runAdapter(ctx context.Context, adapter Adapter) (stations []Station, outcome AdapterOutcome) {
	name := adapter.Name()
	outcome.Adapter = name

	ctx, cancel := context.WithTimeout(ctx, a.adapterTimeout)
	defer cancel()

	ctx, span := a.tracer.Start(ctx, "airquality.Adapter "+name,
		trace.WithAttributes(attribute.String("provider.name", name)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			stations = nil
			outcome.Err = fmt.Errorf("adapter %s panicked: %v", name, r)
			a.logger.Error().
				Str("adapter", name).
				Interface("panic", r).
				Msg("adapter panicked")
		}

		outcome.Duration = time.Since(start)
		outcome.Stations = len(stations)

		if outcome.Err != nil {
			span.SetStatus(codes.Error, outcome.Err.Error())
		}
		span.SetAttributes(attribute.Int("provider.stations", len(stations)))

		if a.metrics != nil {
			a.metrics.RecordRequest(name, "fetch_stations", outcome.Duration, outcome.Err)
		}
		if a.health != nil {
			if outcome.Err != nil {
				a.health.RecordFailure(name, outcome.Err)
			} else {
				a.health.RecordSuccess(name)
			}
		}
	}()

	result, err := adapter.FetchStations(ctx)
	if err != nil {
		outcome.Err = err
		a.logger.Warn().
			Err(err).
			Str("adapter", name).
			Msg("adapter fetch failed")
		return nil, outcome
	}

	a.logger.Debug().
		Str("adapter", name).
		Int("stations", len(result)).
		Msg("adapter fetch succeeded")

	return result, outcome
}
