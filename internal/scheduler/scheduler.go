// Package scheduler polls station data on a fixed interval and pushes
// every result to its subscribers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

// DefaultInterval is long enough to stay inside provider rate limits.
const DefaultInterval = 15 * time.Minute

// FetchFunc returns the current station list.
type FetchFunc func(ctx context.Context) ([]airquality.Station, error)

// Callback receives the full station list on every tick.
type Callback func(stations []airquality.Station)

// Config holds configuration for the scheduler.
type Config struct {
	Fetch FetchFunc

	// Interval between ticks (default: 15m). Rounded to whole seconds, minimum 1s.
	Interval time.Duration

	// TickTimeout bounds one fetch (default: 1m).
	TickTimeout time.Duration

	Logger zerolog.Logger
}

// Scheduler runs one cron entry per subscription.
type Scheduler struct {
	fetch       FetchFunc
	interval    time.Duration
	tickTimeout time.Duration
	logger      zerolog.Logger
	cron        *cron.Cron

	mu   sync.Mutex
	subs map[string]*subscription

	ticks    atomic.Uint64
	failures atomic.Uint64
}

type subscription struct {
	id       string
	callback Callback
	entry    cron.EntryID
	stopped  atomic.Bool
}

// New creates a scheduler. Call Start to begin ticking.
func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < time.Second {
		interval = time.Second
	}
	tickTimeout := cfg.TickTimeout
	if tickTimeout <= 0 {
		tickTimeout = time.Minute
	}

	cronLogger := cronLogAdapter{logger: cfg.Logger}

	return &Scheduler{
		fetch:       cfg.Fetch,
		interval:    interval,
		tickTimeout: tickTimeout,
		logger:      cfg.Logger,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		subs: make(map[string]*subscription),
	}
}

// Start begins running scheduled ticks.
func (s *Scheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	s.cron.Start()
}

// Stop halts the schedule. The returned context is done once running
// ticks have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info().Msg("scheduler stopping")
	return s.cron.Stop()
}

// Interval returns the effective tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Subscribe delivers one fetch immediately and then one per interval until
// the returned function is called. Unsubscribe is idempotent and affects
// only this subscription.
func (s *Scheduler) Subscribe(cb Callback) (unsubscribe func()) {
	sub := &subscription{
		id:       uuid.NewString(),
		callback: cb,
	}

	entry := s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.tick(sub)
	}))
	sub.entry = entry

	s.mu.Lock()
	s.subs[sub.id] = sub
	s.mu.Unlock()

	s.logger.Debug().Str("subscription", sub.id).Msg("subscribed")

	go s.tick(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.stopped.Store(true)
			s.cron.Remove(sub.entry)

			s.mu.Lock()
			delete(s.subs, sub.id)
			s.mu.Unlock()

			s.logger.Debug().Str("subscription", sub.id).Msg("unsubscribed")
		})
	}
}

// Subscriptions returns the number of active subscriptions.
func (s *Scheduler) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Trigger fetches once and delivers to every active subscriber.
func (s *Scheduler) Trigger(ctx context.Context) error {
	stations, err := s.fetchOnce(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.deliver(sub, stations)
	}
	return nil
}

// Stats reports tick and failure counts since start.
func (s *Scheduler) Stats() (ticks, failures uint64) {
	return s.ticks.Load(), s.failures.Load()
}

// tick is one fetch-and-deliver for a single subscription. Failures are
// logged and the schedule continues.
func (s *Scheduler) tick(sub *subscription) {
	if sub.stopped.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
	defer cancel()

	stations, err := s.fetchOnce(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription", sub.id).Msg("scheduled fetch failed")
		return
	}
	s.deliver(sub, stations)
}

func (s *Scheduler) fetchOnce(ctx context.Context) (stations []airquality.Station, err error) {
	s.ticks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
		if err != nil {
			s.failures.Add(1)
		}
	}()
	return s.fetch(ctx)
}

func (s *Scheduler) deliver(sub *subscription, stations []airquality.Station) {
	if sub.stopped.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("subscription", sub.id).
				Interface("panic", r).
				Msg("subscriber callback panicked")
		}
	}()
	sub.callback(stations)
}

// cronLogAdapter routes cron's logging into zerolog.
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
