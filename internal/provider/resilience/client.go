package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

var (
	// ErrCircuitOpen is returned without calling upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRateLimited is returned when the limiter wait cannot finish before
	// the context deadline.
	ErrRateLimited = errors.New("client rate limit wait exceeded deadline")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ClientConfig configures a provider client.
type ClientConfig struct {
	// Name labels the breaker, logs and errors.
	Name string

	// Timeout bounds a single attempt (default: 10s).
	Timeout time.Duration

	// MaxRetries after the first attempt (default: 2). Negative disables retries.
	MaxRetries int

	// InitialInterval and MaxInterval shape the exponential backoff
	// (defaults: 100ms and 2s).
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// RatePerSecond throttles outgoing attempts. Zero means unlimited.
	RatePerSecond float64
	Burst         int

	// Breaker overrides DefaultBreakerConfig.
	Breaker *BreakerConfig

	// UserAgent is sent on every request when set.
	UserAgent string

	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults used for provider clients.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig()
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
		Logger:          zerolog.Nop(),
	}
}

// Client is an HTTP client for one upstream provider.
type Client struct {
	name       string
	cfg        ClientConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a provider client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig()
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	c := &Client{
		name:       cfg.Name,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker[*http.Response](cfg.Name, breakerCfg), //nolint:bodyclose // type param
		logger:     cfg.Logger.With().Str("provider", cfg.Name).Logger(),
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do sends req through the limiter, breaker and retry loop. Transport
// errors, 5xx and 429 are retried; other responses are returned as-is and
// the caller must close the body. When retries run out on a retryable
// status the last response is returned without an error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	retries := uint64(0)
	if c.cfg.MaxRetries > 0 {
		retries = uint64(c.cfg.MaxRetries)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx)

	var last *http.Response
	attempt := 0

	op := func() error {
		attempt++
		if last != nil {
			_ = last.Body.Close()
			last = nil
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: %w", ErrRateLimited, err))
			}
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &StatusError{Provider: c.name, StatusCode: r.StatusCode}
			}
			return r, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			last = resp
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("provider request failed")
			return err
		}

		last = resp
		if resp.StatusCode == http.StatusTooManyRequests {
			return &StatusError{Provider: c.name, StatusCode: resp.StatusCode}
		}
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	return last, nil
}

// GetJSON fetches url and decodes a 200 response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{Provider: c.name, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// BreakerState returns the breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the breaker counters.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
