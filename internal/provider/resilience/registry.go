package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HealthStatus summarises a provider's recent behaviour.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// UnhealthyAfter is the consecutive failure count at which a provider
// without a breaker is reported unhealthy.
const UnhealthyAfter = 3

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name                string
	Status              HealthStatus
	Circuit             string
	Successes           uint64
	Failures            uint64
	ConsecutiveFailures int
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time
	LastError           string
}

// Registry records outcomes per provider name. Providers are created on
// first use; Register attaches a client so breaker state is reported too.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerEntry
	now       func() time.Time
}

type providerEntry struct {
	client              *Client
	successes           uint64
	failures            uint64
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastError           string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*providerEntry),
		now:       time.Now,
	}
}

func (r *Registry) entry(name string) *providerEntry {
	e, ok := r.providers[name]
	if !ok {
		e = &providerEntry{}
		r.providers[name] = e
	}
	return e
}

// Register attaches a client to name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(name).client = client
}

// RecordSuccess records a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(name)
	e.successes++
	e.consecutiveFailures = 0
	e.lastSuccessAt = r.now()
}

// RecordFailure records a failed call.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(name)
	e.failures++
	e.consecutiveFailures++
	e.lastFailureAt = r.now()
	if err != nil {
		e.lastError = err.Error()
	}
}

// Health returns the view for name.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.providers[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return e.view(name), true
}

// Snapshot returns every provider sorted by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.providers))
	for name, e := range r.providers {
		out = append(out, e.view(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of known providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (e *providerEntry) view(name string) ProviderHealth {
	h := ProviderHealth{
		Name:                name,
		Successes:           e.successes,
		Failures:            e.failures,
		ConsecutiveFailures: e.consecutiveFailures,
		LastError:           e.lastError,
	}
	if !e.lastSuccessAt.IsZero() {
		t := e.lastSuccessAt
		h.LastSuccessAt = &t
	}
	if !e.lastFailureAt.IsZero() {
		t := e.lastFailureAt
		h.LastFailureAt = &t
	}

	var state gobreaker.State = -1
	if e.client != nil {
		state = e.client.BreakerState()
		h.Circuit = state.String()
	}

	switch {
	case state == gobreaker.StateOpen:
		h.Status = HealthUnhealthy
	case state == gobreaker.StateHalfOpen:
		h.Status = HealthDegraded
	case e.consecutiveFailures >= UnhealthyAfter:
		h.Status = HealthUnhealthy
	case e.consecutiveFailures > 0:
		h.Status = HealthDegraded
	case e.successes == 0:
		h.Status = HealthUnknown
	default:
		h.Status = HealthHealthy
	}
	return h
}
