package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/vayuwatch/vayuwatch/internal/api/models"
	"github.com/vayuwatch/vayuwatch/internal/api/response"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
)

// Degradation flags reported by SystemStatus.
const (
	FlagSyntheticStations = "SYNTHETIC_STATIONS"
	FlagProvidersDown     = "PROVIDERS_DOWN"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	service   AirQualityService
	providers ProviderHealthSource
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, service AirQualityService, providers ProviderHealthSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		service:   service,
		providers: providers,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service can always answer
// from the synthetic fallback, so it is ready as long as adapters are wired.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"adapters": st.Adapters,
		},
	}
	if len(st.Adapters) == 0 {
		health.Status = models.HealthStatusDegraded
		health.Details["reason"] = "no live adapters configured, serving synthetic data only"
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider, cache and polling status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()

	body := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Cache: models.CacheStatus{
			Entries:      st.Cache.Entries,
			FreshEntries: st.Cache.FreshEntries,
			TTL:          st.Cache.TTL.String(),
		},
		Polling: models.PollingStatus{
			Interval:      st.PollInterval.String(),
			Subscriptions: st.Subscriptions,
			Ticks:         st.Ticks,
			Failures:      st.TickFailures,
		},
		Subsystems: []models.SubsystemStatus{
			{Name: "cache", Status: models.HealthStatusOK},
			{Name: "scheduler", Status: models.HealthStatusOK},
		},
		Providers: []models.ProviderStatus{},
	}

	if st.LastCycle != nil {
		body.Polling.LastCycleSeq = st.LastCycle.Seq
		at := models.Timestamp(st.LastCycle.FetchedAt)
		body.Polling.LastCycleAt = &at
		if st.LastCycle.Synthetic {
			body.ActiveDegradationFlags = append(body.ActiveDegradationFlags, FlagSyntheticStations)
		}
	}
	if st.TickFailures > 0 && st.TickFailures == st.Ticks {
		detail := fmt.Sprintf("all %d polls failed", st.Ticks)
		body.Subsystems[1] = models.SubsystemStatus{Name: "scheduler", Status: models.HealthStatusFail, Detail: &detail}
	}

	failed := 0
	for _, p := range h.providers.Snapshot() {
		ps := models.ProviderStatus{
			Provider:            p.Name,
			Status:              providerStatus(p.Status),
			Circuit:             p.Circuit,
			Successes:           p.Successes,
			Failures:            p.Failures,
			ConsecutiveFailures: p.ConsecutiveFailures,
			LastSuccessAt:       models.TimestampPtr(p.LastSuccessAt),
			LastFailureAt:       models.TimestampPtr(p.LastFailureAt),
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		if ps.Status == models.HealthStatusFail {
			failed++
		}
		body.Providers = append(body.Providers, ps)
	}

	if failed > 0 && failed == len(body.Providers) {
		body.ActiveDegradationFlags = append(body.ActiveDegradationFlags, FlagProvidersDown)
	}
	if len(body.ActiveDegradationFlags) > 0 || failed > 0 {
		body.Status = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, body)
}

func providerStatus(s resilience.HealthStatus) models.HealthStatus {
	switch s {
	case resilience.HealthUnhealthy:
		return models.HealthStatusFail
	case resilience.HealthDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
