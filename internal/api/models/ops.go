package models

// Health is the liveness and readiness body.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus reports providers, cache and polling.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
	Cache      CacheStatus       `json:"cache"`
	Polling    PollingStatus     `json:"polling"`

	// ActiveDegradationFlags names fallbacks currently in effect, such as
	// SYNTHETIC_STATIONS.
	ActiveDegradationFlags []string `json:"activeDegradationFlags,omitempty"`
}

// SubsystemStatus is the status of an internal component.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus is the status of one upstream provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	Circuit             string       `json:"circuit,omitempty"`
	Successes           uint64       `json:"successes"`
	Failures            uint64       `json:"failures"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}

// CacheStatus summarises the response cache.
type CacheStatus struct {
	Entries      int    `json:"entries"`
	FreshEntries int    `json:"freshEntries"`
	TTL          string `json:"ttl"`
}

// PollingStatus summarises the scheduler.
type PollingStatus struct {
	Interval      string     `json:"interval"`
	Subscriptions int        `json:"subscriptions"`
	Ticks         uint64     `json:"ticks"`
	Failures      uint64     `json:"failures"`
	LastCycleSeq  uint64     `json:"lastCycleSeq,omitempty"`
	LastCycleAt   *Timestamp `json:"lastCycleAt,omitempty"`
}
