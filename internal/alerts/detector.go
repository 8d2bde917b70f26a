// Package alerts detects significant AQI changes between polling cycles.
// Readings are compared per geohash cell rather than per station ID, since
// provider IDs are not stable across cycles.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Thresholds on the 0-500 scale.
const (
	UnhealthyThreshold     = 150
	VeryUnhealthyThreshold = 200
	ImprovedThreshold      = 100
	SharpRise              = 50
	SignificantDrop        = 30
)

// Alert is one detected change.
type Alert struct {
	ID          string
	Cell        string
	StationID   string
	StationName string
	Lat         float64
	Lng         float64
	Previous    float64
	HasPrevious bool
	Current     float64
	Severity    Severity
	Message     string
	CreatedAt   time.Time
}

// Config holds configuration for the detector.
type Config struct {
	// Precision is the geohash length used for cells (default: 5, about 5 km).
	Precision uint

	// MaxAlerts retained for Recent (default: 20).
	MaxAlerts int

	Logger zerolog.Logger
	Now    func() time.Time
}

// Detector compares each cycle's readings with the previous cycle's.
type Detector struct {
	precision uint
	maxAlerts int
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	previous map[string]float64
	recent   []Alert
}

// NewDetector creates a detector.
func NewDetector(cfg Config) *Detector {
	if cfg.Precision == 0 {
		cfg.Precision = 5
	}
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Detector{
		precision: cfg.Precision,
		maxAlerts: cfg.MaxAlerts,
		logger:    cfg.Logger,
		now:       cfg.Now,
		previous:  make(map[string]float64),
	}
}

// Cell returns the geohash cell of a coordinate.
func (d *Detector) Cell(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, d.precision)
}

// Observe evaluates one cycle and returns the alerts it raised. Synthetic
// stations are ignored. The previous-value map is replaced by this
// cycle's cells, so cells that disappear are forgotten.
func (d *Detector) Observe(stations []airquality.Station) []Alert {
	current := make(map[string]airquality.Station)
	order := make([]string, 0, len(stations))
	for _, s := range stations {
		if s.IsSynthetic() {
			continue
		}
		cell := d.Cell(s.Lat, s.Lng)
		existing, ok := current[cell]
		if !ok {
			order = append(order, cell)
		}
		if !ok || s.AQI > existing.AQI {
			current[cell] = s
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var raised []Alert
	next := make(map[string]float64, len(current))

	for _, cell := range order {
		s := current[cell]
		next[cell] = s.AQI

		prev, hasPrev := d.previous[cell]
		severity, message, ok := Evaluate(prev, hasPrev, s.AQI)
		if !ok {
			continue
		}

		raised = append(raised, Alert{
			ID:          uuid.NewString(),
			Cell:        cell,
			StationID:   s.ID,
			StationName: s.Name,
			Lat:         s.Lat,
			Lng:         s.Lng,
			Previous:    prev,
			HasPrevious: hasPrev,
			Current:     s.AQI,
			Severity:    severity,
			Message:     fmt.Sprintf("%s: %s", s.Name, message),
			CreatedAt:   now,
		})
	}
	d.previous = next

	// Newest first, capped.
	d.recent = append(reverse(raised), d.recent...)
	if len(d.recent) > d.maxAlerts {
		d.recent = d.recent[:d.maxAlerts]
	}

	if len(raised) > 0 {
		d.logger.Info().
			Int("alerts", len(raised)).
			Int("cells", len(next)).
			Msg("air quality alerts raised")
	}
	return raised
}

// Recent returns retained alerts, newest first.
func (d *Detector) Recent() []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Alert, len(d.recent))
	copy(out, d.recent)
	return out
}

// TrackedCells returns how many cells carry a previous value.
func (d *Detector) TrackedCells() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.previous)
}

// Evaluate applies the change rules to one cell.
func Evaluate(prev float64, hasPrev bool, cur float64) (Severity, string, bool) {
	if !hasPrev {
		if cur >= UnhealthyThreshold {
			return severityFor(cur), fmt.Sprintf("AQI is %.0f (%s)", cur, airquality.StatusFor(cur)), true
		}
		return "", "", false
	}

	switch {
	case cur-prev > SharpRise || (prev < UnhealthyThreshold && cur >= UnhealthyThreshold):
		return severityFor(cur), fmt.Sprintf("AQI rose from %.0f to %.0f", prev, cur), true
	case prev < VeryUnhealthyThreshold && cur >= VeryUnhealthyThreshold:
		return SeverityCritical, fmt.Sprintf("AQI reached %.0f (%s)", cur, airquality.StatusFor(cur)), true
	case prev-cur > SignificantDrop && cur <= ImprovedThreshold:
		return SeverityInfo, fmt.Sprintf("AQI improved from %.0f to %.0f", prev, cur), true
	}
	return "", "", false
}

func severityFor(aqi float64) Severity {
	if aqi >= VeryUnhealthyThreshold {
		return SeverityCritical
	}
	return SeverityWarning
}

func reverse(alerts []Alert) []Alert {
	out := make([]Alert, len(alerts))
	for i, a := range alerts {
		out[len(alerts)-1-i] = a
	}
	return out
}
