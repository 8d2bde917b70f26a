package worker

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/alerts"
)

// Observer turns a station list into alerts.
type Observer interface {
	Observe(stations []airquality.Station) []alerts.Alert
}

// AlertFeed feeds polled station lists to an Observer and logs the alerts
// it raises. Handle is meant to be passed to SetupRealTimeUpdates.
type AlertFeed struct {
	observer Observer
	logger   zerolog.Logger

	cycles atomic.Uint64
	raised atomic.Uint64
}

// NewAlertFeed creates an alert feed.
func NewAlertFeed(observer Observer, logger zerolog.Logger) *AlertFeed {
	return &AlertFeed{observer: observer, logger: logger}
}

// Handle evaluates one station list.
func (f *AlertFeed) Handle(stations []airquality.Station) {
	f.cycles.Add(1)

	raised := f.observer.Observe(stations)
	f.raised.Add(uint64(len(raised)))

	for _, a := range raised {
		event := f.logger.Info()
		switch a.Severity {
		case alerts.SeverityCritical:
			event = f.logger.Error()
		case alerts.SeverityWarning:
			event = f.logger.Warn()
		}
		event.
			Str("alert_id", a.ID).
			Str("cell", a.Cell).
			Str("station", a.StationName).
			Float64("aqi", a.Current).
			Str("severity", string(a.Severity)).
			Msg(a.Message)
	}
}

// Stats returns the number of station lists handled and alerts raised.
func (f *AlertFeed) Stats() (cycles, raised uint64) {
	return f.cycles.Load(), f.raised.Load()
}
