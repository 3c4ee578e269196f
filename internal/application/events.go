package application

import (
	"github.com/sawpanic/viralrisk/internal/config/versions"
	"github.com/sawpanic/viralrisk/internal/metrics"
)

// Listeners fans one event out to every non-nil listener in order
func Listeners(ls ...versions.Listener) versions.Listener {
	return func(ev versions.Event) {
		for _, l := range ls {
			if l != nil {
				l(ev)
			}
		}
	}
}

// MetricsListener records configuration events and tracks the active version
func MetricsListener(m *metrics.Registry) versions.Listener {
	return func(ev versions.Event) {
		m.RecordConfigEvent(string(ev.Type))
		switch ev.Type {
		case versions.EventPublished, versions.EventRolledBack:
			m.SetActiveVersion(ev.VersionID)
		}
	}
}
