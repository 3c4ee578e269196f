package versions

import "time"

// EventType names a configuration lifecycle change
type EventType string

const (
	EventPublished     EventType = "config.published"
	EventRolledBack    EventType = "config.rolled_back"
	EventABTestStarted EventType = "abtest.started"
	EventABTestStopped EventType = "abtest.stopped"
)

// Event is emitted after a successful configuration write
type Event struct {
	Type      EventType `json:"type"`
	VersionID string    `json:"versionId,omitempty"`
	TestID    string    `json:"testId,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
}

// Listener receives events synchronously; it must not block
type Listener func(Event)
