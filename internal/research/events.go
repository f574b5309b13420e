package research

import "time"

// EventType names a run progress event
type EventType string

const (
	EventRunStarted       EventType = "run_started"
	EventPlanReady        EventType = "plan_ready"
	EventStageStarted     EventType = "stage_started"
	EventStageCompleted   EventType = "stage_completed"
	EventSynthesisStarted EventType = "synthesis_started"
	EventRunCompleted     EventType = "run_completed"
	EventRunFailed        EventType = "run_failed"
)

// Event is a progress notification for one run
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"runId"`
	Stage     string    `json:"stage,omitempty"`
	Count     int       `json:"count,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives run events. Publish must not block the run.
type EventSink interface {
	Publish(ev Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(ev Event) { f(ev) }

type nopSink struct{}

func (nopSink) Publish(Event) {}

// MultiSink fans events out to several sinks
type MultiSink []EventSink

func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ev)
		}
	}
}
