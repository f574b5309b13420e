package api

import "finresearch/internal/research"

// SSEEventSink adapts the SSEHub to the engine's EventSink
type SSEEventSink struct {
	hub *SSEHub
}

// NewSSEEventSink creates a sink that broadcasts run events over SSE
func NewSSEEventSink(hub *SSEHub) *SSEEventSink {
	return &SSEEventSink{hub: hub}
}

// Publish hands the event to the hub without blocking the run
func (s *SSEEventSink) Publish(ev research.Event) {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.Broadcast(ev)
}
