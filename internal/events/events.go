// Package events delivers orchestrator progress events to sinks.
//
// The orchestrator calls a single ProgressCallback; Callback fans each event
// out to every configured Sink in order. Sinks must not block for long since
// the orchestrator serializes callback invocations.
package events

import (
	"github.com/fyrsmithlabs/recur/internal/orchestrator"
)

// Sink receives progress events.
type Sink interface {
	Handle(ev orchestrator.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev orchestrator.Event)

// Handle calls f.
func (f SinkFunc) Handle(ev orchestrator.Event) {
	f(ev)
}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

// Handle forwards ev to each sink.
func (f Fanout) Handle(ev orchestrator.Event) {
	for _, s := range f {
		s.Handle(ev)
	}
}

// Callback returns a ProgressCallback that forwards to sinks. Nil sinks are
// skipped. With no sinks it returns nil.
func Callback(sinks ...Sink) orchestrator.ProgressCallback {
	var f Fanout
	for _, s := range sinks {
		if s != nil {
			f = append(f, s)
		}
	}
	if len(f) == 0 {
		return nil
	}
	return f.Handle
}
