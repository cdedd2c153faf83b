// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"sync"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

// Sink receives a session's progress events in emission order. Emit must
// never block: a slow or absent listener must not stall orchestration.
type Sink interface {
	Emit(ev types.Event)
}

type nopSink struct{}

func (nopSink) Emit(types.Event) {}

// Discard drops every event. Used for synchronous runs with no listener.
var Discard Sink = nopSink{}

// EventQueue is a bounded single-listener event buffer. When the listener
// falls behind until the buffer fills, or goes away, the queue disconnects:
// the channel is closed, later events are dropped, and the producing run
// continues unaffected.
type EventQueue struct {
	mu       sync.Mutex
	ch       chan types.Event
	detached bool
}

// NewEventQueue creates a queue buffering up to size events. Sizes below 1
// fall back to 1 so a queue can never block on its first event.
func NewEventQueue(size int) *EventQueue {
	if size < 1 {
		size = 1
	}
	return &EventQueue{ch: make(chan types.Event, size)}
}

// Emit enqueues ev, or disconnects the listener when the buffer is full.
func (q *EventQueue) Emit(ev types.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.detached {
		return
	}
	select {
	case q.ch <- ev:
	default:
		q.detached = true
		close(q.ch)
	}
}

// Events returns the delivery channel. It is closed when the run finishes
// or the listener is disconnected for falling behind.
func (q *EventQueue) Events() <-chan types.Event {
	return q.ch
}

// Close ends delivery after the final event. Safe to call more than once
// and after a disconnect.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.detached {
		return
	}
	q.detached = true
	close(q.ch)
}
