// Package jobevents is an in-process publish/subscribe hub for Job
// state transitions, feeding the SSE stream described in spec.md §6
// (`/api/jobs/:id/stream`). There is no cross-process broker here: the
// Coordinator and the HTTP layer share one process, so a channel-based
// fan-out is the simplest correct design (the teacher's own
// distributed-eventbus code depends on github.com/nats-io/nats.go, which
// is not a real dependency of its go.mod — see DESIGN.md).
package jobevents

import (
	"context"
	"sync"
)

// EventType names the kind of Job transition an Event carries.
type EventType string

const (
	EventCreated  EventType = "created"
	EventProgress EventType = "progress"
	EventDone     EventType = "done"
	EventFailed   EventType = "failed"
)

// Event is one Job state transition, as published by internal/jobs and
// consumed by the SSE stream handler.
type Event struct {
	Type    EventType `json:"type"`
	JobID   string    `json:"job_id"`
	Status  string    `json:"status"`
	Current int       `json:"current,omitempty"`
	Total   int       `json:"total,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Bus fans out Events to subscribers of a given job ID.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan Event)}
}

// Publish sends event to every current subscriber of its JobID. Slow or
// absent subscribers never block a publish: the channel is buffered and
// a full channel silently drops the event, since a client that missed a
// progress tick can always poll GetJob for the latest snapshot.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	chans := append([]chan Event(nil), b.subs[event.JobID]...)
	b.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}

// ForJob returns an EventSource scoped to one job, suitable for passing
// to NewEventStreamHandler.
func (b *Bus) ForJob(jobID string) *jobSource {
	return &jobSource{bus: b, jobID: jobID}
}

func (b *Bus) subscribe(jobID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[jobID] = append(b.subs[jobID], ch)
	b.mu.Unlock()
	return ch
}

func (b *Bus) unsubscribe(jobID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[jobID]
	for i, s := range subs {
		if s == ch {
			b.subs[jobID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// jobSource adapts Bus to the EventSource interface NewEventStreamHandler
// expects, scoped to one job ID.
type jobSource struct {
	bus   *Bus
	jobID string
}

func (s *jobSource) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := s.bus.subscribe(s.jobID)
	go func() {
		<-ctx.Done()
		s.bus.unsubscribe(s.jobID, ch)
	}()
	return ch, nil
}
