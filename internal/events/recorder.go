package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Event is one message kept by a Recorder.
type Event struct {
	Subject string
	Data    []byte
}

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, subject string, id uuid.UUID) error {
	return r.PublishData(ctx, subject, id, []byte(id.String()))
}

func (r *Recorder) PublishData(_ context.Context, subject string, id uuid.UUID, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Subject: Subject(subject, id), Data: append([]byte(nil), data...)})
	return nil
}

func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Subject)
	}
	return out
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
