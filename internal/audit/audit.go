// Package audit records security-relevant events: template lifecycle changes,
// liveness checks and authentication attempts. Events fan out to any number
// of sinks; a failing sink never fails the operation that emitted the event.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"biogate/internal/biometric/ports"
)

// Event is one recorded audit entry.
type Event struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Fields     map[string]any `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func newEvent(action string, fields map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Action:     action,
		Fields:     fields,
		OccurredAt: time.Now().UTC(),
	}
}

// Fanout emits every event to all given sinks, joining their errors.
type Fanout []ports.AuditPublisher

func (f Fanout) Emit(ctx context.Context, action string, fields map[string]any) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Emit(ctx, action, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultRecorderCapacity bounds the in-memory event buffer.
const DefaultRecorderCapacity = 1024

// Recorder keeps recent events in memory. Used in tests and as the fallback
// sink when no broker is configured; oldest events are dropped at capacity.
type Recorder struct {
	mu       sync.RWMutex
	capacity int
	events   []Event
}

func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	return &Recorder{capacity: capacity}
}

func (r *Recorder) Emit(_ context.Context, action string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, newEvent(action, fields))
	if len(r.events) > r.capacity {
		r.events = r.events[len(r.events)-r.capacity:]
	}
	return nil
}

// Events returns a copy of the buffered events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}
