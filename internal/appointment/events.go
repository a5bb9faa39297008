package appointment

import (
	"context"
	"time"
)

type EventType string

const (
	EventCreated       EventType = "appointment.created"
	EventStatusChanged EventType = "appointment.status_changed"
)

// Event is a lifecycle fact handed to the notification side.
type Event struct {
	Type        EventType          `json:"type"`
	Appointment *AppointmentDetail `json:"appointment"`
	OldStatus   Status             `json:"old_status,omitempty"`
	NewStatus   Status             `json:"new_status,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// Emitter delivers events. The service never waits on it.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, Event) error { return nil }
