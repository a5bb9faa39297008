package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

const whenLayout = "Mon, 02 Jan 2006 15:04 MST"

// UserDirectory resolves email addresses for appointment parties.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*appointment.User, error)
}

// Dispatcher turns lifecycle events into emails.
type Dispatcher struct {
	users  UserDirectory
	mailer Mailer
	loc    *time.Location
}

func NewDispatcher(users UserDirectory, mailer Mailer, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{users: users, mailer: mailer, loc: loc}
}

// statusVerbs lists the transitions a client hears about.
var statusVerbs = map[appointment.Status]string{
	appointment.StatusConfirmed: "confirmed",
	appointment.StatusDeclined:  "declined",
	appointment.StatusCancelled: "cancelled",
	appointment.StatusCompleted: "completed",
}

// Handle sends the email for ev, if any.
func (d *Dispatcher) Handle(ctx context.Context, ev appointment.Event) error {
	if ev.Appointment == nil {
		return fmt.Errorf("event %s without appointment", ev.Type)
	}
	a := ev.Appointment

	msg, to, ok, err := d.compose(ev)
	if err != nil || !ok {
		return err
	}

	u, err := d.users.GetUser(ctx, to)
	if err != nil {
		return fmt.Errorf("resolve recipient %s for appointment %s: %w", to, a.ID, err)
	}
	msg.To = u.Email

	return d.mailer.Send(ctx, msg)
}

// compose builds the message and names its recipient.
func (d *Dispatcher) compose(ev appointment.Event) (Message, uuid.UUID, bool, error) {
	a := ev.Appointment
	when := a.ScheduledTime.In(d.loc).Format(whenLayout)

	switch ev.Type {
	case appointment.EventCreated:
		view := newAppointmentView{Client: a.Client.Name, Service: a.Service, When: when}
		if a.Notes != nil {
			view.Notes = *a.Notes
		}
		html, err := render(newAppointmentTmpl, view)
		if err != nil {
			return Message{}, uuid.Nil, false, err
		}
		return Message{Subject: "New appointment: " + a.Service, HTML: html}, a.ProfessionalID, true, nil

	case appointment.EventStatusChanged:
		verb, ok := statusVerbs[ev.NewStatus]
		if !ok {
			return Message{}, uuid.Nil, false, nil
		}
		html, err := render(statusTmpl, statusView{
			Professional: a.Professional.Name,
			Service:      a.Service,
			When:         when,
			Verb:         verb,
			RateInvite:   ev.NewStatus == appointment.StatusCompleted,
		})
		if err != nil {
			return Message{}, uuid.Nil, false, err
		}
		return Message{Subject: "Appointment " + verb, HTML: html}, a.ClientID, true, nil
	}

	return Message{}, uuid.Nil, false, fmt.Errorf("unknown event type %q", ev.Type)
}
