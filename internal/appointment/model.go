package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is fixed when a user is created.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleClient
	RoleProfessional
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleProfessional:
		return "professional"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "client":
		return RoleClient, nil
	case "professional":
		return RoleProfessional, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Photo     *string
	Phone     *string
	City      *string
	State     *string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Party is the denormalized summary of a participant.
type Party struct {
	ID    uuid.UUID
	Name  string
	Photo *string
}

// Requester is the authenticated caller of a Service operation.
type Requester struct {
	ID   uuid.UUID
	Role Role
}

type Appointment struct {
	ID             uuid.UUID
	ClientID       uuid.UUID
	ProfessionalID uuid.UUID
	ScheduledTime  time.Time
	Service        string
	Notes          *string
	Status         Status
	Rated          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type AppointmentDetail struct {
	Appointment
	Client       Party
	Professional Party
	Feedback     *Feedback
}

type Feedback struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	ClientID       uuid.UUID
	ProfessionalID uuid.UUID
	Rating         int
	Comment        *string
	CreatedAt      time.Time
}

// FeedbackDetail is a feedback as listed on a professional's profile.
type FeedbackDetail struct {
	Feedback
	Client  Party
	Service string
}

// NormalizeInstant maps t to the precision the stores keep, in UTC.
// Two requests collide exactly when their normalized instants are equal.
func NormalizeInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// wholeMicros reports whether t survives NormalizeInstant unchanged apart
// from its zone.
func wholeMicros(t time.Time) bool {
	return t.Nanosecond()%int(time.Microsecond) == 0
}
