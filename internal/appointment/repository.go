package appointment

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

type NewAppointment struct {
	ID             uuid.UUID
	ClientID       uuid.UUID
	ProfessionalID uuid.UUID
	ScheduledTime  time.Time
	Service        string
	Notes          *string
	CreatedAt      time.Time
}

type NewFeedback struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ClientID      uuid.UUID
	Rating        int
	Comment       *string
	CreatedAt     time.Time
}

// ListQuery selects appointments where UserID is client or professional.
type ListQuery struct {
	UserID     uuid.UUID
	Statuses   []Status
	Descending bool
}

// Activity counts what happened in a time window.
type Activity struct {
	Logins    int
	Created   int
	Pending   int
	Completed int
	Cancelled int
	Declined  int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u User) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListProfessionals(ctx context.Context) ([]User, error)
	RecordLogin(ctx context.Context, userID uuid.UUID, issuedAt, recordedAt time.Time) error

	// InsertAppointment is the atomic slot reservation. It fails with
	// ErrSlotTaken when an active appointment already holds the slot.
	InsertAppointment(ctx context.Context, a NewAppointment) (*AppointmentDetail, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetAppointmentDetail includes the feedback when one exists.
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	// UpdateAppointmentStatus changes status only if it still equals from.
	// A mismatch is reported as ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, q ListQuery) iter.Seq2[*AppointmentDetail, error]

	// CreateFeedback inserts the feedback and sets the appointment's rated
	// flag in one transaction.
	CreateFeedback(ctx context.Context, f NewFeedback) (*Feedback, error)
	ListFeedbackByProfessional(ctx context.Context, professionalID uuid.UUID) ([]FeedbackDetail, error)

	// Stats
	ListCompletedTimes(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]time.Time, error)
	CountActivity(ctx context.Context, from, to time.Time) (*Activity, error)
}
