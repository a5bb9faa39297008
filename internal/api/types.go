package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

type CreateAppointmentRequest struct {
	ProfessionalID string  `json:"professional_id"`
	ScheduledTime  string  `json:"scheduled_time"` // RFC 3339 instant
	Service        string  `json:"service"`
	Notes          *string `json:"notes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type SubmitFeedbackRequest struct {
	AppointmentID string  `json:"appointment_id"`
	Rating        int     `json:"rating"`
	Comment       *string `json:"comment"`
}

type PartyResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Photo *string   `json:"photo"`
}

type FeedbackResponse struct {
	ID             uuid.UUID `json:"id"`
	AppointmentID  uuid.UUID `json:"appointment_id"`
	ClientID       uuid.UUID `json:"client_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Rating         int       `json:"rating"`
	Comment        *string   `json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
}

type FeedbackDetailResponse struct {
	FeedbackResponse
	Client  PartyResponse `json:"client"`
	Service string        `json:"service"`
}

type AppointmentResponse struct {
	ID             uuid.UUID         `json:"id"`
	ClientID       uuid.UUID         `json:"client_id"`
	ProfessionalID uuid.UUID         `json:"professional_id"`
	ScheduledTime  time.Time         `json:"scheduled_time"`
	Service        string            `json:"service"`
	Notes          *string           `json:"notes"`
	Status         string            `json:"status"`
	Rated          bool              `json:"rated"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Client         PartyResponse     `json:"client"`
	Professional   PartyResponse     `json:"professional"`
	Feedback       *FeedbackResponse `json:"feedback,omitempty"`
}

type ProfessionalResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Photo *string   `json:"photo"`
	Phone *string   `json:"phone"`
	City  *string   `json:"city"`
	State *string   `json:"state"`
}

type MonthCountResponse struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type SummaryResponse struct {
	Period    string    `json:"period"`
	Since     time.Time `json:"since"`
	Until     time.Time `json:"until"`
	Logins    int       `json:"logins"`
	Created   int       `json:"created"`
	Pending   int       `json:"pending"`
	Completed int       `json:"completed"`
	Cancelled int       `json:"cancelled"`
	Declined  int       `json:"declined"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toParty(p appointment.Party) PartyResponse {
	return PartyResponse{ID: p.ID, Name: p.Name, Photo: p.Photo}
}

func toFeedback(f appointment.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:             f.ID,
		AppointmentID:  f.AppointmentID,
		ClientID:       f.ClientID,
		ProfessionalID: f.ProfessionalID,
		Rating:         f.Rating,
		Comment:        f.Comment,
		CreatedAt:      f.CreatedAt,
	}
}

func toAppointment(d *appointment.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             d.ID,
		ClientID:       d.ClientID,
		ProfessionalID: d.ProfessionalID,
		ScheduledTime:  d.ScheduledTime,
		Service:        d.Service,
		Notes:          d.Notes,
		Status:         string(d.Status),
		Rated:          d.Rated,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Client:         toParty(d.Client),
		Professional:   toParty(d.Professional),
	}
	if d.Feedback != nil {
		fb := toFeedback(*d.Feedback)
		resp.Feedback = &fb
	}
	return resp
}
