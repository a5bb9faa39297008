package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

type handlers struct {
	svc *appointment.Service
}

func requester(r *http.Request) appointment.Requester {
	id, _ := identityFrom(r.Context())
	return id.Requester
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	proID, err := uuid.Parse(req.ProfessionalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
		return
	}

	at, err := time.Parse(time.RFC3339Nano, req.ScheduledTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scheduled_time", "scheduled_time must be an RFC 3339 instant")
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), requester(r), appointment.CreateInput{
		ProfessionalID: proID,
		ScheduledTime:  at,
		Service:        req.Service,
		Notes:          req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointment(appt))
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	appt, err := h.svc.UpdateStatus(r.Context(), requester(r), id, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointment(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), requester(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointment(appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("bucket")
	if raw == "" {
		raw = string(appointment.BucketPending)
	}
	bucket, err := appointment.ParseBucket(raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// collect first so a failure mid-way still yields a proper error response
	out := []AppointmentResponse{}
	for appt, err := range h.svc.ListAppointments(r.Context(), requester(r), bucket) {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out = append(out, toAppointment(appt))
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req SubmitFeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	apptID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
		return
	}

	fb, err := h.svc.SubmitFeedback(r.Context(), requester(r), appointment.FeedbackInput{
		AppointmentID: apptID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeedback(*fb))
}

func (h *handlers) listProfessionals(w http.ResponseWriter, r *http.Request) {
	pros, err := h.svc.ListProfessionals(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]ProfessionalResponse, 0, len(pros))
	for _, p := range pros {
		out = append(out, ProfessionalResponse{
			ID:    p.ID,
			Name:  p.Name,
			Photo: p.Photo,
			Phone: p.Phone,
			City:  p.City,
			State: p.State,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) listProfessionalFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "id must be a valid UUID")
		return
	}

	list, err := h.svc.ListProfessionalFeedback(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]FeedbackDetailResponse, 0, len(list))
	for _, fd := range list {
		out = append(out, FeedbackDetailResponse{
			FeedbackResponse: toFeedback(fd.Feedback),
			Client:           toParty(fd.Client),
			Service:          fd.Service,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) monthlyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caller := requester(r)

	var proID uuid.UUID
	switch raw := q.Get("professional_id"); {
	case raw != "":
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		proID = id
	case caller.Role == appointment.RoleProfessional:
		proID = caller.ID
	default:
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id is required")
		return
	}

	monthsBack := 0
	if raw := q.Get("months_back"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_months_back", "months_back must be an integer")
			return
		}
		monthsBack = n
	}

	counts, err := h.svc.MonthlyCompletedCounts(r.Context(), proID, monthsBack)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]MonthCountResponse, len(counts))
	for i, c := range counts {
		out[i] = MonthCountResponse{Month: c.Label, Count: c.Count}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) periodSummary(w http.ResponseWriter, r *http.Request) {
	// an absent parameter is not text and falls back to today
	var period any
	if q := r.URL.Query(); q.Has("period") {
		period = q.Get("period")
	}

	s, err := h.svc.PeriodSummary(r.Context(), period)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		Period:    string(s.Period),
		Since:     s.Since,
		Until:     s.Until,
		Logins:    s.Logins,
		Created:   s.Created,
		Pending:   s.Pending,
		Completed: s.Completed,
		Cancelled: s.Cancelled,
		Declined:  s.Declined,
	})
}
