package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed err=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("could not parse JSON: %w", err)
	}
	return nil
}

// serviceErrors is checked in order, most specific first.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{appointment.ErrSlotTaken, http.StatusConflict, "slot_already_booked"},
	{appointment.ErrFeedbackExists, http.StatusConflict, "feedback_exists"},
	{appointment.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{appointment.ErrProfessionalNotFound, http.StatusNotFound, "professional_not_found"},
	{appointment.ErrClientNotFound, http.StatusNotFound, "client_not_found"},
	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{appointment.ErrNotRateable, http.StatusNotFound, "appointment_not_rateable"},

	{appointment.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{appointment.ErrNotFound, http.StatusNotFound, "not_found"},
	{appointment.ErrForbidden, http.StatusForbidden, "forbidden"},
	{appointment.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition"},
	{appointment.ErrConflict, http.StatusConflict, "conflict"},
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			writeError(w, se.status, se.code, err.Error())
			return
		}
	}

	log.Printf("request failed request_id=%s err=%v", GetRequestID(r.Context()), err)
	if appointment.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "dependency_unavailable", "a backing service is unavailable, retry shortly")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
}
