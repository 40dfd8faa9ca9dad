package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/directory"
	"github.com/hackgods/hospital-scheduling/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "forbidden", "actor may not perform this operation")
}

// handleError maps domain errors to HTTP statuses. Anything unrecognised is
// an internal error and its text is not echoed to the client.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, availability.ErrWindowNotFound):
		writeError(w, http.StatusNotFound, "window_not_found", err.Error())
	case errors.Is(err, availability.ErrInvalidWindow):
		writeError(w, http.StatusUnprocessableEntity, "invalid_window", err.Error())
	case errors.Is(err, scheduling.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "doctor_busy", err.Error())
	default:
		loggerFrom(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
