package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/auth"
	"github.com/hackgods/hospital-scheduling/internal/scheduling"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFrom(r.Context())
		if !ok {
			forbidden(w)
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		instant, err := time.Parse(time.RFC3339, req.Instant)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_instant", "instant must be an RFC3339 timestamp")
			return
		}

		// Patients book only for themselves.
		if !actor.CanActForPatient(patientID) {
			forbidden(w)
			return
		}

		appt, err := svc.BookAppointment(r.Context(), actor, doctorID, patientID, instant)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}

		if !actor.CanActForPatient(appt.PatientID) && !actor.CanActForDoctor(appt.DoctorID) {
			forbidden(w)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func updateStatusHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if !canChangeStatus(actor, *appt, status) {
			forbidden(w)
			return
		}

		updated, err := svc.ChangeStatus(r.Context(), actor, id, status)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*updated))
	}
}

// canChangeStatus: doctors drive their own appointments, patients may only
// cancel their own.
func canChangeStatus(actor auth.Actor, a appointment.Appointment, to appointment.Status) bool {
	if actor.CanActForDoctor(a.DoctorID) {
		return true
	}
	return to == appointment.StatusCancelled && actor.CanActForPatient(a.PatientID)
}

func listDoctorAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}
		if !actor.CanActForDoctor(doctorID) {
			forbidden(w)
			return
		}

		from := startOfDay(time.Now(), svc.Location())
		to := from.AddDate(0, 0, 7)
		var err error
		if v := r.URL.Query().Get("from"); v != "" {
			if from, err = time.Parse(time.RFC3339, v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be an RFC3339 timestamp")
				return
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if to, err = time.Parse(time.RFC3339, v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be an RFC3339 timestamp")
				return
			}
		}

		appts, err := svc.ListByDoctor(r.Context(), doctorID, from, to)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func listPatientAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient id must be a valid UUID")
			return
		}
		if !actor.CanActForPatient(patientID) {
			forbidden(w)
			return
		}

		limit := queryInt(r, "limit", defaultPageSize)
		if limit <= 0 || limit > maxPageSize {
			limit = defaultPageSize
		}
		offset := queryInt(r, "offset", 0)
		if offset < 0 {
			offset = 0
		}

		appts, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func listSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		raw := r.URL.Query().Get("date")
		date, err := time.ParseInLocation(dateLayout, raw, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Date:     date.Format(dateLayout),
			Slots:    toSlotResponses(slots),
		})
	}
}

func isFreeHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		instant, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_instant", "at must be an RFC3339 timestamp")
			return
		}

		free, err := svc.IsFree(r.Context(), doctorID, instant)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, FreeResponse{DoctorID: doctorID, Instant: instant, Free: free})
	}
}

// Helpers

func doctorIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
