package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/auth"
	"github.com/hackgods/hospital-scheduling/internal/availability"
)

func createWindowHandler(svc *availability.Service, defaultSlotMinutes int) http.HandlerFunc {
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

		var req WindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		win := availability.Window{
			DoctorID:            doctorID,
			Start:               req.Start,
			End:                 req.End,
			SlotDurationMinutes: defaultSlotMinutes,
			BreakStart:          req.BreakStart,
			BreakEnd:            req.BreakEnd,
		}
		if req.SlotDurationMinutes != nil {
			win.SlotDurationMinutes = *req.SlotDurationMinutes
		}

		switch {
		case req.SpecificDate != "" && req.DayOfWeek != "":
			writeError(w, http.StatusBadRequest, "invalid_window_day", "set either day_of_week or specific_date, not both")
			return
		case req.SpecificDate != "":
			d, err := time.Parse(dateLayout, req.SpecificDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_specific_date", "specific_date must be YYYY-MM-DD")
				return
			}
			win.SpecificDate = &d
		default:
			day, err := parseWeekday(req.DayOfWeek)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_day_of_week", err.Error())
				return
			}
			win.DayOfWeek = day
		}

		created, err := svc.CreateWindow(r.Context(), win)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWindowResponse(*created))
	}
}

func createBulkWindowsHandler(svc *availability.Service, defaultSlotMinutes int) http.HandlerFunc {
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

		var req BulkWindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		days := make([]time.Weekday, 0, len(req.Days))
		for _, raw := range req.Days {
			day, err := parseWeekday(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_day_of_week", err.Error())
				return
			}
			days = append(days, day)
		}

		tmpl := availability.Window{
			Start:               req.Start,
			End:                 req.End,
			SlotDurationMinutes: defaultSlotMinutes,
			BreakStart:          req.BreakStart,
			BreakEnd:            req.BreakEnd,
		}
		if req.SlotDurationMinutes != nil {
			tmpl.SlotDurationMinutes = *req.SlotDurationMinutes
		}

		created, err := svc.CreateBulk(r.Context(), doctorID, days, tmpl)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWindowResponses(created))
	}
}

func listWindowsHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		windows, err := svc.ListWindows(r.Context(), doctorID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toWindowResponses(windows))
	}
}

func updateWindowHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		id, ok := windowIDParam(w, r)
		if !ok {
			return
		}

		var req WindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		current, err := svc.GetWindow(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if !actor.CanActForDoctor(current.DoctorID) {
			forbidden(w)
			return
		}

		upd := availability.Window{
			Start:               req.Start,
			End:                 req.End,
			SlotDurationMinutes: current.SlotDurationMinutes,
			BreakStart:          req.BreakStart,
			BreakEnd:            req.BreakEnd,
			Active:              current.Active,
		}
		if req.SlotDurationMinutes != nil {
			upd.SlotDurationMinutes = *req.SlotDurationMinutes
		}
		if req.Active != nil {
			upd.Active = *req.Active
		}

		updated, err := svc.UpdateWindow(r.Context(), id, upd)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toWindowResponse(*updated))
	}
}

func deactivateWindowHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		id, ok := windowIDParam(w, r)
		if !ok {
			return
		}

		current, err := svc.GetWindow(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if !actor.CanActForDoctor(current.DoctorID) {
			forbidden(w)
			return
		}

		if err := svc.DeactivateWindow(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func availableDaysHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		days, err := svc.AvailableDays(r.Context(), doctorID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, strings.ToUpper(d.String()))
		}
		writeJSON(w, http.StatusOK, DaysResponse{DoctorID: doctorID, Days: names})
	}
}

func windowIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_window_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
