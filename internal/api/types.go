package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/scheduling"
)

const dateLayout = "2006-01-02"

// Windows

type WindowRequest struct {
	DayOfWeek           string                  `json:"day_of_week,omitempty"`
	SpecificDate        string                  `json:"specific_date,omitempty"`
	Start               availability.ClockTime  `json:"start"`
	End                 availability.ClockTime  `json:"end"`
	SlotDurationMinutes *int                    `json:"slot_duration_minutes,omitempty"`
	BreakStart          *availability.ClockTime `json:"break_start,omitempty"`
	BreakEnd            *availability.ClockTime `json:"break_end,omitempty"`
	Active              *bool                   `json:"active,omitempty"`
}

type BulkWindowRequest struct {
	Days                []string                `json:"days"`
	Start               availability.ClockTime  `json:"start"`
	End                 availability.ClockTime  `json:"end"`
	SlotDurationMinutes *int                    `json:"slot_duration_minutes,omitempty"`
	BreakStart          *availability.ClockTime `json:"break_start,omitempty"`
	BreakEnd            *availability.ClockTime `json:"break_end,omitempty"`
}

type WindowResponse struct {
	ID                  uuid.UUID               `json:"id"`
	DoctorID            uuid.UUID               `json:"doctor_id"`
	DayOfWeek           string                  `json:"day_of_week"`
	SpecificDate        *string                 `json:"specific_date,omitempty"`
	Start               availability.ClockTime  `json:"start"`
	End                 availability.ClockTime  `json:"end"`
	SlotDurationMinutes int                     `json:"slot_duration_minutes"`
	Active              bool                    `json:"active"`
	BreakStart          *availability.ClockTime `json:"break_start,omitempty"`
	BreakEnd            *availability.ClockTime `json:"break_end,omitempty"`
}

func toWindowResponse(w availability.Window) WindowResponse {
	resp := WindowResponse{
		ID:                  w.ID,
		DoctorID:            w.DoctorID,
		DayOfWeek:           strings.ToUpper(w.DayOfWeek.String()),
		Start:               w.Start,
		End:                 w.End,
		SlotDurationMinutes: w.SlotDurationMinutes,
		Active:              w.Active,
		BreakStart:          w.BreakStart,
		BreakEnd:            w.BreakEnd,
	}
	if w.SpecificDate != nil {
		d := w.SpecificDate.Format(dateLayout)
		resp.SpecificDate = &d
	}
	return resp
}

func toWindowResponses(ws []availability.Window) []WindowResponse {
	out := make([]WindowResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWindowResponse(w))
	}
	return out
}

type DaysResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Days     []string  `json:"days"`
}

// Slots

type SlotResponse struct {
	Instant   time.Time `json:"instant"`
	Available bool      `json:"available"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

func toSlotResponses(slots []scheduling.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Instant: s.Instant, Available: s.Available})
	}
	return out
}

type FreeResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Instant  time.Time `json:"instant"`
	Free     bool      `json:"free"`
}

// Appointments

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Instant   string `json:"instant"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Instant   time.Time `json:"instant"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Instant:   a.Instant,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAppointmentResponses(as []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(as))
	for _, a := range as {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// parseWeekday accepts full or three letter English day names in any case.
func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown day of week %q", s)
}
