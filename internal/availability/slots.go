package availability

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is one slot start produced from a window. Available is false
// when the start falls inside the window's break.
type Candidate struct {
	Instant   time.Time
	Available bool
	WindowID  uuid.UUID
}

// Generate returns the candidate slot starts for the calendar date of date,
// in date's location. Windows that do not apply on that date are skipped.
// Output is in window order, then time order; overlapping windows may
// produce the same instant more than once.
func Generate(windows []Window, date time.Time) []Candidate {
	var out []Candidate
	for _, w := range windows {
		if !w.AppliesOn(date) || w.SlotDurationMinutes <= 0 {
			continue
		}

		// Step on the wall clock, not in elapsed time, so a DST change
		// inside the window neither repeats nor skips a slot label.
		step := ClockTime(w.SlotDurationMinutes)
		for c := w.Start; c+step <= w.End; c += step {
			t := c.On(date)
			if t.Hour() != c.Hour() || t.Minute() != c.Minute() {
				// The label falls in a spring-forward gap.
				continue
			}
			out = append(out, Candidate{
				Instant:   t,
				Available: !w.inBreak(t, date),
				WindowID:  w.ID,
			})
		}
	}
	return out
}

// Offers reports whether some window applying on the instant's date could
// host a consultation starting at t: inside the window, ending by the
// window end, and outside the break. Grid alignment is not required.
func Offers(windows []Window, t time.Time) bool {
	for _, w := range windows {
		if !w.AppliesOn(t) || w.SlotDurationMinutes <= 0 {
			continue
		}
		if t.Before(w.Start.On(t)) || t.Add(w.SlotDuration()).After(w.End.On(t)) {
			continue
		}
		if w.inBreak(t, t) {
			continue
		}
		return true
	}
	return false
}
