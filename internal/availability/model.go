package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidWindow marks a malformed window. Validation failures wrap it
	// with the specific reason.
	ErrInvalidWindow  = errors.New("invalid availability window")
	ErrWindowNotFound = errors.New("availability window not found")
)

const minutesPerDay = 24 * 60

// ClockTime is a wall-clock time of day in minutes since midnight.
// 24:00 is allowed so a window can run to the end of the day.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("clock time %q must be HH:MM", s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	c := ClockTime(h*60 + m)
	if m > 59 || !c.valid() {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return c, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c ClockTime) Hour() int  { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places the clock time on the calendar date of d, in d's location.
func (c ClockTime) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, c.Hour(), c.Minute(), 0, 0, d.Location())
}

func (c ClockTime) valid() bool {
	return c >= 0 && c <= minutesPerDay
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Window is a recurring weekly interval during which a doctor offers
// appointments. When SpecificDate is set the window is a one-off for that
// calendar date and DayOfWeek mirrors the date's weekday.
type Window struct {
	ID                  uuid.UUID
	DoctorID            uuid.UUID
	DayOfWeek           time.Weekday
	SpecificDate        *time.Time
	Start               ClockTime
	End                 ClockTime
	SlotDurationMinutes int
	Active              bool
	BreakStart          *ClockTime
	BreakEnd            *ClockTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (w Window) SlotDuration() time.Duration {
	return time.Duration(w.SlotDurationMinutes) * time.Minute
}

func (w Window) HasBreak() bool {
	return w.BreakStart != nil && w.BreakEnd != nil
}

// Validate reports the first broken window invariant, wrapped in
// ErrInvalidWindow. It runs before every store write.
func (w Window) Validate() error {
	if w.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor id is required", ErrInvalidWindow)
	}
	if w.SpecificDate == nil && (w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday) {
		return fmt.Errorf("%w: day of week %d out of range", ErrInvalidWindow, w.DayOfWeek)
	}
	if w.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive, got %d", ErrInvalidWindow, w.SlotDurationMinutes)
	}
	if !w.Start.valid() || !w.End.valid() {
		return fmt.Errorf("%w: start and end must lie within the day", ErrInvalidWindow)
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidWindow, w.Start, w.End)
	}
	if (w.BreakStart == nil) != (w.BreakEnd == nil) {
		return fmt.Errorf("%w: break needs both start and end", ErrInvalidWindow)
	}
	if w.HasBreak() {
		bs, be := *w.BreakStart, *w.BreakEnd
		if bs >= be {
			return fmt.Errorf("%w: break start %s must be before break end %s", ErrInvalidWindow, bs, be)
		}
		if bs < w.Start || be > w.End {
			return fmt.Errorf("%w: break %s-%s must lie inside %s-%s", ErrInvalidWindow, bs, be, w.Start, w.End)
		}
	}
	return nil
}

// AppliesOn reports whether the window is active and offers slots on the
// calendar date of d.
func (w Window) AppliesOn(d time.Time) bool {
	if !w.Active {
		return false
	}
	if w.SpecificDate != nil {
		return sameDate(*w.SpecificDate, d)
	}
	return w.DayOfWeek == d.Weekday()
}

// inBreak treats both break endpoints as blocked.
func (w Window) inBreak(t, date time.Time) bool {
	if !w.HasBreak() {
		return false
	}
	bs := w.BreakStart.On(date)
	be := w.BreakEnd.On(date)
	return !t.Before(bs) && !t.After(be)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates t to midnight of its calendar date in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
