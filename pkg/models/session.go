package models

import (
	"fmt"
	"time"
)

// SessionHours holds the clock times of the two sessions, as "15:04".
type SessionHours struct {
	AMStart, AMEnd string
	PMStart, PMEnd string
	Location       *time.Location
}

// DefaultSessionHours are the sessions the calendar has always used.
func DefaultSessionHours() SessionHours {
	return SessionHours{AMStart: "09:00", AMEnd: "12:45", PMStart: "13:15", PMEnd: "17:00", Location: time.UTC}
}

// Label renders "09:00 - 12:45" for a shift.
func (h SessionHours) Label(shift Shift) string {
	if shift == ShiftPM {
		return fmt.Sprintf("%s - %s", h.PMStart, h.PMEnd)
	}
	return fmt.Sprintf("%s - %s", h.AMStart, h.AMEnd)
}

// Bounds returns the start and end instants of a session on date.
func (h SessionHours) Bounds(date time.Time, shift Shift) (time.Time, time.Time, error) {
	startRaw, endRaw := h.AMStart, h.AMEnd
	if shift == ShiftPM {
		startRaw, endRaw = h.PMStart, h.PMEnd
	}
	start, err := h.at(date, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := h.at(date, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (h SessionHours) at(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session time %q: %w", clock, err)
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}
