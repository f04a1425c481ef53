package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
)

// DateLayout is the calendar date format used on the wire and in the sheet.
const DateLayout = "2006-01-02"

// Shift is a half-day session.
type Shift string

const (
	ShiftAM Shift = "AM"
	ShiftPM Shift = "PM"
)

// Shifts lists the sessions of a day in display order.
var Shifts = []Shift{ShiftAM, ShiftPM}

// ParseShift accepts am/pm in any case.
func ParseShift(raw string) (Shift, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "AM":
		return ShiftAM, nil
	case "PM":
		return ShiftPM, nil
	}
	return "", errs.Validation("unknown shift %q", raw)
}

func (s Shift) rank() int {
	if s == ShiftPM {
		return 1
	}
	return 0
}

// SlotKey identifies a capacity column on a date and shift.
type SlotKey struct {
	Date        time.Time `json:"date"`
	ColumnIndex int       `json:"column"`
	Shift       Shift     `json:"shift"`
}

// NewSlotKey truncates date to its calendar day.
func NewSlotKey(date time.Time, column int, shift Shift) SlotKey {
	return SlotKey{Date: CalendarDay(date), ColumnIndex: column, Shift: shift}
}

// Less orders keys by date, then column, then AM before PM.
func (k SlotKey) Less(o SlotKey) bool {
	if !k.Date.Equal(o.Date) {
		return k.Date.Before(o.Date)
	}
	if k.ColumnIndex != o.ColumnIndex {
		return k.ColumnIndex < o.ColumnIndex
	}
	return k.Shift.rank() < o.Shift.rank()
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Date.Format(DateLayout), k.Shift, k.ColumnIndex)
}

// IsWeekday reports whether the key falls Monday to Friday.
func (k SlotKey) IsWeekday() bool {
	return IsWeekday(k.Date)
}

// CalendarDay returns midnight UTC of the date's calendar day.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekday reports whether t is Monday to Friday.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// ParseDate parses a calendar date, tolerating a trailing time component.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339, "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return CalendarDay(t), nil
		}
	}
	return time.Time{}, errs.Validation("invalid date %q", raw)
}

// DeriveUniqueCode builds "<epoch>-<am|pm>-<index>" for a slot key.
func DeriveUniqueCode(date time.Time, shift Shift, column int) string {
	return fmt.Sprintf("%d-%s-%d", CalendarDay(date).Unix(), strings.ToLower(string(shift)), column)
}

// ParseUniqueCode splits a code back into its parts. Codes written under
// older schemes may carry a time-of-day in the epoch; the date is truncated.
// A ".N" disambiguation suffix on the column is ignored.
func ParseUniqueCode(code string) (SlotKey, error) {
	parts := strings.Split(code, "-")
	if len(parts) == 3 {
		if i := strings.IndexByte(parts[2], '.'); i > 0 {
			if _, err := strconv.Atoi(parts[2][i+1:]); err == nil {
				parts[2] = parts[2][:i]
			}
		}
	}
	if len(parts) != 3 {
		return SlotKey{}, errs.Validation("malformed unique_code %q", code)
	}
	epoch, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return SlotKey{}, errs.Validation("malformed unique_code %q: epoch", code)
	}
	shift, err := ParseShift(parts[1])
	if err != nil {
		return SlotKey{}, errs.Validation("malformed unique_code %q: shift", code)
	}
	column, err := strconv.Atoi(parts[2])
	if err != nil || column < 0 {
		return SlotKey{}, errs.Validation("malformed unique_code %q: column", code)
	}
	return NewSlotKey(time.Unix(epoch, 0).UTC(), column, shift), nil
}
