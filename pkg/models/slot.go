package models

import (
	"strings"
	"time"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
)

// SlotStatus is the booking state of a slot.
type SlotStatus string

const (
	StatusUnassigned        SlotStatus = "unassigned"
	StatusAvailableUnbooked SlotStatus = "available"
	StatusAvailableBooked   SlotStatus = "booked"
)

// Slot is one bookable half-day capacity unit.
type Slot struct {
	UniqueCode       string    `json:"unique_code"`
	Date             time.Time `json:"date"`
	Shift            Shift     `json:"shift"`
	ColumnIndex      int       `json:"column"`
	AssignedName     *string   `json:"assigned_name"`
	Booked           bool      `json:"booked"`
	RequesterName    string    `json:"requester_name,omitempty"`
	RequesterContact string    `json:"requester_contact,omitempty"`

	// BookingNonce identifies one booking of the slot; a re-booking gets a
	// new one. Empty on unbooked slots and on bookings imported from a sheet.
	BookingNonce string `json:"-"`
}

// Key returns the slot's position in the calendar grid.
func (s Slot) Key() SlotKey {
	return NewSlotKey(s.Date, s.ColumnIndex, s.Shift)
}

// Assignee returns the assigned name or "" when unassigned.
func (s Slot) Assignee() string {
	if s.AssignedName == nil {
		return ""
	}
	return *s.AssignedName
}

// IsAvailable reports whether a staff member is assigned to the slot.
func IsAvailable(s Slot) bool {
	return s.AssignedName != nil && *s.AssignedName != ""
}

// IsBooked reports whether a requester has claimed the slot.
func IsBooked(s Slot) bool {
	return s.Booked
}

// IsFrozen reports whether bulk availability edits must leave the slot alone.
func IsFrozen(s Slot) bool {
	return s.Booked
}

// Status classifies the slot.
func (s Slot) Status() SlotStatus {
	switch {
	case !IsAvailable(s):
		return StatusUnassigned
	case s.Booked:
		return StatusAvailableBooked
	default:
		return StatusAvailableUnbooked
	}
}

// Validate checks the slot invariants.
func (s Slot) Validate() error {
	if s.UniqueCode == "" {
		return errs.Validation("slot %s: unique_code is required", s.Key())
	}
	if s.Shift != ShiftAM && s.Shift != ShiftPM {
		return errs.Validation("slot %s: unknown shift %q", s.UniqueCode, s.Shift)
	}
	if s.ColumnIndex < 0 {
		return errs.Validation("slot %s: negative column %d", s.UniqueCode, s.ColumnIndex)
	}
	if !IsWeekday(s.Date) {
		return errs.Validation("slot %s: %s is a weekend", s.UniqueCode, s.Date.Format(DateLayout))
	}
	if s.Booked && !IsAvailable(s) {
		return errs.InvalidState("slot %s: unassigned slot cannot be booked", s.UniqueCode)
	}
	if s.Booked && (s.RequesterName == "" || s.RequesterContact == "") {
		return errs.Validation("slot %s: booked slot requires requester name and contact", s.UniqueCode)
	}
	if !s.Booked && (s.RequesterName != "" || s.RequesterContact != "") {
		return errs.InvalidState("slot %s: requester set on an unbooked slot", s.UniqueCode)
	}
	return nil
}

// AssigneeFromRaw converts a stored or submitted name into the optional
// assignee, treating empty strings and the "None" sentinel as unassigned.
func AssigneeFromRaw(raw string) *string {
	name := strings.TrimSpace(raw)
	switch strings.ToLower(name) {
	case "", "none", "nan", "null":
		return nil
	}
	return &name
}

// Name returns a pointer to a copy of name; handy for literals.
func Name(name string) *string {
	return &name
}
