package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
)

// Spreadsheet column headers of the slot sheet.
const (
	ColUniqueCode     = "unique_code"
	ColDate           = "Date"
	ColShift          = "am_pm"
	ColLegacyColumn   = "pharm"
	ColColumn         = "column"
	ColAssignedName   = "pharmacist_name"
	ColBooked         = "booked"
	ColRequesterName  = "surgery"
	ColRequesterEmail = "email"
)

// SheetHeaders is the column order used for import and export.
var SheetHeaders = []string{
	ColUniqueCode, ColDate, ColShift, ColLegacyColumn, ColAssignedName,
	ColBooked, ColRequesterName, ColRequesterEmail,
}

// RawRecord is one sheet row keyed by header.
type RawRecord map[string]string

func (r RawRecord) get(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Normalize converts a sheet row into a Slot, filling defaults for rows
// written before a column existed:
//   - booked defaults to false;
//   - a 0-based "column" wins over the 1-based legacy "pharm" number;
//   - without "pharmacist_name" the assignee comes from the roster position
//     of the legacy pharm number, or "Pharmacist N" when the roster is short.
//
// The fallbacks are a compatibility shim for old sheets only.
func Normalize(raw RawRecord, roster []string) (Slot, error) {
	code, _ := raw.get(ColUniqueCode)
	ref := code
	if ref == "" {
		ref = "row without unique_code"
	}

	dateRaw, _ := raw.get(ColDate)
	date, err := ParseDate(dateRaw)
	if err != nil {
		return Slot{}, errs.Validation("%s: invalid date %q", ref, dateRaw)
	}
	shiftRaw, _ := raw.get(ColShift)
	shift, err := ParseShift(shiftRaw)
	if err != nil {
		return Slot{}, errs.Validation("%s: invalid shift %q", ref, shiftRaw)
	}

	column, legacy, err := normalizeColumn(raw)
	if err != nil {
		return Slot{}, errs.Validation("%s: %v", ref, err)
	}

	slot := Slot{
		UniqueCode:  code,
		Date:        date,
		Shift:       shift,
		ColumnIndex: column,
	}
	if slot.UniqueCode == "" {
		slot.UniqueCode = DeriveUniqueCode(date, shift, column)
	}

	if name, _ := raw.get(ColAssignedName); name != "" {
		slot.AssignedName = AssigneeFromRaw(name)
	} else {
		slot.AssignedName = rosterName(roster, legacy)
	}

	if booked, ok := raw.get(ColBooked); ok {
		slot.Booked = parseBool(booked)
	}
	if slot.Booked {
		slot.RequesterName, _ = raw.get(ColRequesterName)
		slot.RequesterContact, _ = raw.get(ColRequesterEmail)
	}

	if err := slot.Validate(); err != nil {
		return Slot{}, err
	}
	return slot, nil
}

// Denormalize renders a slot as a sheet row.
func Denormalize(s Slot) RawRecord {
	return RawRecord{
		ColUniqueCode:     s.UniqueCode,
		ColDate:           s.Date.Format(DateLayout),
		ColShift:          strings.ToLower(string(s.Shift)),
		ColLegacyColumn:   strconv.Itoa(s.ColumnIndex + 1),
		ColAssignedName:   nameOrNone(s.AssignedName),
		ColBooked:         strings.ToUpper(strconv.FormatBool(s.Booked)),
		ColRequesterName:  s.RequesterName,
		ColRequesterEmail: s.RequesterContact,
	}
}

func normalizeColumn(raw RawRecord) (column, legacy int, err error) {
	if v, ok := raw.get(ColColumn); ok && v != "" {
		column, err = strconv.Atoi(v)
		if err != nil || column < 0 {
			return 0, 0, fmt.Errorf("invalid column %q", v)
		}
		return column, column + 1, nil
	}
	if v, ok := raw.get(ColLegacyColumn); ok && v != "" {
		legacy, err = strconv.Atoi(v)
		if err != nil || legacy < 1 {
			return 0, 0, fmt.Errorf("invalid pharm %q", v)
		}
		return legacy - 1, legacy, nil
	}
	return 0, 0, fmt.Errorf("missing column")
}

func rosterName(roster []string, legacy int) *string {
	if legacy <= len(roster) {
		if name := AssigneeFromRaw(roster[legacy-1]); name != nil {
			return name
		}
	}
	return Name(fmt.Sprintf("Pharmacist %d", legacy))
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func nameOrNone(name *string) string {
	if name == nil {
		return "None"
	}
	return *name
}
