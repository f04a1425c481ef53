// Package reconciler turns an admin's desired availability into the minimal,
// ordered list of storage mutations, never touching booked slots.
package reconciler

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/pharmacal-api/pkg/models"
)

// Desired is an admin's intended availability. Keys absent from Assignments,
// or mapped to "", are unassigned. A non-zero From/To bounds the snapshot:
// persisted slots outside it are not part of the diff.
type Desired struct {
	From        time.Time
	To          time.Time
	Assignments map[models.SlotKey]string
}

// NewDesired returns an empty snapshot for [from, to].
func NewDesired(from, to time.Time) *Desired {
	d := &Desired{Assignments: make(map[models.SlotKey]string)}
	if !from.IsZero() {
		d.From = models.CalendarDay(from)
	}
	if !to.IsZero() {
		d.To = models.CalendarDay(to)
	}
	return d
}

// Set records the desired assignee for a key; nil or "None" unassigns it.
func (d *Desired) Set(key models.SlotKey, name *string) {
	if d.Assignments == nil {
		d.Assignments = make(map[models.SlotKey]string)
	}
	key = models.NewSlotKey(key.Date, key.ColumnIndex, key.Shift)
	if name == nil {
		d.Assignments[key] = ""
		return
	}
	d.Assignments[key] = assignee(models.AssigneeFromRaw(*name))
}

func (d *Desired) covers(date time.Time) bool {
	if !d.From.IsZero() && date.Before(d.From) {
		return false
	}
	if !d.To.IsZero() && date.After(d.To) {
		return false
	}
	return true
}

// Diff compares desired against the persisted snapshot. For every weekday key
// in either, in date, column, AM-before-PM order:
//   - a booked persisted slot is skipped whatever is desired;
//   - equal assignees produce nothing;
//   - desired unassigned deletes the persisted slot;
//   - persisted unassigned creates, reusing a stored code when a row exists
//     and otherwise deriving one that no persisted row holds;
//   - otherwise the assignee is updated in place, keeping the code.
func Diff(desired *Desired, persisted []models.Slot) []models.Mutation {
	if desired == nil {
		desired = &Desired{}
	}

	wanted := make(map[models.SlotKey]string, len(desired.Assignments))
	for k, name := range desired.Assignments {
		k = models.NewSlotKey(k.Date, k.ColumnIndex, k.Shift)
		wanted[k] = assignee(models.AssigneeFromRaw(name))
	}

	current := indexPersisted(persisted)
	taken := make(map[string]bool, len(persisted))
	for _, s := range persisted {
		taken[s.UniqueCode] = true
	}

	keys := make([]models.SlotKey, 0, len(wanted)+len(current))
	seen := make(map[models.SlotKey]bool, cap(keys))
	add := func(k models.SlotKey) {
		if seen[k] || !k.IsWeekday() || !desired.covers(k.Date) {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range wanted {
		add(k)
	}
	for k := range current {
		add(k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var plan []models.Mutation
	for _, k := range keys {
		slot, exists := current[k]
		if exists && models.IsFrozen(slot) {
			continue
		}

		have := ""
		if exists {
			have = assignee(slot.AssignedName)
		}
		want := wanted[k]

		switch {
		case have == want:
		case want == "":
			plan = append(plan, models.Mutation{
				Kind:         models.MutationDelete,
				Key:          k,
				UniqueCode:   slot.UniqueCode,
				AssignedName: have,
			})
		case have == "":
			code := slot.UniqueCode
			if !exists {
				code = freeCode(k, taken)
				taken[code] = true
			}
			plan = append(plan, models.Mutation{
				Kind:         models.MutationCreate,
				Key:          k,
				UniqueCode:   code,
				AssignedName: want,
			})
		default:
			plan = append(plan, models.Mutation{
				Kind:         models.MutationUpdateAssignee,
				Key:          k,
				UniqueCode:   slot.UniqueCode,
				AssignedName: want,
			})
		}
	}
	return plan
}

// indexPersisted keys slots by grid position. When legacy data holds more
// than one row for a position, a booked row wins, then the lowest code.
func indexPersisted(slots []models.Slot) map[models.SlotKey]models.Slot {
	out := make(map[models.SlotKey]models.Slot, len(slots))
	for _, s := range slots {
		k := s.Key()
		prev, ok := out[k]
		if !ok || preferred(s, prev) {
			out[k] = s
		}
	}
	return out
}

// freeCode derives the code for k. Sheets written with 1-based column numbers
// can already hold the derived text at a different position; the code then
// gets a ".2", ".3", ... suffix until it is unused.
func freeCode(k models.SlotKey, taken map[string]bool) string {
	base := models.DeriveUniqueCode(k.Date, k.Shift, k.ColumnIndex)
	code := base
	for n := 2; taken[code]; n++ {
		code = base + "." + strconv.Itoa(n)
	}
	return code
}

func preferred(a, b models.Slot) bool {
	if a.Booked != b.Booked {
		return a.Booked
	}
	return a.UniqueCode < b.UniqueCode
}

func assignee(name *string) string {
	if name == nil {
		return ""
	}
	return strings.TrimSpace(*name)
}
