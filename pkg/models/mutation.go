package models

import "fmt"

// MutationKind names the storage operation a reconciliation emits.
type MutationKind string

const (
	MutationCreate         MutationKind = "create"
	MutationUpdateAssignee MutationKind = "update_assignee"
	MutationDelete         MutationKind = "delete"
)

// Mutation is one step of a reconciliation plan. Key and AssignedName are
// always populated so a failed identity lookup can fall back to a create.
type Mutation struct {
	Kind         MutationKind `json:"kind"`
	Key          SlotKey      `json:"key"`
	UniqueCode   string       `json:"unique_code"`
	AssignedName string       `json:"assigned_name,omitempty"`
}

// Slot returns the unbooked slot a create materializes.
func (m Mutation) Slot() Slot {
	return Slot{
		UniqueCode:   m.UniqueCode,
		Date:         m.Key.Date,
		Shift:        m.Key.Shift,
		ColumnIndex:  m.Key.ColumnIndex,
		AssignedName: Name(m.AssignedName),
	}
}

func (m Mutation) String() string {
	switch m.Kind {
	case MutationDelete:
		return fmt.Sprintf("delete %s (%s)", m.UniqueCode, m.Key)
	default:
		return fmt.Sprintf("%s %s (%s) -> %s", m.Kind, m.UniqueCode, m.Key, m.AssignedName)
	}
}
