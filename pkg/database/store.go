package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

// Store is the gorm-backed system of record for slots and directories.
type Store struct {
	DB *gorm.DB
}

// NewStore wraps an open database.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// ReadSlots returns the full persisted snapshot in calendar order.
func (s *Store) ReadSlots(ctx context.Context) ([]models.Slot, error) {
	return s.listSlots(s.DB.WithContext(ctx))
}

// ListSlots returns slots dated within [from, to].
func (s *Store) ListSlots(ctx context.Context, from, to time.Time) ([]models.Slot, error) {
	q := s.DB.WithContext(ctx).Where("date >= ? AND date <= ?", models.CalendarDay(from), models.CalendarDay(to))
	return s.listSlots(q)
}

func (s *Store) listSlots(q *gorm.DB) ([]models.Slot, error) {
	var records []SlotRecord
	if err := q.Order("date asc, column_index asc, shift asc, unique_code asc").Find(&records).Error; err != nil {
		return nil, errs.Storage(err, "read slots")
	}
	slots := make([]models.Slot, 0, len(records))
	for _, r := range records {
		slots = append(slots, slotFromRecord(r))
	}
	return slots, nil
}

// FindSlotByCode looks a slot up by its stored identity.
func (s *Store) FindSlotByCode(ctx context.Context, code string) (models.Slot, error) {
	var rec SlotRecord
	err := s.DB.WithContext(ctx).Where("unique_code = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Slot{}, errs.NotFound("slot %s not found", code)
	}
	if err != nil {
		return models.Slot{}, errs.Storage(err, "find slot %s", code)
	}
	return slotFromRecord(rec), nil
}

// CreateSlot inserts an unbooked slot, or reassigns the unbooked row already
// holding the same unique_code at the same position. A code held by a booked
// row or by another position is refused.
func (s *Store) CreateSlot(ctx context.Context, slot models.Slot) error {
	rec := recordFromSlot(slot)
	rec.Booked = false
	rec.RequesterName = ""
	rec.RequesterContact = ""
	rec.BookingNonce = ""

	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"assigned_name", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "slots", Name: "booked"}, Value: false},
			clause.Expr{SQL: "slots.date = excluded.date AND slots.shift = excluded.shift AND slots.column_index = excluded.column_index"},
		}},
	}).Create(&rec)
	if res.Error != nil {
		return errs.Storage(res.Error, "create slot %s", slot.UniqueCode)
	}
	if res.RowsAffected == 0 {
		held, err := s.FindSlotByCode(ctx, slot.UniqueCode)
		if err != nil {
			return err
		}
		return createConflict(held, slot)
	}
	return nil
}

// UpdateSlotAssignee reassigns an unbooked slot.
func (s *Store) UpdateSlotAssignee(ctx context.Context, code, name string) error {
	res := s.DB.WithContext(ctx).Model(&SlotRecord{}).
		Where("unique_code = ? AND booked = ?", code, false).
		Update("assigned_name", name)
	if res.Error != nil {
		return errs.Storage(res.Error, "update assignee of %s", code)
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(ctx, code, "reassign")
	}
	return nil
}

// DeleteSlot removes an unbooked slot.
func (s *Store) DeleteSlot(ctx context.Context, code string) error {
	res := s.DB.WithContext(ctx).
		Where("unique_code = ? AND booked = ?", code, false).
		Delete(&SlotRecord{})
	if res.Error != nil {
		return errs.Storage(res.Error, "delete slot %s", code)
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(ctx, code, "delete")
	}
	return nil
}

// MarkBooked records a requester against an assigned, unbooked slot. nonce
// identifies this booking for later cancellation.
func (s *Store) MarkBooked(ctx context.Context, code, requesterName, requesterContact, nonce string) error {
	res := s.DB.WithContext(ctx).Model(&SlotRecord{}).
		Where("unique_code = ? AND booked = ? AND assigned_name IS NOT NULL AND assigned_name <> ''", code, false).
		Updates(map[string]interface{}{
			"booked":            true,
			"requester_name":    requesterName,
			"requester_contact": requesterContact,
			"booking_nonce":     nonce,
		})
	if res.Error != nil {
		return errs.Storage(res.Error, "book slot %s", code)
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(ctx, code, "book")
	}
	return nil
}

// ClearBooking returns a booked slot to unbooked, keeping its assignee. A
// non-empty nonce restricts the cancel to that booking.
func (s *Store) ClearBooking(ctx context.Context, code, nonce string) error {
	q := s.DB.WithContext(ctx).Model(&SlotRecord{}).Where("unique_code = ? AND booked = ?", code, true)
	if nonce != "" {
		q = q.Where("booking_nonce = ?", nonce)
	}
	res := q.Updates(map[string]interface{}{
		"booked":            false,
		"requester_name":    "",
		"requester_contact": "",
		"booking_nonce":     "",
	})
	if res.Error != nil {
		return errs.Storage(res.Error, "cancel slot %s", code)
	}
	if res.RowsAffected == 0 {
		slot, err := s.FindSlotByCode(ctx, code)
		if err != nil {
			return err
		}
		return cancelConflict(slot, nonce)
	}
	return nil
}

// ImportSlot writes a full slot row, replacing any row with the same code.
// The booking nonce survives only when the row stays booked by the same
// requester contact.
func (s *Store) ImportSlot(ctx context.Context, slot models.Slot) error {
	rec := recordFromSlot(slot)
	rec.BookingNonce = ""
	updates := append(clause.AssignmentColumns([]string{
		"date", "shift", "column_index", "assigned_name",
		"booked", "requester_name", "requester_contact", "updated_at",
	}), clause.Assignment{
		Column: clause.Column{Name: "booking_nonce"},
		Value: gorm.Expr("CASE WHEN slots.booked AND excluded.booked AND " +
			"slots.requester_contact = excluded.requester_contact THEN slots.booking_nonce ELSE '' END"),
	})
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_code"}},
		DoUpdates: updates,
	}).Create(&rec).Error
	return errs.Storage(err, "import slot %s", slot.UniqueCode)
}

// explainMiss classifies a conditional write that matched no row.
func (s *Store) explainMiss(ctx context.Context, code, op string) error {
	slot, err := s.FindSlotByCode(ctx, code)
	if err != nil {
		return err
	}
	return conditionError(slot, op)
}

func conditionError(slot models.Slot, op string) error {
	switch {
	case op == "cancel" && !slot.Booked:
		return errs.InvalidState("slot %s is not booked", slot.UniqueCode)
	case op == "book" && !models.IsAvailable(slot):
		return errs.Mark(errs.Newf("slot %s is unassigned", slot.UniqueCode), errs.ErrInvalidBooking)
	case op == "book" && slot.Booked:
		return errs.Mark(errs.Newf("slot %s is already booked", slot.UniqueCode), errs.ErrInvalidBooking)
	case slot.Booked:
		return errs.InvalidState("slot %s is booked, %s refused", slot.UniqueCode, op)
	}
	return errs.InvalidState("slot %s: %s matched no row", slot.UniqueCode, op)
}

func createConflict(held, want models.Slot) error {
	if held.Booked {
		return conditionError(held, "create")
	}
	if held.Key() != want.Key() {
		return errs.InvalidState("slot %s: code is held by %s, create for %s refused",
			held.UniqueCode, held.Key(), want.Key())
	}
	return errs.InvalidState("slot %s: create matched no row", held.UniqueCode)
}

func cancelConflict(slot models.Slot, nonce string) error {
	if slot.Booked && nonce != "" && slot.BookingNonce != nonce {
		return errs.InvalidState("slot %s has been booked again since that booking", slot.UniqueCode)
	}
	return conditionError(slot, "cancel")
}
