package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/pharmacal-api/pkg/database"
	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
	"github.com/arnavshah/pharmacal-api/pkg/notify"
)

var monday = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func seed(code, assignee string) models.Slot {
	return models.Slot{
		UniqueCode:   code,
		Date:         monday,
		Shift:        models.ShiftAM,
		AssignedName: models.AssigneeFromRaw(assignee),
	}
}

var surgery = Request{RequesterName: "Riverside Surgery", RequesterContact: "practice@riverside.example"}

func setup(t *testing.T, slots ...models.Slot) (*Service, *database.MemoryStore, *notify.RecordingMailer) {
	t.Helper()
	store := database.NewMemoryStore(slots...)
	require.NoError(t, store.UpsertStaff(context.Background(), models.StaffMember{Name: "Alice", Email: "alice@pcn.example"}))
	mailer := notify.NewRecordingMailer()
	svc := NewService(store, notify.NewDispatcher(mailer, models.DefaultSessionHours(), nil), nil, nil)
	return svc, store, mailer
}

func TestBook_ThenCancel_RestoresSlot(t *testing.T) {
	ctx := context.Background()
	svc, store, mailer := setup(t, seed("a", "Alice"))

	res, err := svc.Book(ctx, "a", surgery)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Slot.Booked)
	assert.Len(t, mailer.Sent(), 2)

	res, err = svc.Cancel(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Slot.Booked)

	s, err := store.FindSlotByCode(ctx, "a")
	require.NoError(t, err)
	assert.False(t, s.Booked)
	assert.Empty(t, s.RequesterName)
	assert.Empty(t, s.RequesterContact)
	assert.Equal(t, "Alice", s.Assignee())
	assert.Len(t, mailer.Sent(), 4)
}

func TestBook_UnassignedSlot(t *testing.T) {
	svc, _, _ := setup(t, seed("a", "None"))

	_, err := svc.Book(context.Background(), "a", surgery)

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidBooking))
	assert.Contains(t, err.Error(), "a")
}

func TestBook_UnknownCode(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Book(context.Background(), "missing", surgery)

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidBooking))
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func TestBook_AlreadyBooked(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, seed("a", "Alice"))
	_, err := svc.Book(ctx, "a", surgery)
	require.NoError(t, err)

	_, err = svc.Book(ctx, "a", Request{RequesterName: "Hilltop", RequesterContact: "hill@top.example"})

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidBooking))
}

func TestBook_RequiresRequesterFields(t *testing.T) {
	svc, store, _ := setup(t, seed("a", "Alice"))

	tests := []struct {
		name string
		req  Request
	}{
		{"missing name", Request{RequesterContact: "x@example.org"}},
		{"missing contact", Request{RequesterName: "Riverside"}},
		{"blank name", Request{RequesterName: "   ", RequesterContact: "x@example.org"}},
		{"bad contact", Request{RequesterName: "Riverside", RequesterContact: "not-an-address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), "a", tt.req)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.ErrValidation))
			assert.Equal(t, "VALIDATION", errs.Code(err))
		})
	}

	s, err := store.FindSlotByCode(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, s.Booked)
}

func TestCancel_Twice(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, seed("a", "Alice"))
	_, err := svc.Book(ctx, "a", surgery)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "a")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, "a")

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidState))
}

func TestCancelBooking_StaleNonceAfterRebook(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t, seed("a", "Alice"))

	first, err := svc.Book(ctx, "a", surgery)
	require.NoError(t, err)
	require.NotEmpty(t, first.Slot.BookingNonce)
	_, err = svc.CancelBooking(ctx, "a", first.Slot.BookingNonce)
	require.NoError(t, err)

	hilltop := Request{RequesterName: "Hilltop Practice", RequesterContact: "desk@hilltop.example"}
	second, err := svc.Book(ctx, "a", hilltop)
	require.NoError(t, err)
	assert.NotEqual(t, first.Slot.BookingNonce, second.Slot.BookingNonce)

	_, err = svc.CancelBooking(ctx, "a", first.Slot.BookingNonce)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidState))

	s, err := store.FindSlotByCode(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.Booked)
	assert.Equal(t, "Hilltop Practice", s.RequesterName)

	res, err := svc.CancelBooking(ctx, "a", second.Slot.BookingNonce)
	require.NoError(t, err)
	assert.False(t, res.Slot.Booked)
	assert.Empty(t, res.Slot.BookingNonce)
}

func TestCancelBooking_RequiresNonce(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t, seed("a", "Alice"))
	_, err := svc.Book(ctx, "a", surgery)
	require.NoError(t, err)

	_, err = svc.CancelBooking(ctx, "a", " ")
	assert.True(t, errs.Is(err, errs.ErrValidation))

	s, err := store.FindSlotByCode(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.Booked)
}

func TestCancel_UnknownCode(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Cancel(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidState))
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func TestBook_NotificationFailureKeepsBooking(t *testing.T) {
	ctx := context.Background()
	svc, store, mailer := setup(t, seed("a", "Alice"))
	mailer.FailFor(surgery.RequesterContact, errors.New("smtp down"))

	res, err := svc.Book(ctx, "a", surgery)

	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "notification failed")

	s, err := store.FindSlotByCode(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.Booked)
}

func TestBook_UnknownAssigneeContact(t *testing.T) {
	ctx := context.Background()
	svc, _, mailer := setup(t, seed("b", "Bob"))

	res, err := svc.Book(ctx, "b", surgery)

	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Bob")
	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, surgery.RequesterContact, sent[0].To)
}

func TestBook_StorageFailure(t *testing.T) {
	svc, store, _ := setup(t, seed("a", "Alice"))
	store.FailOn("book", "a", errors.New("sheet quota"))

	_, err := svc.Book(context.Background(), "a", surgery)

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrStorage))
}
