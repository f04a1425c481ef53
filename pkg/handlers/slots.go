package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/pharmacal-api/pkg/booking"
	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

// bookingRefHeader carries the reference issued by BookSlot.
const bookingRefHeader = "X-Booking-Ref"

type slotView struct {
	UniqueCode       string            `json:"unique_code"`
	Date             string            `json:"date"`
	Weekday          string            `json:"weekday"`
	Shift            models.Shift      `json:"shift"`
	Column           int               `json:"column"`
	Session          string            `json:"session"`
	AssignedName     *string           `json:"assigned_name"`
	Status           models.SlotStatus `json:"status"`
	RequesterName    string            `json:"requester_name,omitempty"`
	RequesterContact string            `json:"requester_contact,omitempty"`
}

func (h *Handler) view(s models.Slot, private bool) slotView {
	v := slotView{
		UniqueCode:   s.UniqueCode,
		Date:         s.Date.Format(models.DateLayout),
		Weekday:      s.Date.Weekday().String(),
		Shift:        s.Shift,
		Column:       s.ColumnIndex,
		Session:      h.Hours.Label(s.Shift),
		AssignedName: s.AssignedName,
		Status:       s.Status(),
	}
	if private {
		v.RequesterName = s.RequesterName
		v.RequesterContact = s.RequesterContact
	}
	return v
}

// sortForDisplay orders slots by date, then AM before PM, then column.
func sortForDisplay(slots []models.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Shift != b.Shift {
			return a.Shift == models.ShiftAM
		}
		return a.ColumnIndex < b.ColumnIndex
	})
}

// ListSlots returns the public calendar. Unassigned rows and weekend rows
// are left out and requester details are never shown.
func (h *Handler) ListSlots(c *gin.Context) {
	h.listSlots(c, false)
}

// ListSlotsAdmin returns every slot in the window with requester details.
func (h *Handler) ListSlotsAdmin(c *gin.Context) {
	h.listSlots(c, true)
}

func (h *Handler) listSlots(c *gin.Context, private bool) {
	from, to, err := h.window(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	slots, err := h.Store.ListSlots(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	sortForDisplay(slots)

	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		if !private && (!models.IsAvailable(s) || !models.IsWeekday(s.Date)) {
			continue
		}
		out = append(out, h.view(s, private))
	}

	c.JSON(http.StatusOK, gin.H{
		"from":  from.Format(models.DateLayout),
		"to":    to.Format(models.DateLayout),
		"slots": out,
	})
}

// GetSlot returns a single slot by its unique code.
func (h *Handler) GetSlot(c *gin.Context) {
	slot, err := h.Store.FindSlotByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(slot, false))
}

// BookSlot claims a slot for a requester and returns a booking reference
// that can later be used to cancel.
func (h *Handler) BookSlot(c *gin.Context) {
	var req booking.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errs.Mark(errs.Wrap(err, "invalid booking payload"), errs.ErrValidation))
		return
	}

	res, err := h.Booking.Book(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slot":        h.view(res.Slot, false),
		"booking_ref": h.Auth.SignBookingRef(res.Slot.UniqueCode, res.Slot.BookingNonce),
		"warnings":    res.Warnings,
	})
}

// CancelSlot cancels a booking. Admins may cancel any booking; requesters
// need the reference they were given at booking time, and only cancel the
// booking that reference was issued for.
func (h *Handler) CancelSlot(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()

	var (
		res booking.Result
		err error
	)
	if h.isAdmin(c) {
		res, err = h.Booking.Cancel(ctx, code)
	} else {
		ref := c.GetHeader(bookingRefHeader)
		if ref == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "admin token or X-Booking-Ref required"})
			return
		}
		slot, ferr := h.Store.FindSlotByCode(ctx, code)
		if ferr != nil {
			h.respondError(c, ferr)
			return
		}
		if !slot.Booked {
			h.respondError(c, errs.InvalidState("slot %s (%s) is not booked", slot.UniqueCode, slot.Key()))
			return
		}
		if verr := h.Auth.VerifyBookingRef(ref, slot.UniqueCode, slot.BookingNonce); verr != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": verr.Error()})
			return
		}
		res, err = h.Booking.CancelBooking(ctx, code, slot.BookingNonce)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slot":     h.view(res.Slot, false),
		"warnings": res.Warnings,
	})
}
