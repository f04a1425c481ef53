package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
	"github.com/arnavshah/pharmacal-api/pkg/reconciler"
)

type gridCell struct {
	Date         string       `json:"date"`
	Column       int          `json:"column"`
	Shift        models.Shift `json:"shift"`
	UniqueCode   string       `json:"unique_code,omitempty"`
	AssignedName *string      `json:"assigned_name"`
	Frozen       bool         `json:"frozen"`
}

type assignmentInput struct {
	Date         string  `json:"date" binding:"required"`
	Column       int     `json:"column"`
	Shift        string  `json:"shift" binding:"required"`
	AssignedName *string `json:"assigned_name"`
}

type availabilityRequest struct {
	From        string            `json:"from" binding:"required"`
	To          string            `json:"to" binding:"required"`
	Assignments []assignmentInput `json:"assignments"`
}

// GetAvailability returns the editable grid: every weekday in the window,
// every column and both shifts, with the current assignee.
func (h *Handler) GetAvailability(c *gin.Context) {
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

	columns := h.Calendar.Columns
	byKey := make(map[models.SlotKey]models.Slot, len(slots))
	for _, s := range slots {
		if s.ColumnIndex+1 > columns {
			columns = s.ColumnIndex + 1
		}
		k := s.Key()
		if prev, ok := byKey[k]; ok && (prev.Booked || !s.Booked) {
			continue
		}
		byKey[k] = s
	}

	var cells []gridCell
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !models.IsWeekday(d) {
			continue
		}
		for col := 0; col < columns; col++ {
			for _, shift := range models.Shifts {
				k := models.NewSlotKey(d, col, shift)
				cell := gridCell{Date: d.Format(models.DateLayout), Column: col, Shift: shift}
				if s, ok := byKey[k]; ok {
					cell.UniqueCode = s.UniqueCode
					cell.AssignedName = s.AssignedName
					cell.Frozen = models.IsFrozen(s)
				}
				cells = append(cells, cell)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"from":    from.Format(models.DateLayout),
		"to":      to.Format(models.DateLayout),
		"columns": columns,
		"cells":   cells,
	})
}

// UpdateAvailability reconciles the submitted grid against storage.
func (h *Handler) UpdateAvailability(c *gin.Context) {
	desired, err := h.bindDesired(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	report, err := h.Reconciler.Run(c.Request.Context(), desired)
	if err != nil {
		h.respondError(c, err)
		return
	}

	counts := make(map[reconciler.Result]int)
	for _, o := range report.Outcomes {
		counts[o.Result]++
	}

	c.JSON(http.StatusOK, gin.H{
		"outcomes": report.Outcomes,
		"summary":  counts,
		"warnings": report.Warnings(),
		"ok":       report.OK(),
	})
}

// PreviewAvailability returns the mutations an update would apply.
func (h *Handler) PreviewAvailability(c *gin.Context) {
	desired, err := h.bindDesired(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	plan, err := h.Reconciler.Plan(c.Request.Context(), desired)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if plan == nil {
		plan = []models.Mutation{}
	}

	c.JSON(http.StatusOK, gin.H{"mutations": plan})
}

func (h *Handler) bindDesired(c *gin.Context) (*reconciler.Desired, error) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "invalid availability payload"), errs.ErrValidation)
	}
	return desiredFrom(req)
}

func desiredFrom(req availabilityRequest) (*reconciler.Desired, error) {
	from, err := models.ParseDate(req.From)
	if err != nil {
		return nil, err
	}
	to, err := models.ParseDate(req.To)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(from, to); err != nil {
		return nil, err
	}

	desired := reconciler.NewDesired(from, to)
	seen := make(map[models.SlotKey]bool, len(req.Assignments))
	for i, a := range req.Assignments {
		date, err := models.ParseDate(a.Date)
		if err != nil {
			return nil, errs.Wrap(err, "assignment "+strconv.Itoa(i))
		}
		shift, err := models.ParseShift(a.Shift)
		if err != nil {
			return nil, errs.Wrap(err, "assignment "+strconv.Itoa(i))
		}
		if a.Column < 0 {
			return nil, errs.Validation("assignment %d: negative column %d", i, a.Column)
		}
		if date.Before(from) || date.After(to) {
			return nil, errs.Validation("assignment %d: %s is outside %s..%s", i,
				date.Format(models.DateLayout), req.From, req.To)
		}
		k := models.NewSlotKey(date, a.Column, shift)
		if seen[k] {
			return nil, errs.Validation("assignment %d: %s listed twice", i, k)
		}
		seen[k] = true
		desired.Set(k, a.AssignedName)
	}
	return desired, nil
}
