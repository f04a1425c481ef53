package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

type contactRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

// ListStaff returns the roster
func (h *Handler) ListStaff(c *gin.Context) {
	staff, err := h.Store.ListStaff(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": staff})
}

// UpsertStaff adds a roster entry or updates the e-mail of an existing one.
func (h *Handler) UpsertStaff(c *gin.Context) {
	var member models.StaffMember
	if err := c.ShouldBindJSON(&member); err != nil {
		h.respondError(c, errs.Mark(errs.Wrap(err, "invalid staff payload"), errs.ErrValidation))
		return
	}
	member.Name = strings.TrimSpace(member.Name)
	member.Email = strings.TrimSpace(member.Email)
	if err := h.check(member); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.Store.UpsertStaff(c.Request.Context(), member); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": member})
}

// DeleteStaff removes a roster entry. Name and e-mail must both match.
func (h *Handler) DeleteStaff(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errs.Mark(errs.Wrap(err, "invalid staff payload"), errs.ErrValidation))
		return
	}
	if err := h.Store.DeleteStaff(c.Request.Context(), req.Name, req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Staff member removed"})
}

// ListRequesters returns the requesting organizations. The public variant
// only carries names, for the booking form.
func (h *Handler) ListRequesters(c *gin.Context) {
	requesters, err := h.Store.ListRequesters(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requesters": requesters})
}

func (h *Handler) ListRequesterNames(c *gin.Context) {
	requesters, err := h.Store.ListRequesters(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	names := make([]string, 0, len(requesters))
	for _, r := range requesters {
		names = append(names, r.Name)
	}
	c.JSON(http.StatusOK, gin.H{"requesters": names})
}

// AddRequester registers an organization. Re-adding the same name and
// e-mail is a no-op.
func (h *Handler) AddRequester(c *gin.Context) {
	var r models.Requester
	if err := c.ShouldBindJSON(&r); err != nil {
		h.respondError(c, errs.Mark(errs.Wrap(err, "invalid requester payload"), errs.ErrValidation))
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if err := h.check(r); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.Store.AddRequester(c.Request.Context(), r); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requester": r})
}

// DeleteRequester removes an organization. Name and e-mail must both match.
func (h *Handler) DeleteRequester(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errs.Mark(errs.Wrap(err, "invalid requester payload"), errs.ErrValidation))
		return
	}
	if err := h.Store.DeleteRequester(c.Request.Context(), req.Name, req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Requester removed"})
}

type coverRequestInput struct {
	CoverDate   string `json:"cover_date" binding:"required"`
	Requester   string `json:"requester"`
	Name        string `json:"name"`
	Session     string `json:"session"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// SubmitCoverRequest records a request for cover on a date and session.
func (h *Handler) SubmitCoverRequest(c *gin.Context) {
	var in coverRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, errs.Mark(errs.Wrap(err, "invalid cover request payload"), errs.ErrValidation))
		return
	}

	date, err := models.ParseDate(in.CoverDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	req := models.CoverRequest{
		ID:          uuid.NewString(),
		CoverDate:   date,
		Requester:   strings.TrimSpace(in.Requester),
		Name:        strings.TrimSpace(in.Name),
		Session:     models.Shift(strings.ToUpper(strings.TrimSpace(in.Session))),
		Reason:      in.Reason,
		Description: in.Description,
		SubmittedAt: h.now().UTC(),
	}
	if err := h.check(req); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.Store.AddCoverRequest(c.Request.Context(), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cover_request": req})
}

// ListCoverRequests returns cover requests, newest first.
func (h *Handler) ListCoverRequests(c *gin.Context) {
	reqs, err := h.Store.ListCoverRequests(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cover_requests": reqs})
}
