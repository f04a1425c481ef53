package models

import "time"

// StaffMember is a rostered clinician who can be assigned to slots.
type StaffMember struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// Requester is an organization that books sessions.
type Requester struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	ListSize int    `json:"list_size" validate:"gte=0"`
}

// CoverRequest asks the admin to arrange cover for a date and session.
type CoverRequest struct {
	ID          string    `json:"id"`
	CoverDate   time.Time `json:"cover_date"`
	Requester   string    `json:"requester" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Session     Shift     `json:"session" validate:"required,oneof=AM PM"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	SubmittedAt time.Time `json:"submitted_at"`
}
