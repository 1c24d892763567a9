// Package leads tracks sales opportunities up to the point they convert into
// a delivery challan. Only the slice of the lead lifecycle the challan
// pipeline depends on lives here: open leads close, closed leads convert,
// and conversion hands an explicit challan back to the caller.
package leads

import "time"

// LeadStatus is the coarse lead lifecycle.
type LeadStatus string

const (
	LeadOpen      LeadStatus = "open"
	LeadClosed    LeadStatus = "closed"
	LeadConverted LeadStatus = "converted"
)

// IsValid checks membership in the known set.
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadOpen, LeadClosed, LeadConverted:
		return true
	default:
		return false
	}
}

// Lead is one sales opportunity.
type Lead struct {
	ID              int64      `json:"id" db:"id"`
	ClientName      string     `json:"clientName" db:"client_name"`
	Phone           string     `json:"phone,omitempty" db:"phone"`
	Email           string     `json:"email,omitempty" db:"email"`
	ProductInterest string     `json:"productInterest,omitempty" db:"product_interest"`
	AssignedTo      *int64     `json:"assignedTo,omitempty" db:"assigned_to"`
	Status          LeadStatus `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// CreateLeadRequest opens a lead.
type CreateLeadRequest struct {
	ClientName      string `json:"clientName" validate:"required"`
	Phone           string `json:"phone"`
	Email           string `json:"email" validate:"omitempty,email"`
	ProductInterest string `json:"productInterest"`
	AssignedTo      *int64 `json:"assignedTo"`
}

// ListLeadsRequest filters the lead list.
type ListLeadsRequest struct {
	Status     *LeadStatus
	AssignedTo *int64
	Search     *string
	Limit      int
	Offset     int
}
