package dc

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// DELIVERY CHALLAN STATUS
// ============================================================================

// DCStatus represents the lifecycle of a delivery challan. The wire values
// match what the existing dashboard sends and stores.
type DCStatus string

const (
	StatusCreated             DCStatus = "created"              // produced by lead-to-client conversion
	StatusPOSubmitted         DCStatus = "po_submitted"         // proof-of-order attached
	StatusSaved               DCStatus = "saved"                // saved from a closed lead, not yet raised
	StatusRequested           DCStatus = "dc_requested"         // raised, awaiting coordinator acceptance
	StatusAccepted            DCStatus = "dc_accepted"          // accepted by coordinator
	StatusSentToManager       DCStatus = "sent_to_manager"      // escalated to senior review
	StatusPendingDC           DCStatus = "pending_dc"           // picked up by senior reviewer
	StatusWarehouseProcessing DCStatus = "warehouse_processing" // at the warehouse
	StatusCompleted           DCStatus = "completed"            // fulfilled
	StatusHold                DCStatus = "hold"                 // suspended, resumable
)

// IsValid checks if the status belongs to the closed vocabulary.
func (s DCStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusPOSubmitted, StatusSaved, StatusRequested,
		StatusAccepted, StatusSentToManager, StatusPendingDC,
		StatusWarehouseProcessing, StatusCompleted, StatusHold:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is legal. Hold is
// deliberately NOT terminal: a challan on hold re-enters the pipeline once
// the hold reason is addressed.
func (s DCStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// IsPreManager reports whether the challan has not yet reached senior review.
// Pre-manager challans are still editable by the owning employee.
func (s DCStatus) IsPreManager() bool {
	switch s {
	case StatusCreated, StatusPOSubmitted, StatusSaved, StatusRequested, StatusAccepted:
		return true
	default:
		return false
	}
}

// CanEdit checks if product lines can still be edited in this status.
func (s DCStatus) CanEdit() bool {
	return s == StatusCreated || s == StatusSaved
}

// ============================================================================
// PRODUCT LINE
// ============================================================================

// ProductLine is one product row within a delivery challan.
//
// AvailableQuantity is nil until the warehouse review snapshots stock for the
// line; once populated it is never user-editable, only re-derived from a
// fresh inventory snapshot.
type ProductLine struct {
	ID                  int64   `json:"id" db:"id"`
	ChallanID           int64   `json:"dcOrderId" db:"challan_id"`
	Product             string  `json:"product" db:"product"`
	ProductName         string  `json:"productName" db:"product_name"`
	Class               string  `json:"class,omitempty" db:"class"`
	Category            string  `json:"category,omitempty" db:"category"`
	Level               string  `json:"level,omitempty" db:"level"`
	Quantity            int64   `json:"quantity" db:"quantity"`
	Strength            int64   `json:"strength" db:"strength"`
	Price               float64 `json:"price" db:"price"`
	AvailableQuantity   *int64  `json:"availableQuantity,omitempty" db:"available_quantity"`
	DeliverableQuantity int64   `json:"deliverableQuantity" db:"deliverable_quantity"`
	RemainingQuantity   int64   `json:"remainingQuantity" db:"remaining_quantity"`
	Total               float64 `json:"total" db:"total"`
	LineOrder           int     `json:"lineOrder" db:"line_order"`
}

// AvailabilityDerived reports whether warehouse stock has been snapshotted
// for this line.
func (l ProductLine) AvailabilityDerived() bool {
	return l.AvailableQuantity != nil
}

// Insufficient reports whether derived stock cannot cover the requested
// quantity. Lines without a derived availability are not insufficient yet.
func (l ProductLine) Insufficient() bool {
	return l.AvailabilityDerived() && l.DeliverableQuantity < l.Quantity
}

// ============================================================================
// DELIVERY CHALLAN ENTITY
// ============================================================================

// DeliveryChallan is the central aggregate tracked through the lifecycle.
//
// The quantity roll-ups are derived sums over Lines, recomputed by
// ReconcileTotals on every mutation; they are never trusted from callers.
// Version backs the compare-and-swap used by the repository to serialise
// concurrent transitions on the same challan.
type DeliveryChallan struct {
	ID                  int64         `json:"id" db:"id"`
	Ref                 uuid.UUID     `json:"ref" db:"ref"`
	LeadOrderID         *int64        `json:"leadOrderId,omitempty" db:"lead_order_id"`
	EmployeeID          *int64        `json:"employeeId,omitempty" db:"employee_id"`
	ManagerID           *int64        `json:"managerId,omitempty" db:"manager_id"`
	AdminID             *int64        `json:"adminId,omitempty" db:"admin_id"`
	Status              DCStatus      `json:"status" db:"status"`
	Version             int64         `json:"version" db:"version"`
	RequestedQuantity   int64         `json:"requestedQuantity" db:"requested_quantity"`
	AvailableQuantity   int64         `json:"availableQuantity" db:"available_quantity"`
	DeliverableQuantity int64         `json:"deliverableQuantity" db:"deliverable_quantity"`
	DCDate              *time.Time    `json:"dcDate,omitempty" db:"dc_date"`
	DCRemarks           string        `json:"dcRemarks,omitempty" db:"dc_remarks"`
	DCCategory          string        `json:"dcCategory,omitempty" db:"dc_category"`
	DCNotes             string        `json:"dcNotes,omitempty" db:"dc_notes"`
	FinanceRemarks      string        `json:"financeRemarks,omitempty" db:"finance_remarks"`
	SplApproval         string        `json:"splApproval,omitempty" db:"spl_approval"`
	SMERemarks          string        `json:"smeRemarks,omitempty" db:"sme_remarks"`
	POPhotoURL          string        `json:"poPhotoUrl,omitempty" db:"po_photo_url"`
	HoldReason          string        `json:"holdReason,omitempty" db:"hold_reason"`
	CreatedAt           time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time     `json:"updatedAt" db:"updated_at"`
	ManagerRequestedAt  *time.Time    `json:"managerRequestedAt,omitempty" db:"manager_requested_at"`
	SentToManagerAt     *time.Time    `json:"sentToManagerAt,omitempty" db:"sent_to_manager_at"`
	AdminReviewedAt     *time.Time    `json:"adminReviewedAt,omitempty" db:"admin_reviewed_at"`
	Lines               []ProductLine `json:"productDetails,omitempty" db:"-"`
}

// ResolvedEmployeeID returns the owning employee id, preferring the one
// already on the challan (originating lead assignment) over the candidate
// supplied by a reviewer.
func (dc *DeliveryChallan) ResolvedEmployeeID(candidate *int64) *int64 {
	if dc.EmployeeID != nil {
		return dc.EmployeeID
	}
	return candidate
}

// clone returns a deep copy so transition attempts never mutate the caller's
// aggregate on failure.
func (dc DeliveryChallan) clone() DeliveryChallan {
	out := dc
	out.Lines = make([]ProductLine, len(dc.Lines))
	copy(out.Lines, dc.Lines)
	for i := range out.Lines {
		if dc.Lines[i].AvailableQuantity != nil {
			v := *dc.Lines[i].AvailableQuantity
			out.Lines[i].AvailableQuantity = &v
		}
	}
	return out
}

// ============================================================================
// CHALLAN SUMMARY (list views)
// ============================================================================

// ChallanSummary is the joined row returned by list queries.
type ChallanSummary struct {
	ID                  int64      `json:"id" db:"id"`
	Ref                 uuid.UUID  `json:"ref" db:"ref"`
	Status              DCStatus   `json:"status" db:"status"`
	EmployeeID          *int64     `json:"employeeId,omitempty" db:"employee_id"`
	LeadOrderID         *int64     `json:"leadOrderId,omitempty" db:"lead_order_id"`
	RequestedQuantity   int64      `json:"requestedQuantity" db:"requested_quantity"`
	DeliverableQuantity int64      `json:"deliverableQuantity" db:"deliverable_quantity"`
	LineCount           int        `json:"lineCount" db:"line_count"`
	DCDate              *time.Time `json:"dcDate,omitempty" db:"dc_date"`
	CreatedAt           time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time  `json:"updatedAt" db:"updated_at"`
}
