package dc

import "time"

// LineRequest is one product row as sent by callers. Total is advisory only:
// the computed value always wins.
type LineRequest struct {
	Product     string  `json:"product" validate:"required_without=ProductName"`
	ProductName string  `json:"productName"`
	Class       string  `json:"class"`
	Category    string  `json:"category"`
	Level       string  `json:"level"`
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	Strength    int64   `json:"strength" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Total       float64 `json:"total"`
	LineOrder   int     `json:"lineOrder" validate:"gte=0"`
}

func (r LineRequest) toLine() ProductLine {
	return ProductLine{
		Product:     r.Product,
		ProductName: r.ProductName,
		Class:       r.Class,
		Category:    r.Category,
		Level:       r.Level,
		Quantity:    r.Quantity,
		Strength:    r.Strength,
		Price:       r.Price,
		LineOrder:   r.LineOrder,
	}
}

// CreateChallanRequest opens a challan, either in created (lead conversion)
// or saved (explicit save from a closed lead) when Draft is set.
type CreateChallanRequest struct {
	LeadOrderID    *int64        `json:"leadOrderId"`
	EmployeeID     *int64        `json:"employeeId"`
	Draft          bool          `json:"draft"`
	DCDate         *time.Time    `json:"dcDate"`
	DCCategory     string        `json:"dcCategory"`
	DCRemarks      string        `json:"dcRemarks"`
	DCNotes        string        `json:"dcNotes"`
	FinanceRemarks string        `json:"financeRemarks"`
	SplApproval    string        `json:"splApproval"`
	SMERemarks     string        `json:"smeRemarks"`
	POPhotoURL     string        `json:"poPhotoUrl"`
	Lines          []LineRequest `json:"productDetails" validate:"required,min=1,dive"`
}

// UpdateChallanRequest edits a pre-pipeline challan. Nil fields are left
// untouched; a non-nil Lines replaces the whole line set.
type UpdateChallanRequest struct {
	DCDate         *time.Time     `json:"dcDate"`
	DCCategory     *string        `json:"dcCategory"`
	DCRemarks      *string        `json:"dcRemarks"`
	DCNotes        *string        `json:"dcNotes"`
	FinanceRemarks *string        `json:"financeRemarks"`
	SplApproval    *string        `json:"splApproval"`
	SMERemarks     *string        `json:"smeRemarks"`
	POPhotoURL     *string        `json:"poPhotoUrl"`
	Lines          *[]LineRequest `json:"productDetails" validate:"omitempty,min=1,dive"`
}

// TransitionRequest carries the edge-specific payload.
type TransitionRequest struct {
	EmployeeID *int64 `json:"employeeId"`
	POPhotoURL string `json:"poPhotoUrl" validate:"omitempty,url"`
	HoldReason string `json:"holdReason"`
	Override   bool   `json:"override"`
	Note       string `json:"note"`
}

func (r TransitionRequest) payload() TransitionPayload {
	return TransitionPayload{
		EmployeeID: r.EmployeeID,
		POPhotoURL: r.POPhotoURL,
		HoldReason: r.HoldReason,
		Override:   r.Override,
		Note:       r.Note,
	}
}

// ListChallansRequest filters the challan list.
type ListChallansRequest struct {
	Status      *DCStatus
	EmployeeID  *int64
	LeadOrderID *int64
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      *string
	Limit       int
	Offset      int
}

// ListChallansResponse is the paginated list envelope.
type ListChallansResponse struct {
	Items []ChallanSummary `json:"items"`
	Total int              `json:"total"`
}
