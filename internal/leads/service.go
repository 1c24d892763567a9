package leads

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/challan-erp/challan-erp/internal/dc"
	"github.com/challan-erp/challan-erp/internal/shared"
)

// ChallanCreator is the slice of the challan service conversion needs.
type ChallanCreator interface {
	CreateChallan(ctx context.Context, req dc.CreateChallanRequest, actor shared.Actor) (*dc.DeliveryChallan, error)
}

// Store is the persistence surface the service needs. *Repository implements
// it; tests substitute an in-memory fake.
type Store interface {
	GetLead(ctx context.Context, id int64) (*Lead, error)
	InsertLead(ctx context.Context, l Lead) (*Lead, error)
	UpdateStatus(ctx context.Context, id int64, from, to LeadStatus) error
	ListLeads(ctx context.Context, req ListLeadsRequest) ([]Lead, int, error)
}

// Service provides business logic for leads.
type Service struct {
	repo     Store
	challans ChallanCreator
	logger   *slog.Logger
}

// NewService constructs a leads service.
func NewService(repo Store, challans ChallanCreator, logger *slog.Logger) *Service {
	return &Service{repo: repo, challans: challans, logger: logger}
}

// CreateLead opens a lead.
func (s *Service) CreateLead(ctx context.Context, req CreateLeadRequest) (*Lead, error) {
	l := Lead{
		ClientName:      req.ClientName,
		Phone:           req.Phone,
		Email:           req.Email,
		ProductInterest: req.ProductInterest,
		AssignedTo:      req.AssignedTo,
		Status:          LeadOpen,
	}
	return s.repo.InsertLead(ctx, l)
}

// GetLead retrieves a lead by ID.
func (s *Service) GetLead(ctx context.Context, id int64) (*Lead, error) {
	return s.repo.GetLead(ctx, id)
}

// ListLeads retrieves leads with filters.
func (s *Service) ListLeads(ctx context.Context, req ListLeadsRequest) ([]Lead, int, error) {
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListLeads(ctx, req)
}

// CloseLead marks an open lead closed-won, making it convertible.
func (s *Service) CloseLead(ctx context.Context, id int64) (*Lead, error) {
	if err := s.repo.UpdateStatus(ctx, id, LeadOpen, LeadClosed); err != nil {
		return nil, err
	}
	return s.repo.GetLead(ctx, id)
}

// ConvertToClient converts a closed lead into a challan and returns the new
// challan directly. The explicit return value is the caller's only handle on
// the conversion result; nothing is parked in shared session state.
//
// The lead's assigned employee seeds the challan ownership and wins over any
// employee supplied on the request.
func (s *Service) ConvertToClient(ctx context.Context, leadID int64, req dc.CreateChallanRequest, actor shared.Actor) (*dc.DeliveryChallan, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if lead.Status != LeadClosed {
		return nil, fmt.Errorf("leads: lead %d must be closed before conversion, got %s", leadID, lead.Status)
	}

	req.LeadOrderID = &lead.ID
	if lead.AssignedTo != nil {
		req.EmployeeID = lead.AssignedTo
	}

	challan, err := s.challans.CreateChallan(ctx, req, actor)
	if err != nil {
		return nil, fmt.Errorf("create challan from lead %d: %w", leadID, err)
	}

	if err := s.repo.UpdateStatus(ctx, leadID, LeadClosed, LeadConverted); err != nil {
		// The challan exists; the lead flag is retryable. Surface but keep
		// the challan reference in the log for manual follow-up.
		s.logger.Error("mark lead converted", "lead_id", leadID, "challan_id", challan.ID, "error", err)
		return nil, err
	}

	s.logger.Info("lead converted", "lead_id", leadID, "challan_id", challan.ID, "status", string(challan.Status))
	return challan, nil
}
