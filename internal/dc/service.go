package dc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/challan-erp/challan-erp/internal/shared"
)

// Store is the persistence surface the service needs. *Repository implements
// it; tests substitute an in-memory fake.
type Store interface {
	GetChallan(ctx context.Context, id int64) (*DeliveryChallan, error)
	GetChallanByRef(ctx context.Context, ref uuid.UUID) (*DeliveryChallan, error)
	ListChallans(ctx context.Context, req ListChallansRequest) ([]ChallanSummary, int, error)
	ListIDsInStatus(ctx context.Context, status DCStatus, limit int) ([]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// InventoryProvider supplies read-only stock snapshots. The warehouse module
// implements it; this package never mutates stock.
type InventoryProvider interface {
	Snapshot(ctx context.Context) (InventoryIndex, error)
}

const approvalModule = "DC"

// Service provides business logic for the challan lifecycle.
type Service struct {
	store       Store
	inventory   InventoryProvider
	approvals   *shared.ApprovalRecorder
	audit       *shared.AuditLogger
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
	now         func() time.Time
	observe     func(from, to DCStatus, result string)
}

// NewService constructs a challan service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetInventoryProvider wires the warehouse stock oracle.
func (s *Service) SetInventoryProvider(p InventoryProvider) {
	s.inventory = p
}

// SetApprovalRecorder wires approval history persistence.
func (s *Service) SetApprovalRecorder(r *shared.ApprovalRecorder) {
	s.approvals = r
}

// SetAuditLogger wires audit trail persistence.
func (s *Service) SetAuditLogger(a *shared.AuditLogger) {
	s.audit = a
}

// SetIdempotencyStore enables Idempotency-Key replay protection on
// transitions.
func (s *Service) SetIdempotencyStore(store *shared.IdempotencyStore) {
	s.idempotency = store
}

// SetTransitionObserver wires the metrics hook called once per transition
// attempt with result "applied" or "rejected".
func (s *Service) SetTransitionObserver(fn func(from, to DCStatus, result string)) {
	s.observe = fn
}

func (s *Service) observeTransition(from, to DCStatus, result string) {
	if s.observe != nil {
		s.observe(from, to, result)
	}
}

// ============================================================================
// CREATE / EDIT
// ============================================================================

// CreateChallan opens a challan in created, or saved when req.Draft is set.
// The returned aggregate is the caller's handle on the new challan; nothing
// is smuggled through shared session state.
func (s *Service) CreateChallan(ctx context.Context, req CreateChallanRequest, actor shared.Actor) (*DeliveryChallan, error) {
	lines := make([]ProductLine, len(req.Lines))
	for i, lr := range req.Lines {
		lines[i] = lr.toLine()
		if lines[i].LineOrder == 0 {
			lines[i].LineOrder = i + 1
		}
	}
	if err := ValidateNewLines(lines); err != nil {
		return nil, err
	}

	now := s.now()
	status := StatusCreated
	if req.Draft {
		status = StatusSaved
	}

	employeeID := req.EmployeeID
	if employeeID == nil && actor.Role == shared.RoleEmployee {
		id := actor.ID
		employeeID = &id
	}

	d := DeliveryChallan{
		Ref:            uuid.New(),
		LeadOrderID:    req.LeadOrderID,
		EmployeeID:     employeeID,
		Status:         status,
		Version:        1,
		DCDate:         req.DCDate,
		DCRemarks:      req.DCRemarks,
		DCCategory:     req.DCCategory,
		DCNotes:        req.DCNotes,
		FinanceRemarks: req.FinanceRemarks,
		SplApproval:    req.SplApproval,
		SMERemarks:     req.SMERemarks,
		POPhotoURL:     req.POPhotoURL,
		CreatedAt:      now,
		UpdatedAt:      now,
		Lines:          lines,
	}
	if err := ReconcileTotals(&d); err != nil {
		return nil, err
	}

	var id int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		newID, err := tx.InsertChallan(ctx, d)
		if err != nil {
			return fmt.Errorf("insert challan: %w", err)
		}
		id = newID
		for _, line := range d.Lines {
			line.ChallanID = id
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "dc.create", id, map[string]any{
		"status":      string(status),
		"leadOrderId": req.LeadOrderID,
	})
	return s.store.GetChallan(ctx, id)
}

// UpdateChallan edits a challan that is still in an editable status. Nil
// request fields are untouched; supplied lines replace the whole set and the
// roll-ups are recomputed.
func (s *Service) UpdateChallan(ctx context.Context, id int64, req UpdateChallanRequest, actor shared.Actor) (*DeliveryChallan, error) {
	existing, err := s.store.GetChallan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get challan: %w", err)
	}
	if !existing.Status.CanEdit() {
		return nil, fmt.Errorf("%w: cannot edit challan in status %s", ErrInvalidTransition, existing.Status)
	}

	updates := make(map[string]interface{})
	if req.DCDate != nil {
		updates["dc_date"] = *req.DCDate
	}
	if req.DCCategory != nil {
		updates["dc_category"] = *req.DCCategory
	}
	if req.DCRemarks != nil {
		updates["dc_remarks"] = *req.DCRemarks
	}
	if req.DCNotes != nil {
		updates["dc_notes"] = *req.DCNotes
	}
	if req.FinanceRemarks != nil {
		updates["finance_remarks"] = *req.FinanceRemarks
	}
	if req.SplApproval != nil {
		updates["spl_approval"] = *req.SplApproval
	}
	if req.SMERemarks != nil {
		updates["sme_remarks"] = *req.SMERemarks
	}
	if req.POPhotoURL != nil {
		updates["po_photo_url"] = *req.POPhotoURL
	}

	var newLines []ProductLine
	if req.Lines != nil {
		newLines = make([]ProductLine, len(*req.Lines))
		for i, lr := range *req.Lines {
			newLines[i] = lr.toLine()
			newLines[i].ChallanID = id
			if newLines[i].LineOrder == 0 {
				newLines[i].LineOrder = i + 1
			}
		}
		if err := ValidateNewLines(newLines); err != nil {
			return nil, err
		}

		recomputed := existing.clone()
		recomputed.Lines = newLines
		if err := ReconcileTotals(&recomputed); err != nil {
			return nil, err
		}
		newLines = recomputed.Lines
		updates["requested_quantity"] = recomputed.RequestedQuantity
		updates["available_quantity"] = recomputed.AvailableQuantity
		updates["deliverable_quantity"] = recomputed.DeliverableQuantity
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDraft(ctx, id, updates); err != nil {
			return fmt.Errorf("update challan: %w", err)
		}
		if req.Lines != nil {
			if err := tx.DeleteLines(ctx, id); err != nil {
				return fmt.Errorf("delete lines: %w", err)
			}
			for _, line := range newLines {
				if _, err := tx.InsertLine(ctx, line); err != nil {
					return fmt.Errorf("insert line: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "dc.update", id, nil)
	return s.store.GetChallan(ctx, id)
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// ApplyTransition moves a challan to the target status on behalf of the
// actor. The edge table owns legality, roles, and preconditions; this method
// adds idempotent replay protection, a fresh availability snapshot for
// warehouse-stage targets, and the compare-and-swap persist.
func (s *Service) ApplyTransition(ctx context.Context, id int64, target DCStatus, actor shared.Actor, req TransitionRequest, idemKey string) (*DeliveryChallan, error) {
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, approvalModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.logger.Info("transition replayed", "challan_id", id, "idempotency_key", idemKey)
				return s.store.GetChallan(ctx, id)
			}
			return nil, err
		}
	}

	out, err := s.applyTransition(ctx, id, target, actor, req)
	if err != nil && idemKey != "" && s.idempotency != nil {
		if delErr := s.idempotency.Delete(ctx, idemKey); delErr != nil {
			s.logger.Error("release idempotency key", "key", idemKey, "error", delErr)
		}
	}
	return out, err
}

func (s *Service) applyTransition(ctx context.Context, id int64, target DCStatus, actor shared.Actor, req TransitionRequest) (*DeliveryChallan, error) {
	existing, err := s.store.GetChallan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get challan: %w", err)
	}

	cur := *existing
	// The terminal decision and a hold resume both run against the latest
	// stock, not whatever snapshot an earlier review left behind.
	rederive := target == StatusCompleted ||
		(cur.Status == StatusHold && target == StatusWarehouseProcessing)
	if rederive && s.inventory != nil {
		idx, err := s.inventory.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("inventory snapshot: %w", err)
		}
		refreshed := cur.clone()
		if err := DeriveAllAvailability(&refreshed, idx); err != nil {
			return nil, err
		}
		cur = refreshed
	}

	out, err := Transition(cur, target, actor, req.payload(), s.now())
	if err != nil {
		s.observeTransition(existing.Status, target, "rejected")
		return nil, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ApplyTransition(ctx, out, existing.Status, existing.Version); err != nil {
			return err
		}
		// Line totals follow the status-dependent driver and availability may
		// have been re-derived, so lines persist with every transition.
		for _, line := range out.Lines {
			if err := tx.UpdateLineAvailability(ctx, line); err != nil {
				return fmt.Errorf("update line %d: %w", line.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.observeTransition(existing.Status, target, "rejected")
		return nil, err
	}

	s.observeTransition(existing.Status, target, "applied")
	s.recordApproval(ctx, actor, existing.Status, target, out.Ref, req.Note)
	s.recordAudit(ctx, actor, "dc.transition", id, map[string]any{
		"from": string(existing.Status),
		"to":   string(target),
	})
	return s.store.GetChallan(ctx, id)
}

// RefreshAvailability re-derives every line against the latest warehouse
// snapshot while the challan sits at the warehouse. Idempotent for a given
// snapshot.
func (s *Service) RefreshAvailability(ctx context.Context, id int64, actor shared.Actor) (*DeliveryChallan, error) {
	existing, err := s.store.GetChallan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get challan: %w", err)
	}
	if existing.Status != StatusWarehouseProcessing && existing.Status != StatusHold {
		return nil, fmt.Errorf("%w: availability derived only at the warehouse, status %s", ErrInvalidTransition, existing.Status)
	}
	if s.inventory == nil {
		return nil, errors.New("dc: no inventory provider configured")
	}

	idx, err := s.inventory.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory snapshot: %w", err)
	}
	out := existing.clone()
	if err := DeriveAllAvailability(&out, idx); err != nil {
		return nil, err
	}
	out.UpdatedAt = s.now()

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ApplyTransition(ctx, out, existing.Status, existing.Version); err != nil {
			return err
		}
		for _, line := range out.Lines {
			if err := tx.UpdateLineAvailability(ctx, line); err != nil {
				return fmt.Errorf("update line %d: %w", line.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "dc.derive_availability", id, nil)
	return s.store.GetChallan(ctx, id)
}

// ============================================================================
// QUERY OPERATIONS
// ============================================================================

// GetChallan retrieves a challan by ID.
func (s *Service) GetChallan(ctx context.Context, id int64) (*DeliveryChallan, error) {
	return s.store.GetChallan(ctx, id)
}

// GetChallanByRef retrieves a challan by external reference.
func (s *Service) GetChallanByRef(ctx context.Context, ref uuid.UUID) (*DeliveryChallan, error) {
	return s.store.GetChallanByRef(ctx, ref)
}

// ListChallans returns a paginated, filtered challan list.
func (s *Service) ListChallans(ctx context.Context, req ListChallansRequest) ([]ChallanSummary, int, error) {
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.store.ListChallans(ctx, req)
}

// ListApprovals returns the approval history for a challan.
func (s *Service) ListApprovals(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	existing, err := s.store.GetChallan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get challan: %w", err)
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, existing.Ref)
}

// ListStuckChallans lists ids that have sat in the given status, for the
// reminder job.
func (s *Service) ListStuckChallans(ctx context.Context, status DCStatus, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListIDsInStatus(ctx, status, limit)
}

// ============================================================================
// HISTORY HELPERS
// ============================================================================

func approvalActionFor(from, to DCStatus) shared.ApprovalAction {
	switch to {
	case StatusPOSubmitted, StatusRequested:
		return shared.ApprovalSubmit
	case StatusAccepted:
		return shared.ApprovalAccept
	case StatusSentToManager, StatusPendingDC:
		return shared.ApprovalSend
	case StatusWarehouseProcessing:
		if from == StatusHold {
			return shared.ApprovalResume
		}
		return shared.ApprovalReview
	case StatusHold:
		return shared.ApprovalHold
	case StatusCompleted:
		return shared.ApprovalComplete
	default:
		return shared.ApprovalSubmit
	}
}

// History writes are best effort: a failed approval or audit insert is
// logged, not bubbled, because the transition itself already committed.
func (s *Service) recordApproval(ctx context.Context, actor shared.Actor, from, to DCStatus, ref uuid.UUID, note string) {
	if s.approvals == nil {
		return
	}
	log := shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   ref,
		ActorID: actor.ID,
		Action:  approvalActionFor(from, to),
		Note:    note,
		At:      s.now(),
	}
	if err := s.approvals.Record(ctx, log); err != nil {
		s.logger.Error("record approval", "ref", ref, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "delivery_challan",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record audit", "challan_id", id, "error", err)
	}
}
