package dc

import (
	"fmt"
	"time"

	"github.com/challan-erp/challan-erp/internal/shared"
)

// TransitionPayload carries the optional inputs a transition edge may need.
type TransitionPayload struct {
	// EmployeeID is the reviewer-selected owning employee. The id already on
	// the challan always wins over this candidate.
	EmployeeID *int64
	// POPhotoURL attaches the proof-of-order reference on the po_submitted edge.
	POPhotoURL string
	// HoldReason is mandatory when moving to hold.
	HoldReason string
	// Override lets a reviewer hold a challan even when every line has
	// sufficient stock.
	Override bool
	// Note is free text copied into the approval history.
	Note string
}

type edge struct {
	from DCStatus
	to   DCStatus
}

type edgeRule struct {
	roles map[shared.Role]struct{}
	// check validates edge preconditions against the pre-transition state.
	check func(dc *DeliveryChallan, p TransitionPayload) error
	// apply stamps edge side effects (timestamps, references) on the copy
	// that is about to commit.
	apply func(dc *DeliveryChallan, p TransitionPayload, now time.Time)
}

func roles(rs ...shared.Role) map[shared.Role]struct{} {
	m := make(map[shared.Role]struct{}, len(rs))
	for _, r := range rs {
		m[r] = struct{}{}
	}
	return m
}

func requireLines(dc *DeliveryChallan, _ TransitionPayload) error {
	if len(dc.Lines) == 0 {
		return fmt.Errorf("%w: challan has no product lines", ErrInvalidTransition)
	}
	return nil
}

// requireEmployee enforces the assignment gate on pipeline-entry edges: the
// challan must resolve an owning employee from either its originating lead or
// the reviewer's explicit selection.
func requireEmployee(dc *DeliveryChallan, p TransitionPayload) error {
	if dc.ResolvedEmployeeID(p.EmployeeID) == nil {
		return fmt.Errorf("%w: no employee assigned", ErrMissingReference)
	}
	return nil
}

func adoptEmployee(dc *DeliveryChallan, p TransitionPayload, _ time.Time) {
	dc.EmployeeID = dc.ResolvedEmployeeID(p.EmployeeID)
}

// stampOnce sets a write-once audit timestamp. Re-entering a state (e.g. a
// hold resume) never rewrites the original stamp.
func stampOnce(at **time.Time, now time.Time) {
	if *at == nil {
		t := now
		*at = &t
	}
}

// transitions is the single source of truth for legal status edges. Any
// (from, to) pair missing here is rejected.
var transitions = map[edge]edgeRule{
	{StatusCreated, StatusPOSubmitted}: {
		roles: roles(shared.RoleEmployee, shared.RoleAdmin),
		check: func(dc *DeliveryChallan, p TransitionPayload) error {
			if dc.POPhotoURL == "" && p.POPhotoURL == "" {
				return fmt.Errorf("%w: proof-of-order attachment required", ErrInvalidTransition)
			}
			return nil
		},
		apply: func(dc *DeliveryChallan, p TransitionPayload, _ time.Time) {
			if p.POPhotoURL != "" {
				dc.POPhotoURL = p.POPhotoURL
			}
		},
	},
	{StatusCreated, StatusRequested}: {
		roles: roles(shared.RoleEmployee, shared.RoleCoordinator, shared.RoleAdmin),
		check: chain(requireLines, requireEmployee),
		apply: func(dc *DeliveryChallan, p TransitionPayload, now time.Time) {
			adoptEmployee(dc, p, now)
			stampOnce(&dc.ManagerRequestedAt, now)
		},
	},
	{StatusSaved, StatusRequested}: {
		roles: roles(shared.RoleEmployee, shared.RoleCoordinator, shared.RoleAdmin),
		check: chain(requireLines, requireEmployee),
		apply: func(dc *DeliveryChallan, p TransitionPayload, now time.Time) {
			adoptEmployee(dc, p, now)
			stampOnce(&dc.ManagerRequestedAt, now)
		},
	},
	{StatusRequested, StatusAccepted}: {
		roles: roles(shared.RoleCoordinator, shared.RoleAdmin),
		check: chain(requireLines, requireEmployee),
		apply: adoptEmployee,
	},
	{StatusAccepted, StatusSentToManager}:    sendToManagerRule(),
	{StatusSaved, StatusSentToManager}:       sendToManagerRule(),
	{StatusCreated, StatusSentToManager}:     sendToManagerRule(),
	{StatusPOSubmitted, StatusSentToManager}: sendToManagerRule(),
	{StatusRequested, StatusSentToManager}:   sendToManagerRule(),
	{StatusSentToManager, StatusPendingDC}: {
		roles: roles(shared.RoleSeniorCoordinator, shared.RoleAdmin),
	},
	{StatusPendingDC, StatusWarehouseProcessing}: {
		roles: roles(shared.RoleSeniorCoordinator, shared.RoleAdmin),
		check: requireEmployee,
		apply: func(dc *DeliveryChallan, p TransitionPayload, now time.Time) {
			adoptEmployee(dc, p, now)
			stampOnce(&dc.AdminReviewedAt, now)
		},
	},
	{StatusWarehouseProcessing, StatusCompleted}: {
		roles: roles(shared.RoleManager, shared.RoleAdmin),
		check: func(dc *DeliveryChallan, _ TransitionPayload) error {
			for i := range dc.Lines {
				if !dc.Lines[i].AvailabilityDerived() {
					return fmt.Errorf("%w: line %d has no availability snapshot", ErrInvalidTransition, i+1)
				}
				if dc.Lines[i].Insufficient() {
					return fmt.Errorf("%w: line %d short by %d units, hold instead",
						ErrInvalidTransition, i+1, dc.Lines[i].Quantity-dc.Lines[i].DeliverableQuantity)
				}
			}
			return nil
		},
	},
	{StatusWarehouseProcessing, StatusHold}: {
		roles: roles(shared.RoleManager, shared.RoleAdmin),
		check: func(dc *DeliveryChallan, p TransitionPayload) error {
			if p.HoldReason == "" {
				return fmt.Errorf("%w: hold reason required", ErrInvalidTransition)
			}
			if p.Override {
				return nil
			}
			for i := range dc.Lines {
				if dc.Lines[i].Insufficient() {
					return nil
				}
			}
			return fmt.Errorf("%w: all lines have sufficient stock, set override to hold anyway", ErrInvalidTransition)
		},
		apply: func(dc *DeliveryChallan, p TransitionPayload, _ time.Time) {
			dc.HoldReason = p.HoldReason
		},
	},
	{StatusHold, StatusWarehouseProcessing}: {
		roles: roles(shared.RoleManager, shared.RoleAdmin),
		apply: func(dc *DeliveryChallan, _ TransitionPayload, _ time.Time) {
			dc.HoldReason = ""
		},
	},
}

func sendToManagerRule() edgeRule {
	return edgeRule{
		roles: roles(shared.RoleCoordinator, shared.RoleAdmin, shared.RoleEmployee),
		check: chain(requireLines, requireEmployee, func(dc *DeliveryChallan, _ TransitionPayload) error {
			if dc.RequestedQuantity <= 0 {
				return fmt.Errorf("%w: requested quantity must be positive", ErrInvalidTransition)
			}
			return nil
		}),
		apply: func(dc *DeliveryChallan, p TransitionPayload, now time.Time) {
			adoptEmployee(dc, p, now)
			stampOnce(&dc.SentToManagerAt, now)
		},
	}
}

func chain(checks ...func(*DeliveryChallan, TransitionPayload) error) func(*DeliveryChallan, TransitionPayload) error {
	return func(dc *DeliveryChallan, p TransitionPayload) error {
		for _, c := range checks {
			if err := c(dc, p); err != nil {
				return err
			}
		}
		return nil
	}
}

// CanTransition reports whether the (from, to) edge exists, ignoring actor
// and preconditions.
func CanTransition(from, to DCStatus) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// LegalTargets lists the statuses reachable from the given one.
func LegalTargets(from DCStatus) []DCStatus {
	var out []DCStatus
	for e := range transitions {
		if e.from == from {
			out = append(out, e.to)
		}
	}
	return out
}

// AllowedRoles returns the roles permitted on an edge, or false if the edge
// is not legal at all.
func AllowedRoles(from, to DCStatus) ([]shared.Role, bool) {
	rule, ok := transitions[edge{from, to}]
	if !ok {
		return nil, false
	}
	out := make([]shared.Role, 0, len(rule.roles))
	for r := range rule.roles {
		out = append(out, r)
	}
	return out, true
}

// Transition applies a status change to a copy of the challan and returns the
// updated aggregate. On any failure the input is untouched and the zero value
// is returned alongside the error.
//
// Order of checks: edge legality, actor role, edge preconditions. Side
// effects (audit timestamps, adopted references) and the roll-up
// recomputation happen only after every check passes, so a transition either
// fully applies or not at all.
func Transition(in DeliveryChallan, target DCStatus, actor shared.Actor, p TransitionPayload, now time.Time) (DeliveryChallan, error) {
	if !target.IsValid() {
		return DeliveryChallan{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	rule, ok := transitions[edge{in.Status, target}]
	if !ok {
		return DeliveryChallan{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, in.Status, target)
	}
	if _, ok := rule.roles[actor.Role]; !ok {
		return DeliveryChallan{}, fmt.Errorf("%w: role %q on %s -> %s", ErrUnauthorizedActor, actor.Role, in.Status, target)
	}
	out := in.clone()
	if rule.check != nil {
		if err := rule.check(&out, p); err != nil {
			return DeliveryChallan{}, err
		}
	}
	out.Status = target
	if rule.apply != nil {
		rule.apply(&out, p, now)
	}
	if err := ReconcileTotals(&out); err != nil {
		return DeliveryChallan{}, err
	}
	out.UpdatedAt = now
	return out, nil
}
