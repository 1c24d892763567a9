package dc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challan-erp/challan-erp/internal/shared"
)

var allStatuses = []DCStatus{
	StatusCreated, StatusPOSubmitted, StatusSaved, StatusRequested,
	StatusAccepted, StatusSentToManager, StatusPendingDC,
	StatusWarehouseProcessing, StatusCompleted, StatusHold,
}

func int64ptr(v int64) *int64 { return &v }

func testChallan(status DCStatus) DeliveryChallan {
	d := DeliveryChallan{
		ID:         1,
		Status:     status,
		Version:    1,
		EmployeeID: int64ptr(7),
		POPhotoURL: "https://files.example.com/po/1.pdf",
		Lines: []ProductLine{
			{Product: "Abacus", ProductName: "Abacus", Category: "Kits", Level: "L1",
				Quantity: 50, Strength: 50, Price: 100, LineOrder: 1},
		},
		CreatedAt: time.Now(),
	}
	if err := ReconcileTotals(&d); err != nil {
		panic(err)
	}
	return d
}

func deriveFor(d *DeliveryChallan, stock int64) {
	for i := range d.Lines {
		avail := stock
		d.Lines[i].AvailableQuantity = &avail
		d.Lines[i].DeliverableQuantity = min(d.Lines[i].Quantity, avail)
		d.Lines[i].RemainingQuantity = avail - d.Lines[i].DeliverableQuantity
	}
	if err := ReconcileTotals(d); err != nil {
		panic(err)
	}
}

func TestTransitionClosure(t *testing.T) {
	admin := shared.Actor{ID: 1, Role: shared.RoleAdmin}
	now := time.Now()

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				continue
			}
			in := testChallan(from)
			before := in.clone()

			_, err := Transition(in, to, admin, TransitionPayload{}, now)
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s must be rejected", from, to)
			assert.Equal(t, before.Status, in.Status)
			assert.Equal(t, before.Lines, in.Lines)
		}
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	in := testChallan(StatusCreated)
	_, err := Transition(in, DCStatus("shipped"), shared.Actor{ID: 1, Role: shared.RoleAdmin}, TransitionPayload{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionUnauthorizedRole(t *testing.T) {
	in := testChallan(StatusWarehouseProcessing)
	deriveFor(&in, 60)

	employee := shared.Actor{ID: 9, Role: shared.RoleEmployee}
	_, err := Transition(in, StatusCompleted, employee, TransitionPayload{}, time.Now())
	require.ErrorIs(t, err, ErrUnauthorizedActor)

	manager := shared.Actor{ID: 3, Role: shared.RoleManager}
	out, err := Transition(in, StatusCompleted, manager, TransitionPayload{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
}

func TestTransitionAssignmentGate(t *testing.T) {
	in := testChallan(StatusRequested)
	in.EmployeeID = nil
	coordinator := shared.Actor{ID: 2, Role: shared.RoleCoordinator}

	_, err := Transition(in, StatusAccepted, coordinator, TransitionPayload{}, time.Now())
	require.ErrorIs(t, err, ErrMissingReference)

	// Reviewer supplies the employee explicitly.
	out, err := Transition(in, StatusAccepted, coordinator, TransitionPayload{EmployeeID: int64ptr(42)}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, out.EmployeeID)
	assert.Equal(t, int64(42), *out.EmployeeID)
}

func TestTransitionLeadAssignmentWins(t *testing.T) {
	in := testChallan(StatusRequested)
	coordinator := shared.Actor{ID: 2, Role: shared.RoleCoordinator}

	out, err := Transition(in, StatusAccepted, coordinator, TransitionPayload{EmployeeID: int64ptr(99)}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7), *out.EmployeeID, "originating lead assignment takes precedence")
}

func TestTransitionStampsTimestampsOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	employee := shared.Actor{ID: 7, Role: shared.RoleEmployee}
	senior := shared.Actor{ID: 4, Role: shared.RoleSeniorCoordinator}
	coordinator := shared.Actor{ID: 2, Role: shared.RoleCoordinator}

	d := testChallan(StatusCreated)
	d, err := Transition(d, StatusRequested, employee, TransitionPayload{}, now)
	require.NoError(t, err)
	require.NotNil(t, d.ManagerRequestedAt)
	assert.Equal(t, now, *d.ManagerRequestedAt)

	d, err = Transition(d, StatusAccepted, coordinator, TransitionPayload{}, now.Add(time.Hour))
	require.NoError(t, err)
	d, err = Transition(d, StatusSentToManager, coordinator, TransitionPayload{}, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, d.SentToManagerAt)
	assert.Equal(t, now.Add(2*time.Hour), *d.SentToManagerAt)
	assert.Equal(t, now, *d.ManagerRequestedAt, "earlier stamp never rewritten")

	d, err = Transition(d, StatusPendingDC, senior, TransitionPayload{}, now.Add(3*time.Hour))
	require.NoError(t, err)
	d, err = Transition(d, StatusWarehouseProcessing, senior, TransitionPayload{}, now.Add(4*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, d.AdminReviewedAt)
	assert.Equal(t, now.Add(4*time.Hour), *d.AdminReviewedAt)
}

func TestTransitionPOSubmissionRequiresAttachment(t *testing.T) {
	in := testChallan(StatusCreated)
	in.POPhotoURL = ""
	employee := shared.Actor{ID: 7, Role: shared.RoleEmployee}

	_, err := Transition(in, StatusPOSubmitted, employee, TransitionPayload{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)

	out, err := Transition(in, StatusPOSubmitted, employee, TransitionPayload{POPhotoURL: "https://files.example.com/po/9.pdf"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/po/9.pdf", out.POPhotoURL)
}

func TestCompleteRequiresDerivedAvailability(t *testing.T) {
	in := testChallan(StatusWarehouseProcessing)
	manager := shared.Actor{ID: 3, Role: shared.RoleManager}

	_, err := Transition(in, StatusCompleted, manager, TransitionPayload{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRejectsInsufficientStock(t *testing.T) {
	in := testChallan(StatusWarehouseProcessing)
	deriveFor(&in, 30)
	manager := shared.Actor{ID: 3, Role: shared.RoleManager}

	_, err := Transition(in, StatusCompleted, manager, TransitionPayload{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestHoldRequiresReasonAndShortfall(t *testing.T) {
	manager := shared.Actor{ID: 3, Role: shared.RoleManager}
	now := time.Now()

	short := testChallan(StatusWarehouseProcessing)
	deriveFor(&short, 30)

	_, err := Transition(short, StatusHold, manager, TransitionPayload{}, now)
	require.ErrorIs(t, err, ErrInvalidTransition, "empty hold reason rejected")

	out, err := Transition(short, StatusHold, manager, TransitionPayload{HoldReason: "stock short by 20"}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusHold, out.Status)
	assert.Equal(t, "stock short by 20", out.HoldReason)

	// Sufficient stock needs the explicit override.
	full := testChallan(StatusWarehouseProcessing)
	deriveFor(&full, 60)
	_, err = Transition(full, StatusHold, manager, TransitionPayload{HoldReason: "client asked to wait"}, now)
	require.ErrorIs(t, err, ErrInvalidTransition)

	out, err = Transition(full, StatusHold, manager, TransitionPayload{HoldReason: "client asked to wait", Override: true}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusHold, out.Status)
}

func TestHoldIsResumable(t *testing.T) {
	manager := shared.Actor{ID: 3, Role: shared.RoleManager}
	now := time.Now()

	d := testChallan(StatusWarehouseProcessing)
	deriveFor(&d, 30)

	d, err := Transition(d, StatusHold, manager, TransitionPayload{HoldReason: "short stock"}, now)
	require.NoError(t, err)

	d, err = Transition(d, StatusWarehouseProcessing, manager, TransitionPayload{}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, d.HoldReason, "reason cleared on resume")

	// Restock arrives, availability re-derived, completion now legal.
	deriveFor(&d, 60)
	d, err = Transition(d, StatusCompleted, manager, TransitionPayload{}, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, d.Status)
	assert.True(t, d.Status.IsTerminal())
	assert.Empty(t, LegalTargets(StatusCompleted))
}

func TestSendToManagerFromRequested(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	coordinator := shared.Actor{ID: 2, Role: shared.RoleCoordinator}

	// Escalation is legal from any pre-manager state, acceptance included
	// but not required.
	out, err := Transition(testChallan(StatusRequested), StatusSentToManager, coordinator, TransitionPayload{}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusSentToManager, out.Status)
	require.NotNil(t, out.SentToManagerAt)
	assert.Equal(t, now, *out.SentToManagerAt)
}

func TestSendToManagerRequiresPositiveQuantity(t *testing.T) {
	in := testChallan(StatusSaved)
	in.Lines = nil
	require.NoError(t, ReconcileTotals(&in))

	employee := shared.Actor{ID: 7, Role: shared.RoleEmployee}
	_, err := Transition(in, StatusSentToManager, employee, TransitionPayload{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAllowedRoles(t *testing.T) {
	roles, ok := AllowedRoles(StatusWarehouseProcessing, StatusCompleted)
	require.True(t, ok)
	assert.ElementsMatch(t, []shared.Role{shared.RoleManager, shared.RoleAdmin}, roles)

	_, ok = AllowedRoles(StatusCompleted, StatusCreated)
	assert.False(t, ok)
}
