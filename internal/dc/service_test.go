package dc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challan-erp/challan-erp/internal/shared"
)

// ============================================================================
// IN-MEMORY FAKES
// ============================================================================

type fakeStore struct {
	mu         sync.Mutex
	challans   map[int64]*DeliveryChallan
	nextID     int64
	nextLineID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{challans: make(map[int64]*DeliveryChallan)}
}

func (f *fakeStore) GetChallan(_ context.Context, id int64) (*DeliveryChallan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.challans[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := d.clone()
	return &out, nil
}

func (f *fakeStore) GetChallanByRef(_ context.Context, ref uuid.UUID) (*DeliveryChallan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.challans {
		if d.Ref == ref {
			out := d.clone()
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ListChallans(_ context.Context, req ListChallansRequest) ([]ChallanSummary, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []ChallanSummary
	for _, d := range f.challans {
		if req.Status != nil && d.Status != *req.Status {
			continue
		}
		items = append(items, ChallanSummary{
			ID: d.ID, Ref: d.Ref, Status: d.Status,
			EmployeeID: d.EmployeeID, LeadOrderID: d.LeadOrderID,
			RequestedQuantity:   d.RequestedQuantity,
			DeliverableQuantity: d.DeliverableQuantity,
			LineCount:           len(d.Lines),
			CreatedAt:           d.CreatedAt, UpdatedAt: d.UpdatedAt,
		})
	}
	return items, len(items), nil
}

func (f *fakeStore) ListIDsInStatus(_ context.Context, status DCStatus, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, d := range f.challans {
		if d.Status == status && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &fakeTx{store: f})
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) InsertChallan(_ context.Context, dc DeliveryChallan) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.nextID++
	dc.ID = t.store.nextID
	dc.Lines = nil
	t.store.challans[dc.ID] = &dc
	return dc.ID, nil
}

func (t *fakeTx) InsertLine(_ context.Context, line ProductLine) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	d, ok := t.store.challans[line.ChallanID]
	if !ok {
		return 0, ErrNotFound
	}
	t.store.nextLineID++
	line.ID = t.store.nextLineID
	d.Lines = append(d.Lines, line)
	return line.ID, nil
}

func (t *fakeTx) DeleteLines(_ context.Context, challanID int64) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if d, ok := t.store.challans[challanID]; ok {
		d.Lines = nil
	}
	return nil
}

func (t *fakeTx) UpdateDraft(_ context.Context, id int64, updates map[string]interface{}) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	d, ok := t.store.challans[id]
	if !ok {
		return ErrNotFound
	}
	for field, value := range updates {
		switch field {
		case "dc_remarks":
			d.DCRemarks = value.(string)
		case "dc_category":
			d.DCCategory = value.(string)
		case "dc_notes":
			d.DCNotes = value.(string)
		case "po_photo_url":
			d.POPhotoURL = value.(string)
		case "requested_quantity":
			d.RequestedQuantity = value.(int64)
		case "available_quantity":
			d.AvailableQuantity = value.(int64)
		case "deliverable_quantity":
			d.DeliverableQuantity = value.(int64)
		}
	}
	return nil
}

func (t *fakeTx) ApplyTransition(_ context.Context, dc DeliveryChallan, fromStatus DCStatus, fromVersion int64) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	d, ok := t.store.challans[dc.ID]
	if !ok {
		return ErrNotFound
	}
	if d.Status != fromStatus || d.Version != fromVersion {
		return ErrStaleChallan
	}
	lines := d.Lines
	updated := dc.clone()
	updated.Lines = lines
	updated.Version = fromVersion + 1
	t.store.challans[dc.ID] = &updated
	return nil
}

func (t *fakeTx) UpdateLineAvailability(_ context.Context, line ProductLine) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, d := range t.store.challans {
		for i := range d.Lines {
			if d.Lines[i].ID == line.ID {
				d.Lines[i].AvailableQuantity = line.AvailableQuantity
				d.Lines[i].DeliverableQuantity = line.DeliverableQuantity
				d.Lines[i].RemainingQuantity = line.RemainingQuantity
				d.Lines[i].Total = line.Total
				return nil
			}
		}
	}
	return ErrNotFound
}

type fakeInventory struct {
	mu    sync.Mutex
	stock map[string]int64
}

func (f *fakeInventory) Snapshot(context.Context) (InventoryIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[string]int64, len(f.stock))
	for k, v := range f.stock {
		copied[k] = v
	}
	return stubIndex{stock: copied}, nil
}

func (f *fakeInventory) set(name string, stock int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[name] = stock
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeInventory) {
	t.Helper()
	store := newFakeStore()
	inv := &fakeInventory{stock: make(map[string]int64)}
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.SetInventoryProvider(inv)
	return svc, store, inv
}

// ============================================================================
// TESTS
// ============================================================================

var (
	testEmployee    = shared.Actor{ID: 7, Role: shared.RoleEmployee}
	testCoordinator = shared.Actor{ID: 2, Role: shared.RoleCoordinator}
	testSenior      = shared.Actor{ID: 4, Role: shared.RoleSeniorCoordinator}
	testManager     = shared.Actor{ID: 3, Role: shared.RoleManager}
)

func abacusRequest() CreateChallanRequest {
	lead := int64(101)
	return CreateChallanRequest{
		LeadOrderID: &lead,
		Lines: []LineRequest{
			{Product: "Abacus", ProductName: "Abacus", Category: "Kits", Level: "L1",
				Quantity: 50, Strength: 50, Price: 100},
		},
	}
}

func TestCreateChallanRollsUpTotals(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, d.Status)
	assert.Equal(t, int64(50), d.RequestedQuantity)
	require.Len(t, d.Lines, 1)
	assert.Equal(t, 5000.0, d.Lines[0].Total)
	require.NotNil(t, d.EmployeeID)
	assert.Equal(t, testEmployee.ID, *d.EmployeeID)
	assert.NotEqual(t, uuid.Nil, d.Ref)
}

func TestCreateChallanDraft(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := abacusRequest()
	req.Draft = true

	d, err := svc.CreateChallan(context.Background(), req, testEmployee)
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, d.Status)
}

func TestCreateChallanRejectsEmptyLines(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := abacusRequest()
	req.Lines = nil

	_, err := svc.CreateChallan(context.Background(), req, testEmployee)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateChallanOnlyWhileEditable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)

	remarks := "urgent client"
	updated, err := svc.UpdateChallan(ctx, d.ID, UpdateChallanRequest{DCRemarks: &remarks}, testEmployee)
	require.NoError(t, err)
	assert.Equal(t, "urgent client", updated.DCRemarks)

	_, err = svc.ApplyTransition(ctx, d.ID, StatusRequested, testEmployee, TransitionRequest{}, "")
	require.NoError(t, err)

	_, err = svc.UpdateChallan(ctx, d.ID, UpdateChallanRequest{DCRemarks: &remarks}, testEmployee)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateChallanReplacesLines(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)

	lines := []LineRequest{
		{Product: "Abacus", Quantity: 20, Strength: 25, Price: 100},
		{Product: "Vedic Maths", Quantity: 10, Strength: 15, Price: 200},
	}
	updated, err := svc.UpdateChallan(ctx, d.ID, UpdateChallanRequest{Lines: &lines}, testEmployee)
	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)
	assert.Equal(t, int64(30), updated.RequestedQuantity)
	assert.Equal(t, 2500.0, updated.Lines[0].Total)
	assert.Equal(t, 3000.0, updated.Lines[1].Total)
}

// advanceToWarehouse walks a fresh challan to warehouse_processing.
func advanceToWarehouse(t *testing.T, svc *Service, id int64) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		target DCStatus
		actor  shared.Actor
	}{
		{StatusRequested, testEmployee},
		{StatusAccepted, testCoordinator},
		{StatusSentToManager, testCoordinator},
		{StatusPendingDC, testSenior},
		{StatusWarehouseProcessing, testSenior},
	}
	for _, step := range steps {
		_, err := svc.ApplyTransition(ctx, id, step.target, step.actor, TransitionRequest{}, "")
		require.NoError(t, err, "transition to %s", step.target)
	}
}

func TestWarehouseShortStockFlow(t *testing.T) {
	svc, _, inv := newTestService(t)
	ctx := context.Background()
	inv.set("Abacus", 30)

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)
	advanceToWarehouse(t, svc, d.ID)

	// Warehouse snapshot: 30 on hand against 50 requested.
	d, err = svc.RefreshAvailability(ctx, d.ID, testManager)
	require.NoError(t, err)
	assert.Equal(t, int64(30), d.AvailableQuantity)
	assert.Equal(t, int64(30), d.DeliverableQuantity)
	assert.Equal(t, int64(0), d.Lines[0].RemainingQuantity)

	// Completion blocked while short.
	_, err = svc.ApplyTransition(ctx, d.ID, StatusCompleted, testManager, TransitionRequest{}, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Hold with a reason is the designed soft-failure path.
	d, err = svc.ApplyTransition(ctx, d.ID, StatusHold, testManager,
		TransitionRequest{HoldReason: "20 kits short, restock ordered"}, "")
	require.NoError(t, err)
	assert.Equal(t, StatusHold, d.Status)
	assert.Equal(t, "20 kits short, restock ordered", d.HoldReason)
}

func TestRestockResumeAndComplete(t *testing.T) {
	svc, _, inv := newTestService(t)
	ctx := context.Background()
	inv.set("Abacus", 30)

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)
	advanceToWarehouse(t, svc, d.ID)

	_, err = svc.RefreshAvailability(ctx, d.ID, testManager)
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, d.ID, StatusHold, testManager,
		TransitionRequest{HoldReason: "short stock"}, "")
	require.NoError(t, err)

	// Restock arrives; resume re-derives against the fresh snapshot.
	inv.set("Abacus", 60)
	d, err = svc.ApplyTransition(ctx, d.ID, StatusWarehouseProcessing, testManager, TransitionRequest{}, "")
	require.NoError(t, err)
	assert.Empty(t, d.HoldReason)
	assert.Equal(t, int64(60), d.AvailableQuantity)
	assert.Equal(t, int64(50), d.DeliverableQuantity)
	assert.Equal(t, int64(10), d.Lines[0].RemainingQuantity)

	d, err = svc.ApplyTransition(ctx, d.ID, StatusCompleted, testManager, TransitionRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, d.Status)
}

func TestTransitionConcurrencyLosesGracefully(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)

	// A concurrent actor commits first: status moves underneath the caller.
	loaded, err := store.GetChallan(ctx, d.ID)
	require.NoError(t, err)
	out, err := Transition(*loaded, StatusRequested, testEmployee, TransitionPayload{}, loaded.CreatedAt)
	require.NoError(t, err)
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ApplyTransition(ctx, out, loaded.Status, loaded.Version)
	}))

	// The late request targets an edge that no longer exists from the
	// current status and is rejected without overwriting anything.
	_, err = svc.ApplyTransition(ctx, d.ID, StatusPOSubmitted, testEmployee, TransitionRequest{}, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	cur, err := store.GetChallan(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, cur.Status)
}

func TestTransitionObserverSeesResults(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	type obs struct {
		from, to DCStatus
		result   string
	}
	var seen []obs
	svc.SetTransitionObserver(func(from, to DCStatus, result string) {
		seen = append(seen, obs{from, to, result})
	})

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)

	_, err = svc.ApplyTransition(ctx, d.ID, StatusRequested, testEmployee, TransitionRequest{}, "")
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, d.ID, StatusCompleted, testEmployee, TransitionRequest{}, "")
	require.Error(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, obs{StatusCreated, StatusRequested, "applied"}, seen[0])
	assert.Equal(t, obs{StatusRequested, StatusCompleted, "rejected"}, seen[1])
}

func TestRefreshAvailabilityOnlyAtWarehouse(t *testing.T) {
	svc, _, inv := newTestService(t)
	ctx := context.Background()
	inv.set("Abacus", 100)

	d, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)

	_, err = svc.RefreshAvailability(ctx, d.ID, testManager)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListChallansByStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateChallan(ctx, abacusRequest(), testEmployee)
	require.NoError(t, err)
	draft := abacusRequest()
	draft.Draft = true
	_, err = svc.CreateChallan(ctx, draft, testEmployee)
	require.NoError(t, err)

	status := StatusSaved
	items, total, err := svc.ListChallans(ctx, ListChallansRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, StatusSaved, items[0].Status)
}
