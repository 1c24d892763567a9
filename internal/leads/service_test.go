package leads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challan-erp/challan-erp/internal/dc"
	"github.com/challan-erp/challan-erp/internal/shared"
)

type fakeLeadStore struct {
	leads  map[int64]*Lead
	nextID int64
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{leads: make(map[int64]*Lead)}
}

func (f *fakeLeadStore) GetLead(_ context.Context, id int64) (*Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLeadStore) InsertLead(_ context.Context, l Lead) (*Lead, error) {
	f.nextID++
	l.ID = f.nextID
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	f.leads[l.ID] = &l
	cp := l
	return &cp, nil
}

func (f *fakeLeadStore) UpdateStatus(_ context.Context, id int64, from, to LeadStatus) error {
	l, ok := f.leads[id]
	if !ok {
		return ErrNotFound
	}
	if l.Status != from {
		return fmt.Errorf("leads: lead %d not in status %s", id, from)
	}
	l.Status = to
	return nil
}

func (f *fakeLeadStore) ListLeads(_ context.Context, req ListLeadsRequest) ([]Lead, int, error) {
	var out []Lead
	for _, l := range f.leads {
		if req.Status != nil && l.Status != *req.Status {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

type fakeChallanCreator struct {
	lastReq dc.CreateChallanRequest
	fail    error
}

func (f *fakeChallanCreator) CreateChallan(_ context.Context, req dc.CreateChallanRequest, _ shared.Actor) (*dc.DeliveryChallan, error) {
	f.lastReq = req
	if f.fail != nil {
		return nil, f.fail
	}
	return &dc.DeliveryChallan{
		ID:          42,
		Status:      dc.StatusCreated,
		LeadOrderID: req.LeadOrderID,
		EmployeeID:  req.EmployeeID,
	}, nil
}

func newLeadsService() (*Service, *fakeLeadStore, *fakeChallanCreator) {
	store := newFakeLeadStore()
	creator := &fakeChallanCreator{}
	return NewService(store, creator, slog.New(slog.NewTextHandler(io.Discard, nil))), store, creator
}

var testActor = shared.Actor{ID: 7, Role: shared.RoleEmployee}

func convertRequest() dc.CreateChallanRequest {
	return dc.CreateChallanRequest{
		Lines: []dc.LineRequest{{Product: "Abacus", Quantity: 50, Strength: 50, Price: 100}},
	}
}

func TestConvertRequiresClosedLead(t *testing.T) {
	svc, store, _ := newLeadsService()
	ctx := context.Background()

	lead, err := store.InsertLead(ctx, Lead{ClientName: "Acme School", Status: LeadOpen})
	require.NoError(t, err)

	_, err = svc.ConvertToClient(ctx, lead.ID, convertRequest(), testActor)
	require.Error(t, err)
}

func TestConvertReturnsChallanAndMarksLead(t *testing.T) {
	svc, store, creator := newLeadsService()
	ctx := context.Background()

	emp := int64(15)
	lead, err := store.InsertLead(ctx, Lead{ClientName: "Acme School", Status: LeadClosed, AssignedTo: &emp})
	require.NoError(t, err)

	challan, err := svc.ConvertToClient(ctx, lead.ID, convertRequest(), testActor)
	require.NoError(t, err)
	require.NotNil(t, challan)
	assert.Equal(t, dc.StatusCreated, challan.Status)

	// The lead's assignment and id thread through to the challan request.
	require.NotNil(t, creator.lastReq.LeadOrderID)
	assert.Equal(t, lead.ID, *creator.lastReq.LeadOrderID)
	require.NotNil(t, creator.lastReq.EmployeeID)
	assert.Equal(t, emp, *creator.lastReq.EmployeeID)

	after, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, LeadConverted, after.Status)
}

func TestConvertLeavesLeadClosedOnChallanFailure(t *testing.T) {
	svc, store, creator := newLeadsService()
	ctx := context.Background()
	creator.fail = fmt.Errorf("%w: at least one product line required", dc.ErrInvalidTransition)

	lead, err := store.InsertLead(ctx, Lead{ClientName: "Acme School", Status: LeadClosed})
	require.NoError(t, err)

	_, err = svc.ConvertToClient(ctx, lead.ID, convertRequest(), testActor)
	require.ErrorIs(t, err, dc.ErrInvalidTransition)

	after, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, LeadClosed, after.Status, "lead stays convertible after a failed conversion")
}

func TestCloseLead(t *testing.T) {
	svc, store, _ := newLeadsService()
	ctx := context.Background()

	lead, err := store.InsertLead(ctx, Lead{ClientName: "Acme School", Status: LeadOpen})
	require.NoError(t, err)

	closed, err := svc.CloseLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, LeadClosed, closed.Status)

	// Closing twice fails the status guard.
	_, err = svc.CloseLead(ctx, lead.ID)
	require.Error(t, err)
}
