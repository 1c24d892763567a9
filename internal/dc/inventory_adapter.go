package dc

import (
	"context"
	"fmt"

	"github.com/challan-erp/challan-erp/internal/warehouse"
)

// InventoryAdapter adapts the warehouse service to the InventoryProvider
// interface required by the challan service.
type InventoryAdapter struct {
	service *warehouse.Service
}

// NewInventoryAdapter creates a new inventory adapter.
func NewInventoryAdapter(service *warehouse.Service) *InventoryAdapter {
	return &InventoryAdapter{service: service}
}

// Snapshot returns the current stock index.
func (a *InventoryAdapter) Snapshot(ctx context.Context) (InventoryIndex, error) {
	if a.service == nil {
		return nil, fmt.Errorf("warehouse service not initialized")
	}
	idx, err := a.service.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("warehouse snapshot: %w", err)
	}
	return idx, nil
}
