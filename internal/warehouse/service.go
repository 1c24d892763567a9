package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Service provides business logic for warehouse inventory.
type Service struct {
	repo   *Repository
	cache  *Cache
	sf     singleflight.Group
	logger *slog.Logger
}

// NewService constructs a warehouse service.
func NewService(repo *Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Snapshot builds the current stock index. Concurrent callers share a single
// load through singleflight; the underlying item list comes from the
// versioned cache when available.
func (s *Service) Snapshot(ctx context.Context) (*Index, error) {
	v, err, _ := s.sf.Do("snapshot", func() (interface{}, error) {
		items, err := s.cache.FetchSnapshot(ctx, s.repo.ListAll)
		if err != nil {
			return nil, fmt.Errorf("load inventory snapshot: %w", err)
		}
		return NewIndex(items), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// GetItem retrieves one inventory record.
func (s *Service) GetItem(ctx context.Context, id int64) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems retrieves inventory with filters.
func (s *Service) ListItems(ctx context.Context, req ListItemsRequest) ([]Item, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListItems(ctx, req)
}

// UpsertItem creates or replaces a record and invalidates cached snapshots.
func (s *Service) UpsertItem(ctx context.Context, req UpsertItemRequest) (*Item, error) {
	it := Item{
		ProductName:  req.ProductName,
		Category:     req.Category,
		Level:        req.Level,
		CurrentStock: req.CurrentStock,
	}.Normalize()
	if it.ProductName == "" {
		return nil, fmt.Errorf("warehouse: product name required")
	}

	saved, err := s.repo.UpsertItem(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("upsert item: %w", err)
	}
	s.invalidate(ctx)
	return saved, nil
}

// AdjustStock applies a signed delta to one record and invalidates cached
// snapshots.
func (s *Service) AdjustStock(ctx context.Context, id int64, req AdjustStockRequest) (*Item, error) {
	saved, err := s.repo.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock adjusted", "item_id", id, "delta", req.Delta, "stock", saved.CurrentStock, "note", req.Note)
	s.invalidate(ctx)
	return saved, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Error("bump warehouse cache", "error", err)
	}
}
