package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an inventory record does not exist.
var ErrNotFound = errors.New("warehouse: item not found")

// Repository provides PostgreSQL backed persistence for inventory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, product_name, category, level, current_stock, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ProductName, &it.Category, &it.Level,
		&it.CurrentStock, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

// GetItem retrieves one inventory record.
func (r *Repository) GetItem(ctx context.Context, id int64) (*Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM warehouse_items WHERE id = $1`, itemColumns)
	return scanItem(r.pool.QueryRow(ctx, query, id))
}

// ListAll returns the full inventory, used to build snapshots.
func (r *Repository) ListAll(ctx context.Context) ([]Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM warehouse_items ORDER BY product_name, category, level`, itemColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductName, &it.Category, &it.Level,
			&it.CurrentStock, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListItems retrieves inventory with filters and pagination.
func (r *Repository) ListItems(ctx context.Context, req ListItemsRequest) ([]Item, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, NormalizeKey(*req.Category))
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(product_name) LIKE $%d", argPos))
		args = append(args, "%"+strings.ToLower(*req.Search)+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM warehouse_items %s`, whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM warehouse_items %s ORDER BY product_name, category, level LIMIT $%d OFFSET $%d`,
		itemColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductName, &it.Category, &it.Level,
			&it.CurrentStock, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpsertItem inserts or replaces the record for its key.
func (r *Repository) UpsertItem(ctx context.Context, it Item) (*Item, error) {
	query := fmt.Sprintf(`
		INSERT INTO warehouse_items (product_name, category, level, current_stock)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_name, category, level)
		DO UPDATE SET current_stock = EXCLUDED.current_stock, updated_at = NOW()
		RETURNING %s`, itemColumns)
	return scanItem(r.pool.QueryRow(ctx, query, it.ProductName, it.Category, it.Level, it.CurrentStock))
}

// AdjustStock applies a signed delta, refusing to take stock negative.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int64) (*Item, error) {
	query := fmt.Sprintf(`
		UPDATE warehouse_items
		SET current_stock = current_stock + $1, updated_at = NOW()
		WHERE id = $2 AND current_stock + $1 >= 0
		RETURNING %s`, itemColumns)
	it, err := scanItem(r.pool.QueryRow(ctx, query, delta, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Distinguish a missing row from a rejected negative balance.
			if _, getErr := r.GetItem(ctx, id); getErr == nil {
				return nil, fmt.Errorf("warehouse: adjustment of %d would take stock negative", delta)
			}
		}
		return nil, err
	}
	return it, nil
}
