package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when the lead does not exist.
var ErrNotFound = errors.New("leads: lead not found")

// Repository provides PostgreSQL backed persistence for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, client_name, phone, email, product_interest, assigned_to, status, created_at, updated_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.ClientName, &l.Phone, &l.Email, &l.ProductInterest,
		&l.AssignedTo, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// GetLead retrieves a lead by ID.
func (r *Repository) GetLead(ctx context.Context, id int64) (*Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1`, leadColumns)
	return scanLead(r.pool.QueryRow(ctx, query, id))
}

// InsertLead creates a new open lead.
func (r *Repository) InsertLead(ctx context.Context, l Lead) (*Lead, error) {
	query := fmt.Sprintf(`
		INSERT INTO leads (client_name, phone, email, product_interest, assigned_to, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, leadColumns)
	return scanLead(r.pool.QueryRow(ctx, query,
		l.ClientName, l.Phone, l.Email, l.ProductInterest, l.AssignedTo, l.Status))
}

// UpdateStatus moves a lead between statuses with a guard on the expected
// current status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to LeadStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("leads: lead %d not in status %s", id, from)
	}
	return nil
}

// ListLeads retrieves leads with filters.
func (r *Repository) ListLeads(ctx context.Context, req ListLeadsRequest) ([]Lead, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.AssignedTo != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argPos))
		args = append(args, *req.AssignedTo)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(client_name) LIKE $%d OR LOWER(product_interest) LIKE $%d)", argPos, argPos))
		args = append(args, "%"+strings.ToLower(*req.Search)+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM leads %s`, whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM leads %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		leadColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.ClientName, &l.Phone, &l.Email, &l.ProductInterest,
			&l.AssignedTo, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
