package dc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/challan-erp/challan-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for delivery challans.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertChallan(ctx context.Context, dc DeliveryChallan) (int64, error)
	InsertLine(ctx context.Context, line ProductLine) (int64, error)
	DeleteLines(ctx context.Context, challanID int64) error
	UpdateDraft(ctx context.Context, id int64, updates map[string]interface{}) error
	// ApplyTransition commits the post-transition header with a
	// compare-and-swap on (status, version). Losing the swap returns
	// ErrStaleChallan and nothing is written.
	ApplyTransition(ctx context.Context, dc DeliveryChallan, fromStatus DCStatus, fromVersion int64) error
	UpdateLineAvailability(ctx context.Context, line ProductLine) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const challanColumns = `id, ref, lead_order_id, employee_id, manager_id, admin_id,
       status, version, requested_quantity, available_quantity, deliverable_quantity,
       dc_date, dc_remarks, dc_category, dc_notes, finance_remarks, spl_approval,
       sme_remarks, po_photo_url, hold_reason,
       created_at, updated_at, manager_requested_at, sent_to_manager_at, admin_reviewed_at`

func scanChallan(row pgx.Row) (*DeliveryChallan, error) {
	var d DeliveryChallan
	err := row.Scan(
		&d.ID, &d.Ref, &d.LeadOrderID, &d.EmployeeID, &d.ManagerID, &d.AdminID,
		&d.Status, &d.Version, &d.RequestedQuantity, &d.AvailableQuantity, &d.DeliverableQuantity,
		&d.DCDate, &d.DCRemarks, &d.DCCategory, &d.DCNotes, &d.FinanceRemarks, &d.SplApproval,
		&d.SMERemarks, &d.POPhotoURL, &d.HoldReason,
		&d.CreatedAt, &d.UpdatedAt, &d.ManagerRequestedAt, &d.SentToManagerAt, &d.AdminReviewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetChallan retrieves a challan by ID with all product lines.
func (r *Repository) GetChallan(ctx context.Context, id int64) (*DeliveryChallan, error) {
	query := fmt.Sprintf(`SELECT %s FROM delivery_challans WHERE id = $1`, challanColumns)
	d, err := scanChallan(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	lines, err := r.getChallanLines(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Lines = lines
	return d, nil
}

// GetChallanByRef retrieves a challan by its external uuid reference.
func (r *Repository) GetChallanByRef(ctx context.Context, ref uuid.UUID) (*DeliveryChallan, error) {
	query := fmt.Sprintf(`SELECT %s FROM delivery_challans WHERE ref = $1`, challanColumns)
	d, err := scanChallan(r.pool.QueryRow(ctx, query, ref))
	if err != nil {
		return nil, err
	}
	lines, err := r.getChallanLines(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Lines = lines
	return d, nil
}

func (r *Repository) getChallanLines(ctx context.Context, challanID int64) ([]ProductLine, error) {
	query := `
		SELECT id, challan_id, product, product_name, class, category, level,
		       quantity, strength, price, available_quantity, deliverable_quantity,
		       remaining_quantity, total, line_order
		FROM challan_lines
		WHERE challan_id = $1
		ORDER BY line_order, id
	`
	rows, err := r.pool.Query(ctx, query, challanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ProductLine
	for rows.Next() {
		var l ProductLine
		err := rows.Scan(
			&l.ID, &l.ChallanID, &l.Product, &l.ProductName, &l.Class, &l.Category, &l.Level,
			&l.Quantity, &l.Strength, &l.Price, &l.AvailableQuantity, &l.DeliverableQuantity,
			&l.RemainingQuantity, &l.Total, &l.LineOrder,
		)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListChallans retrieves challans with filters.
func (r *Repository) ListChallans(ctx context.Context, req ListChallansRequest) ([]ChallanSummary, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.EmployeeID != nil {
		conditions = append(conditions, fmt.Sprintf("c.employee_id = $%d", argPos))
		args = append(args, *req.EmployeeID)
		argPos++
	}
	if req.LeadOrderID != nil {
		conditions = append(conditions, fmt.Sprintf("c.lead_order_id = $%d", argPos))
		args = append(args, *req.LeadOrderID)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("c.created_at >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("c.created_at <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		searchPattern := "%" + strings.ToLower(*req.Search) + "%"
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM challan_lines cl WHERE cl.challan_id = c.id AND (LOWER(cl.product) LIKE $%d OR LOWER(cl.product_name) LIKE $%d))",
			argPos, argPos,
		))
		args = append(args, searchPattern)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM delivery_challans c %s`, whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.ref, c.status, c.employee_id, c.lead_order_id,
		       c.requested_quantity, c.deliverable_quantity,
		       COUNT(cl.id) AS line_count,
		       c.dc_date, c.created_at, c.updated_at
		FROM delivery_challans c
		LEFT JOIN challan_lines cl ON cl.challan_id = c.id
		%s
		GROUP BY c.id, c.ref, c.status, c.employee_id, c.lead_order_id,
		         c.requested_quantity, c.deliverable_quantity,
		         c.dc_date, c.created_at, c.updated_at
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []ChallanSummary
	for rows.Next() {
		var s ChallanSummary
		err := rows.Scan(
			&s.ID, &s.Ref, &s.Status, &s.EmployeeID, &s.LeadOrderID,
			&s.RequestedQuantity, &s.DeliverableQuantity, &s.LineCount,
			&s.DCDate, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListIDsInStatus returns challan ids currently sitting in the given status,
// oldest first. Used by the background jobs.
func (r *Repository) ListIDsInStatus(ctx context.Context, status DCStatus, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM delivery_challans WHERE status = $1 ORDER BY updated_at ASC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) InsertChallan(ctx context.Context, dc DeliveryChallan) (int64, error) {
	query := `
		INSERT INTO delivery_challans (
			ref, lead_order_id, employee_id, manager_id, admin_id,
			status, version, requested_quantity, available_quantity, deliverable_quantity,
			dc_date, dc_remarks, dc_category, dc_notes, finance_remarks, spl_approval,
			sme_remarks, po_photo_url, hold_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		dc.Ref, dc.LeadOrderID, dc.EmployeeID, dc.ManagerID, dc.AdminID,
		dc.Status, dc.Version, dc.RequestedQuantity, dc.AvailableQuantity, dc.DeliverableQuantity,
		dc.DCDate, dc.DCRemarks, dc.DCCategory, dc.DCNotes, dc.FinanceRemarks, dc.SplApproval,
		dc.SMERemarks, dc.POPhotoURL, dc.HoldReason, dc.CreatedAt, dc.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, line ProductLine) (int64, error) {
	query := `
		INSERT INTO challan_lines (
			challan_id, product, product_name, class, category, level,
			quantity, strength, price, available_quantity, deliverable_quantity,
			remaining_quantity, total, line_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		line.ChallanID, line.Product, line.ProductName, line.Class, line.Category, line.Level,
		line.Quantity, line.Strength, line.Price, line.AvailableQuantity, line.DeliverableQuantity,
		line.RemainingQuantity, line.Total, line.LineOrder,
	).Scan(&id)
	return id, err
}

func (t *txRepo) DeleteLines(ctx context.Context, challanID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM challan_lines WHERE challan_id = $1`, challanID)
	return err
}

func (t *txRepo) UpdateDraft(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []interface{}
	argPos := 1

	for field, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE delivery_challans SET %s WHERE id = $%d`,
		strings.Join(setClauses, ", "), argPos)

	cmdTag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) ApplyTransition(ctx context.Context, dc DeliveryChallan, fromStatus DCStatus, fromVersion int64) error {
	query := `
		UPDATE delivery_challans
		SET status = $1, version = version + 1,
		    employee_id = $2, po_photo_url = $3, hold_reason = $4,
		    requested_quantity = $5, available_quantity = $6, deliverable_quantity = $7,
		    manager_requested_at = $8, sent_to_manager_at = $9, admin_reviewed_at = $10,
		    updated_at = $11
		WHERE id = $12 AND status = $13 AND version = $14
	`
	cmdTag, err := t.tx.Exec(ctx, query,
		dc.Status, dc.EmployeeID, dc.POPhotoURL, dc.HoldReason,
		dc.RequestedQuantity, dc.AvailableQuantity, dc.DeliverableQuantity,
		dc.ManagerRequestedAt, dc.SentToManagerAt, dc.AdminReviewedAt,
		dc.UpdatedAt,
		dc.ID, fromStatus, fromVersion,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStaleChallan
	}
	return nil
}

func (t *txRepo) UpdateLineAvailability(ctx context.Context, line ProductLine) error {
	query := `
		UPDATE challan_lines
		SET available_quantity = $1, deliverable_quantity = $2,
		    remaining_quantity = $3, total = $4
		WHERE id = $5
	`
	cmdTag, err := t.tx.Exec(ctx, query,
		line.AvailableQuantity, line.DeliverableQuantity,
		line.RemainingQuantity, line.Total, line.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
