package requisition

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uranghalus/dutaassets-sub001/internal/stock"
)

// Repository persists requisitions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the state machine needs.
// Ledger shares the same transaction, so a fulfillment's status flip and its
// stock issue commit or abort together.
type TxRepository interface {
	GetForUpdate(ctx context.Context, orgID, id int64) (Requisition, []Item, error)
	Insert(ctx context.Context, req Requisition, items []Item) (Requisition, error)
	Update(ctx context.Context, req Requisition) error
	Ledger() stock.LedgerTx
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("requisition repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const requisitionColumns = `id, ref, org_id, code, requester_id, warehouse_id, status, note,
supervisor_ack_by, supervisor_ack_at, fa_manager_ack_by, fa_manager_ack_at,
gm_approved_by, gm_approved_at, fulfilled_by, fulfilled_at, rejected_by, rejected_at,
created_at, updated_at`

// Get fetches one requisition with its items.
func (r *Repository) Get(ctx context.Context, orgID, id int64) (Requisition, []Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requisitionColumns+`
FROM requisitions WHERE org_id=$1 AND id=$2`, orgID, id)
	req, err := scanRequisition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requisition{}, nil, ErrNotFound
		}
		return Requisition{}, nil, err
	}
	items, err := r.listItems(ctx, r.pool, id)
	if err != nil {
		return Requisition{}, nil, err
	}
	return req, items, nil
}

// List returns requisitions for an org, newest first.
func (r *Repository) List(ctx context.Context, orgID int64, filter Filter) ([]Requisition, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requisitionColumns+`
FROM requisitions
WHERE org_id=$1
  AND ($2::text = '' OR status=$2)
  AND ($3::bigint = 0 OR requester_id=$3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5`, orgID, string(filter.Status), filter.RequesterID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Requisition{}
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (t *txRepo) Ledger() stock.LedgerTx {
	return stock.NewLedgerTx(t.tx)
}

func (t *txRepo) GetForUpdate(ctx context.Context, orgID, id int64) (Requisition, []Item, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+requisitionColumns+`
FROM requisitions WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id)
	req, err := scanRequisition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requisition{}, nil, ErrNotFound
		}
		return Requisition{}, nil, err
	}
	items, err := listItemsTx(ctx, t.tx, id)
	if err != nil {
		return Requisition{}, nil, err
	}
	return req, items, nil
}

func (t *txRepo) Insert(ctx context.Context, req Requisition, items []Item) (Requisition, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO requisitions (ref, org_id, code, requester_id, warehouse_id, status, note, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		req.Ref, req.OrgID, req.Code, req.RequesterID, nullInt(req.WarehouseID), string(req.Status), req.Note).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Requisition{}, err
	}
	for _, item := range items {
		if _, err := t.tx.Exec(ctx, `INSERT INTO requisition_items (requisition_id, item_id, qty)
VALUES ($1,$2,$3)`, req.ID, item.ItemID, item.Qty); err != nil {
			return Requisition{}, err
		}
	}
	return req, nil
}

func (t *txRepo) Update(ctx context.Context, req Requisition) error {
	tag, err := t.tx.Exec(ctx, `UPDATE requisitions SET
warehouse_id=$3, status=$4,
supervisor_ack_by=$5, supervisor_ack_at=$6,
fa_manager_ack_by=$7, fa_manager_ack_at=$8,
gm_approved_by=$9, gm_approved_at=$10,
fulfilled_by=$11, fulfilled_at=$12,
rejected_by=$13, rejected_at=$14,
updated_at=NOW()
WHERE org_id=$1 AND id=$2`,
		req.OrgID, req.ID, nullInt(req.WarehouseID), string(req.Status),
		nullStr(req.SupervisorAckBy), req.SupervisorAckAt,
		nullStr(req.FAManagerAckBy), req.FAManagerAckAt,
		nullStr(req.GMApprovedBy), req.GMApprovedAt,
		nullStr(req.FulfilledBy), req.FulfilledAt,
		nullStr(req.RejectedBy), req.RejectedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequisition(row rowScanner) (Requisition, error) {
	var req Requisition
	var ref uuid.UUID
	var warehouseID *int64
	var status string
	var supervisorBy, faBy, gmBy, fulfilledBy, rejectedBy *string
	err := row.Scan(&req.ID, &ref, &req.OrgID, &req.Code, &req.RequesterID, &warehouseID, &status, &req.Note,
		&supervisorBy, &req.SupervisorAckAt, &faBy, &req.FAManagerAckAt,
		&gmBy, &req.GMApprovedAt, &fulfilledBy, &req.FulfilledAt, &rejectedBy, &req.RejectedAt,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Requisition{}, err
	}
	req.Ref = ref
	req.Status = Status(status)
	if warehouseID != nil {
		req.WarehouseID = *warehouseID
	}
	req.SupervisorAckBy = deref(supervisorBy)
	req.FAManagerAckBy = deref(faBy)
	req.GMApprovedBy = deref(gmBy)
	req.FulfilledBy = deref(fulfilledBy)
	req.RejectedBy = deref(rejectedBy)
	return req, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) listItems(ctx context.Context, q queryer, requisitionID int64) ([]Item, error) {
	return listItemsTx(ctx, q, requisitionID)
}

func listItemsTx(ctx context.Context, q queryer, requisitionID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, requisition_id, item_id, qty
FROM requisition_items WHERE requisition_id=$1 ORDER BY id ASC`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.RequisitionID, &item.ItemID, &item.Qty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
