package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LedgerTx exposes the transactional ledger operations used by the engine.
// Callers outside this package obtain one through WithTx or NewLedgerTx.
type LedgerTx interface {
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
	InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error
	GetLevelForUpdate(ctx context.Context, orgID, warehouseID, itemID int64) (Level, error)
	UpsertLevel(ctx context.Context, level Level) error
}

type ledgerTx struct {
	tx pgx.Tx
}

// NewLedgerTx wraps an open pgx transaction so other modules can apply
// movements inside their own transaction boundary.
func NewLedgerTx(tx pgx.Tx) LedgerTx {
	return &ledgerTx{tx: tx}
}

// ErrLevelNotFound indicates a missing stock level row; the engine treats it as quantity 0.
var ErrLevelNotFound = errors.New("stock level not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, LedgerTx) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &ledgerTx{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ListLevels returns the current levels for a warehouse.
func (r *Repository) ListLevels(ctx context.Context, orgID, warehouseID int64) ([]Level, error) {
	if r == nil {
		return nil, errors.New("stock repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT org_id, warehouse_id, item_id, qty, updated_at
FROM stock_levels
WHERE org_id=$1 AND warehouse_id=$2
ORDER BY item_id ASC`, orgID, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := []Level{}
	for rows.Next() {
		var lvl Level
		if err := rows.Scan(&lvl.OrgID, &lvl.WarehouseID, &lvl.ItemID, &lvl.Qty, &lvl.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

// ListMovements returns movement history with line deltas flattened per item.
func (r *Repository) ListMovements(ctx context.Context, orgID int64, filter MovementFilter) ([]Movement, map[int64][]MovementLine, error) {
	if r == nil {
		return nil, nil, errors.New("stock repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, code, kind, warehouse_id, ref_module, ref_id, note, posted_by, posted_at
FROM stock_movements
WHERE org_id=$1
  AND ($2::bigint = 0 OR warehouse_id=$2)
  AND posted_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY posted_at DESC, id DESC
LIMIT $5`, orgID, filter.WarehouseID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	ids := []int64{}
	for rows.Next() {
		var mv Movement
		var kind string
		if err := rows.Scan(&mv.ID, &mv.OrgID, &mv.Code, &kind, &mv.WarehouseID, &mv.RefModule, &mv.RefID, &mv.Note, &mv.PostedBy, &mv.PostedAt); err != nil {
			return nil, nil, err
		}
		mv.Kind = MovementKind(kind)
		movements = append(movements, mv)
		ids = append(ids, mv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	lines := map[int64][]MovementLine{}
	if len(ids) == 0 {
		return movements, lines, nil
	}
	lineRows, err := r.pool.Query(ctx, `SELECT id, movement_id, item_id, qty_delta
FROM stock_movement_lines
WHERE movement_id = ANY($1)
  AND ($2::bigint = 0 OR item_id=$2)
ORDER BY movement_id, id`, ids, filter.ItemID)
	if err != nil {
		return nil, nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var line MovementLine
		if err := lineRows.Scan(&line.ID, &line.MovementID, &line.ItemID, &line.QtyDelta); err != nil {
			return nil, nil, err
		}
		lines[line.MovementID] = append(lines[line.MovementID], line)
	}
	return movements, lines, lineRows.Err()
}

func (r *ledgerTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (org_id, code, kind, warehouse_id, ref_module, ref_id, note, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		mv.OrgID, mv.Code, string(mv.Kind), mv.WarehouseID, mv.RefModule, nullString(mv.RefID), mv.Note, nullInt(mv.PostedBy), mv.PostedAt).Scan(&id)
	return id, err
}

func (r *ledgerTx) InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_movement_lines (movement_id, item_id, qty_delta)
VALUES ($1,$2,$3)`, movementID, line.ItemID, line.QtyDelta); err != nil {
			return err
		}
	}
	return nil
}

func (r *ledgerTx) GetLevelForUpdate(ctx context.Context, orgID, warehouseID, itemID int64) (Level, error) {
	var lvl Level
	err := r.tx.QueryRow(ctx, `SELECT org_id, warehouse_id, item_id, qty, updated_at
FROM stock_levels WHERE org_id=$1 AND warehouse_id=$2 AND item_id=$3 FOR UPDATE`, orgID, warehouseID, itemID).
		Scan(&lvl.OrgID, &lvl.WarehouseID, &lvl.ItemID, &lvl.Qty, &lvl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{OrgID: orgID, WarehouseID: warehouseID, ItemID: itemID}, ErrLevelNotFound
		}
		return Level{}, err
	}
	return lvl, nil
}

func (r *ledgerTx) UpsertLevel(ctx context.Context, level Level) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_levels (org_id, warehouse_id, item_id, qty, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (org_id, warehouse_id, item_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`,
		level.OrgID, level.WarehouseID, level.ItemID, level.Qty)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
