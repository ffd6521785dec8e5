package items

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, orgID, id int64) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, orgID, id int64, item Item) error
	Delete(ctx context.Context, orgID, id int64) error
	BelowMinStock(ctx context.Context, orgID int64) ([]LowStockRow, error)
}

// LowStockRow is one item/warehouse pair under its minimum.
type LowStockRow struct {
	ItemID      int64  `json:"item_id"`
	ItemCode    string `json:"item_code"`
	ItemName    string `json:"item_name"`
	WarehouseID int64  `json:"warehouse_id"`
	Qty         int64  `json:"qty"`
	MinStock    int64  `json:"min_stock"`
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `id, org_id, code, name, unit, min_stock, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE org_id = $1`
	args := []interface{}{orgID}
	argCount := 1

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		query += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	countQuery := `SELECT COUNT(*) FROM items WHERE org_id = $1`
	countArgs := []interface{}{orgID}
	countArgCount := 1
	if filters.Search != "" {
		countArgCount++
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(countArgCount) + ` OR code ILIKE $` + strconv.Itoa(countArgCount) + `)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		countArgCount++
		countQuery += ` AND is_active = $` + strconv.Itoa(countArgCount)
		countArgs = append(countArgs, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrgID, &item.Code, &item.Name, &item.Unit, &item.MinStock, &item.IsActive, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE org_id=$1 AND id=$2`, orgID, id).
		Scan(&item.ID, &item.OrgID, &item.Code, &item.Name, &item.Unit, &item.MinStock, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO items (org_id, code, name, unit, min_stock, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		item.OrgID, item.Code, item.Name, item.Unit, item.MinStock, item.IsActive).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (r *repository) Update(ctx context.Context, orgID, id int64, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET code=$3, name=$4, unit=$5, min_stock=$6, is_active=$7, updated_at=NOW()
WHERE org_id=$1 AND id=$2`, orgID, id, item.Code, item.Name, item.Unit, item.MinStock, item.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE org_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// BelowMinStock joins current levels against item minimums for the low-stock scan.
func (r *repository) BelowMinStock(ctx context.Context, orgID int64) ([]LowStockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.code, i.name, sl.warehouse_id, sl.qty, i.min_stock
FROM items i
JOIN stock_levels sl ON sl.item_id = i.id AND sl.org_id = i.org_id
WHERE i.org_id=$1 AND i.is_active AND i.min_stock > 0 AND sl.qty < i.min_stock
ORDER BY i.code, sl.warehouse_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []LowStockRow
	for rows.Next() {
		var row LowStockRow
		if err := rows.Scan(&row.ItemID, &row.ItemCode, &row.ItemName, &row.WarehouseID, &row.Qty, &row.MinStock); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
