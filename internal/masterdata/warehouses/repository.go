package warehouses

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, orgID, id int64) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, orgID, id int64, warehouse Warehouse) error
	Delete(ctx context.Context, orgID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Warehouse, int, error) {
	query := `SELECT id, org_id, code, name, address FROM warehouses WHERE org_id = $1`
	args := []interface{}{orgID}
	argCount := 1

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM warehouses WHERE org_id = $1`
	countArgs := []interface{}{orgID}
	if filters.Search != "" {
		countQuery += ` AND (name ILIKE $2 OR code ILIKE $2)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

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

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.OrgID, &w.Code, &w.Name, &w.Address); err != nil {
			return nil, 0, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, code, name, address FROM warehouses WHERE org_id=$1 AND id=$2`, orgID, id).
		Scan(&w.ID, &w.OrgID, &w.Code, &w.Name, &w.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *repository) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (org_id, code, name, address)
VALUES ($1,$2,$3,$4) RETURNING id`,
		warehouse.OrgID, warehouse.Code, warehouse.Name, warehouse.Address).Scan(&warehouse.ID)
	if err != nil {
		return Warehouse{}, err
	}
	return warehouse, nil
}

func (r *repository) Update(ctx context.Context, orgID, id int64, warehouse Warehouse) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses SET code=$3, name=$4, address=$5 WHERE org_id=$1 AND id=$2`,
		orgID, id, warehouse.Code, warehouse.Name, warehouse.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM warehouses WHERE org_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	column := "name"
	switch sortBy {
	case "code":
		column = "code"
	case "name":
		column = "name"
	}
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	return column + " " + dir
}
