package employees

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Employee, int, error)
	Get(ctx context.Context, orgID, id int64) (Employee, error)
	Create(ctx context.Context, employee Employee) (Employee, error)
	Update(ctx context.Context, orgID, id int64, employee Employee) error
	Delete(ctx context.Context, orgID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const employeeColumns = `id, org_id, nik, name, department, position, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Employee, int, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE org_id = $1`
	args := []interface{}{orgID}
	argCount := 1

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR nik ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		query += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	countQuery := `SELECT COUNT(*) FROM employees WHERE org_id = $1`
	countArgs := []interface{}{orgID}
	countArgCount := 1
	if filters.Search != "" {
		countArgCount++
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(countArgCount) + ` OR nik ILIKE $` + strconv.Itoa(countArgCount) + `)`
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

	var employees []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.OrgID, &emp.NIK, &emp.Name, &emp.Department, &emp.Position, &emp.IsActive, &emp.CreatedAt, &emp.UpdatedAt); err != nil {
			return nil, 0, err
		}
		employees = append(employees, emp)
	}
	return employees, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Employee, error) {
	var emp Employee
	err := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE org_id=$1 AND id=$2`, orgID, id).
		Scan(&emp.ID, &emp.OrgID, &emp.NIK, &emp.Name, &emp.Department, &emp.Position, &emp.IsActive, &emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, shared.ErrNotFound
		}
		return Employee{}, err
	}
	return emp, nil
}

func (r *repository) Create(ctx context.Context, employee Employee) (Employee, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO employees (org_id, nik, name, department, position, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		employee.OrgID, employee.NIK, employee.Name, employee.Department, employee.Position, employee.IsActive).
		Scan(&employee.ID, &employee.CreatedAt, &employee.UpdatedAt)
	if err != nil {
		return Employee{}, err
	}
	return employee, nil
}

func (r *repository) Update(ctx context.Context, orgID, id int64, employee Employee) error {
	tag, err := r.pool.Exec(ctx, `UPDATE employees SET nik=$3, name=$4, department=$5, position=$6, is_active=$7, updated_at=NOW()
WHERE org_id=$1 AND id=$2`, orgID, id, employee.NIK, employee.Name, employee.Department, employee.Position, employee.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE org_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
