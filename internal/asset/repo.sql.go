package asset

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists assets in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the lifecycle tracker
// needs. Every mutation starts with GetAssetForUpdate so that a single
// serialized writer per asset recomputes the derived status.
type TxRepository interface {
	GetAssetForUpdate(ctx context.Context, orgID, id int64) (Asset, error)
	UpdateAsset(ctx context.Context, asset Asset) error
	InsertLoan(ctx context.Context, loan Loan) (Loan, error)
	GetLoanForUpdate(ctx context.Context, orgID, id int64) (Loan, Asset, error)
	UpdateLoan(ctx context.Context, loan Loan) error
	InsertMaintenance(ctx context.Context, m Maintenance) (Maintenance, error)
	GetMaintenanceForUpdate(ctx context.Context, orgID, id int64) (Maintenance, Asset, error)
	UpdateMaintenance(ctx context.Context, m Maintenance) error
	ActiveLoans(ctx context.Context, assetID int64) ([]Loan, error)
	ScheduledMaintenance(ctx context.Context, assetID int64) ([]Maintenance, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("asset repository not initialised")
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

// Insert creates a new asset record at AVAILABLE.
func (r *Repository) Insert(ctx context.Context, asset Asset) (Asset, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO assets (org_id, code, name, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		asset.OrgID, asset.Code, asset.Name, string(asset.Status)).
		Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
	return asset, err
}

// Get fetches one asset.
func (r *Repository) Get(ctx context.Context, orgID, id int64) (Asset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `SELECT id, org_id, code, name, status, holder_id, created_at, updated_at
FROM assets WHERE org_id=$1 AND id=$2`, orgID, id))
}

// List returns assets for an org, optionally filtered by status.
func (r *Repository) List(ctx context.Context, orgID int64, status Status, limit, offset int) ([]Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, code, name, status, holder_id, created_at, updated_at
FROM assets
WHERE org_id=$1 AND ($2::text = '' OR status=$2)
ORDER BY code ASC
LIMIT $3 OFFSET $4`, orgID, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assets := []Asset{}
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// LoansForAsset lists the loan history of one asset.
func (r *Repository) LoansForAsset(ctx context.Context, orgID, assetID int64) ([]Loan, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.asset_id, l.employee_id, l.status, l.note, l.loaned_at, l.returned_at
FROM asset_loans l
JOIN assets a ON a.id = l.asset_id
WHERE a.org_id=$1 AND l.asset_id=$2
ORDER BY l.loaned_at DESC`, orgID, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

// MaintenanceForAsset lists the work-order history of one asset.
func (r *Repository) MaintenanceForAsset(ctx context.Context, orgID, assetID int64) ([]Maintenance, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.asset_id, m.type, m.status, m.note, m.scheduled_at, m.completed_at
FROM asset_maintenance m
JOIN assets a ON a.id = m.asset_id
WHERE a.org_id=$1 AND m.asset_id=$2
ORDER BY m.scheduled_at DESC`, orgID, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMaintenance(rows)
}

// DueMaintenance lists scheduled work orders older than the cutoff, used by
// the overdue-maintenance scan job.
func (r *Repository) DueMaintenance(ctx context.Context, orgID int64, limit int) ([]Maintenance, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.asset_id, m.type, m.status, m.note, m.scheduled_at, m.completed_at
FROM asset_maintenance m
JOIN assets a ON a.id = m.asset_id
WHERE a.org_id=$1 AND m.status='SCHEDULED' AND m.scheduled_at <= NOW()
ORDER BY m.scheduled_at ASC
LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMaintenance(rows)
}

func (t *txRepo) GetAssetForUpdate(ctx context.Context, orgID, id int64) (Asset, error) {
	return scanAsset(t.tx.QueryRow(ctx, `SELECT id, org_id, code, name, status, holder_id, created_at, updated_at
FROM assets WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id))
}

func (t *txRepo) UpdateAsset(ctx context.Context, asset Asset) error {
	tag, err := t.tx.Exec(ctx, `UPDATE assets SET status=$3, holder_id=$4, updated_at=NOW()
WHERE org_id=$1 AND id=$2`, asset.OrgID, asset.ID, string(asset.Status), nullInt(asset.HolderID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertLoan(ctx context.Context, loan Loan) (Loan, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO asset_loans (asset_id, employee_id, status, note, loaned_at)
VALUES ($1,$2,$3,$4,NOW())
RETURNING id, loaned_at`, loan.AssetID, loan.EmployeeID, string(loan.Status), loan.Note).
		Scan(&loan.ID, &loan.LoanedAt)
	return loan, err
}

func (t *txRepo) GetLoanForUpdate(ctx context.Context, orgID, id int64) (Loan, Asset, error) {
	var loan Loan
	var status string
	err := t.tx.QueryRow(ctx, `SELECT l.id, l.asset_id, l.employee_id, l.status, l.note, l.loaned_at, l.returned_at
FROM asset_loans l
JOIN assets a ON a.id = l.asset_id
WHERE a.org_id=$1 AND l.id=$2
FOR UPDATE OF l`, orgID, id).
		Scan(&loan.ID, &loan.AssetID, &loan.EmployeeID, &status, &loan.Note, &loan.LoanedAt, &loan.ReturnedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Loan{}, Asset{}, ErrNotFound
		}
		return Loan{}, Asset{}, err
	}
	loan.Status = LoanStatus(status)
	asset, err := t.GetAssetForUpdate(ctx, orgID, loan.AssetID)
	if err != nil {
		return Loan{}, Asset{}, err
	}
	return loan, asset, nil
}

func (t *txRepo) UpdateLoan(ctx context.Context, loan Loan) error {
	_, err := t.tx.Exec(ctx, `UPDATE asset_loans SET status=$2, note=$3, returned_at=$4 WHERE id=$1`,
		loan.ID, string(loan.Status), loan.Note, loan.ReturnedAt)
	return err
}

func (t *txRepo) InsertMaintenance(ctx context.Context, m Maintenance) (Maintenance, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO asset_maintenance (asset_id, type, status, note, scheduled_at)
VALUES ($1,$2,$3,$4,NOW())
RETURNING id, scheduled_at`, m.AssetID, m.Type, string(m.Status), m.Note).
		Scan(&m.ID, &m.ScheduledAt)
	return m, err
}

func (t *txRepo) GetMaintenanceForUpdate(ctx context.Context, orgID, id int64) (Maintenance, Asset, error) {
	var m Maintenance
	var status string
	err := t.tx.QueryRow(ctx, `SELECT m.id, m.asset_id, m.type, m.status, m.note, m.scheduled_at, m.completed_at
FROM asset_maintenance m
JOIN assets a ON a.id = m.asset_id
WHERE a.org_id=$1 AND m.id=$2
FOR UPDATE OF m`, orgID, id).
		Scan(&m.ID, &m.AssetID, &m.Type, &status, &m.Note, &m.ScheduledAt, &m.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Maintenance{}, Asset{}, ErrNotFound
		}
		return Maintenance{}, Asset{}, err
	}
	m.Status = MaintenanceStatus(status)
	asset, err := t.GetAssetForUpdate(ctx, orgID, m.AssetID)
	if err != nil {
		return Maintenance{}, Asset{}, err
	}
	return m, asset, nil
}

func (t *txRepo) UpdateMaintenance(ctx context.Context, m Maintenance) error {
	_, err := t.tx.Exec(ctx, `UPDATE asset_maintenance SET status=$2, note=$3, completed_at=$4 WHERE id=$1`,
		m.ID, string(m.Status), m.Note, m.CompletedAt)
	return err
}

func (t *txRepo) ActiveLoans(ctx context.Context, assetID int64) ([]Loan, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, asset_id, employee_id, status, note, loaned_at, returned_at
FROM asset_loans WHERE asset_id=$1 AND status='ACTIVE' ORDER BY loaned_at ASC`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (t *txRepo) ScheduledMaintenance(ctx context.Context, assetID int64) ([]Maintenance, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, asset_id, type, status, note, scheduled_at, completed_at
FROM asset_maintenance WHERE asset_id=$1 AND status='SCHEDULED' ORDER BY scheduled_at ASC`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMaintenance(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (Asset, error) {
	var asset Asset
	var status string
	var holder *int64
	err := row.Scan(&asset.ID, &asset.OrgID, &asset.Code, &asset.Name, &status, &holder, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, err
	}
	asset.Status = Status(status)
	if holder != nil {
		asset.HolderID = *holder
	}
	return asset, nil
}

func collectLoans(rows pgx.Rows) ([]Loan, error) {
	loans := []Loan{}
	for rows.Next() {
		var loan Loan
		var status string
		if err := rows.Scan(&loan.ID, &loan.AssetID, &loan.EmployeeID, &status, &loan.Note, &loan.LoanedAt, &loan.ReturnedAt); err != nil {
			return nil, err
		}
		loan.Status = LoanStatus(status)
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func collectMaintenance(rows pgx.Rows) ([]Maintenance, error) {
	records := []Maintenance{}
	for rows.Next() {
		var m Maintenance
		var status string
		if err := rows.Scan(&m.ID, &m.AssetID, &m.Type, &status, &m.Note, &m.ScheduledAt, &m.CompletedAt); err != nil {
			return nil, err
		}
		m.Status = MaintenanceStatus(status)
		records = append(records, m)
	}
	return records, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
