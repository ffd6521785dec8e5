package asset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, asset Asset) (Asset, error)
	Get(ctx context.Context, orgID, id int64) (Asset, error)
	List(ctx context.Context, orgID int64, status Status, limit, offset int) ([]Asset, error)
	LoansForAsset(ctx context.Context, orgID, assetID int64) ([]Loan, error)
	MaintenanceForAsset(ctx context.Context, orgID, assetID int64) ([]Maintenance, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service tracks asset lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes a new asset.
type CreateInput struct {
	Code string
	Name string
}

// Create registers a new asset at AVAILABLE.
func (s *Service) Create(ctx context.Context, caller shared.Caller, input CreateInput) (Asset, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Asset{}, fmt.Errorf("asset: name required")
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		code = fmt.Sprintf("AST-%d", time.Now().UTC().UnixNano())
	}
	asset, err := s.repo.Insert(ctx, Asset{
		OrgID:  caller.OrgID,
		Code:   code,
		Name:   name,
		Status: StatusAvailable,
	})
	if err != nil {
		return Asset{}, err
	}
	s.recordAudit(ctx, caller, "asset:CREATE", asset.Code, nil)
	return asset, nil
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, caller shared.Caller, id int64) (Asset, error) {
	return s.repo.Get(ctx, caller.OrgID, id)
}

// List returns assets, optionally filtered by status.
func (s *Service) List(ctx context.Context, caller shared.Caller, status Status, limit, offset int) ([]Asset, error) {
	return s.repo.List(ctx, caller.OrgID, status, limit, offset)
}

// Loans returns the loan history of an asset.
func (s *Service) Loans(ctx context.Context, caller shared.Caller, assetID int64) ([]Loan, error) {
	return s.repo.LoansForAsset(ctx, caller.OrgID, assetID)
}

// MaintenanceHistory returns the work-order history of an asset.
func (s *Service) MaintenanceHistory(ctx context.Context, caller shared.Caller, assetID int64) ([]Maintenance, error) {
	return s.repo.MaintenanceForAsset(ctx, caller.OrgID, assetID)
}

// StartLoan hands the asset to an employee. The asset must be AVAILABLE;
// a second loan attempt while one is active fails.
func (s *Service) StartLoan(ctx context.Context, caller shared.Caller, assetID, employeeID int64, note string) (Loan, error) {
	if employeeID == 0 {
		return Loan{}, fmt.Errorf("asset: employee required")
	}
	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.GetAssetForUpdate(ctx, caller.OrgID, assetID)
		if err != nil {
			return err
		}
		if asset.Status.Terminal() {
			return ErrTerminalStatus
		}
		if asset.Status != StatusAvailable {
			return ErrAssetNotAvailable
		}
		loan, err = tx.InsertLoan(ctx, Loan{
			AssetID:    assetID,
			EmployeeID: employeeID,
			Status:     LoanActive,
			Note:       note,
		})
		if err != nil {
			return err
		}
		return s.reconcile(ctx, tx, asset)
	})
	if err != nil {
		return Loan{}, err
	}
	s.recordAudit(ctx, caller, "asset:LOAN_START", fmt.Sprintf("%d", assetID), map[string]any{"employee_id": employeeID})
	return loan, nil
}

// ReturnLoan closes an active loan and recomputes the asset's status from
// the remaining holds, so a scheduled repair keeps the asset off the floor.
func (s *Service) ReturnLoan(ctx context.Context, caller shared.Caller, loanID int64) (Loan, error) {
	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, asset, err := tx.GetLoanForUpdate(ctx, caller.OrgID, loanID)
		if err != nil {
			return err
		}
		if found.Status == LoanReturned {
			return ErrAlreadyReturned
		}
		now := time.Now().UTC()
		found.Status = LoanReturned
		found.ReturnedAt = &now
		if err := tx.UpdateLoan(ctx, found); err != nil {
			return err
		}
		loan = found
		return s.reconcile(ctx, tx, asset)
	})
	if err != nil {
		return Loan{}, err
	}
	s.recordAudit(ctx, caller, "asset:LOAN_RETURN", fmt.Sprintf("%d", loan.AssetID), nil)
	return loan, nil
}

// ScheduleMaintenance opens a work order. A REPAIR order holds the asset
// unless an active loan already does.
func (s *Service) ScheduleMaintenance(ctx context.Context, caller shared.Caller, assetID int64, workType, note string) (Maintenance, error) {
	workType = strings.ToUpper(strings.TrimSpace(workType))
	if workType == "" {
		workType = MaintenanceRepair
	}
	var record Maintenance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.GetAssetForUpdate(ctx, caller.OrgID, assetID)
		if err != nil {
			return err
		}
		if asset.Status.Terminal() {
			return ErrTerminalStatus
		}
		record, err = tx.InsertMaintenance(ctx, Maintenance{
			AssetID: assetID,
			Type:    workType,
			Status:  MaintenanceScheduled,
			Note:    note,
		})
		if err != nil {
			return err
		}
		return s.reconcile(ctx, tx, asset)
	})
	if err != nil {
		return Maintenance{}, err
	}
	s.recordAudit(ctx, caller, "asset:MAINTENANCE_SCHEDULE", fmt.Sprintf("%d", assetID), map[string]any{"type": workType})
	return record, nil
}

// CompleteMaintenance closes a work order and recomputes the asset's status;
// the asset only becomes AVAILABLE when no other hold remains.
func (s *Service) CompleteMaintenance(ctx context.Context, caller shared.Caller, maintenanceID int64) (Maintenance, error) {
	var record Maintenance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, asset, err := tx.GetMaintenanceForUpdate(ctx, caller.OrgID, maintenanceID)
		if err != nil {
			return err
		}
		if found.Status == MaintenanceCompleted {
			return ErrAlreadyCompleted
		}
		now := time.Now().UTC()
		found.Status = MaintenanceCompleted
		found.CompletedAt = &now
		if err := tx.UpdateMaintenance(ctx, found); err != nil {
			return err
		}
		record = found
		return s.reconcile(ctx, tx, asset)
	})
	if err != nil {
		return Maintenance{}, err
	}
	s.recordAudit(ctx, caller, "asset:MAINTENANCE_COMPLETE", fmt.Sprintf("%d", record.AssetID), nil)
	return record, nil
}

// MarkDisposed moves the asset to a terminal status. Open holds block the
// transition so loans are always closed out first.
func (s *Service) MarkDisposed(ctx context.Context, caller shared.Caller, assetID int64, lost bool) (Asset, error) {
	var result Asset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.GetAssetForUpdate(ctx, caller.OrgID, assetID)
		if err != nil {
			return err
		}
		if asset.Status.Terminal() {
			return ErrTerminalStatus
		}
		loans, err := tx.ActiveLoans(ctx, assetID)
		if err != nil {
			return err
		}
		if len(loans) > 0 && !lost {
			return ErrAssetNotAvailable
		}
		asset.Status = StatusDisposed
		if lost {
			asset.Status = StatusLost
		}
		asset.HolderID = 0
		if err := tx.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		result = asset
		return nil
	})
	if err != nil {
		return Asset{}, err
	}
	s.recordAudit(ctx, caller, fmt.Sprintf("asset:%s", result.Status), result.Code, nil)
	return result, nil
}

// reconcile recomputes and persists the derived status while the asset row
// is still locked.
func (s *Service) reconcile(ctx context.Context, tx TxRepository, asset Asset) error {
	loans, err := tx.ActiveLoans(ctx, asset.ID)
	if err != nil {
		return err
	}
	scheduled, err := tx.ScheduledMaintenance(ctx, asset.ID)
	if err != nil {
		return err
	}
	status, holder := deriveStatus(asset.Status, loans, scheduled)
	asset.Status = status
	asset.HolderID = holder
	return tx.UpdateAsset(ctx, asset)
}

func (s *Service) recordAudit(ctx context.Context, caller shared.Caller, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    caller.OrgID,
		ActorID:  caller.ActorID,
		Action:   action,
		Entity:   "asset",
		EntityID: entityID,
		Meta:     meta,
	})
}
