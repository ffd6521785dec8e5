package asset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

type memoryRepo struct {
	assets      map[int64]Asset
	loans       map[int64]Loan
	maintenance map[int64]Maintenance
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		assets:      make(map[int64]Asset),
		loans:       make(map[int64]Loan),
		maintenance: make(map[int64]Maintenance),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	assets := make(map[int64]Asset, len(r.assets))
	for k, v := range r.assets {
		assets[k] = v
	}
	loans := make(map[int64]Loan, len(r.loans))
	for k, v := range r.loans {
		loans[k] = v
	}
	maintenance := make(map[int64]Maintenance, len(r.maintenance))
	for k, v := range r.maintenance {
		maintenance[k] = v
	}
	nextID := r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.assets = assets
		r.loans = loans
		r.maintenance = maintenance
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryRepo) Insert(ctx context.Context, asset Asset) (Asset, error) {
	r.nextID++
	asset.ID = r.nextID
	r.assets[asset.ID] = asset
	return asset, nil
}

func (r *memoryRepo) Get(ctx context.Context, orgID, id int64) (Asset, error) {
	asset, ok := r.assets[id]
	if !ok || asset.OrgID != orgID {
		return Asset{}, ErrNotFound
	}
	return asset, nil
}

func (r *memoryRepo) List(ctx context.Context, orgID int64, status Status, limit, offset int) ([]Asset, error) {
	result := []Asset{}
	for _, asset := range r.assets {
		if asset.OrgID != orgID {
			continue
		}
		if status != "" && asset.Status != status {
			continue
		}
		result = append(result, asset)
	}
	return result, nil
}

func (r *memoryRepo) LoansForAsset(ctx context.Context, orgID, assetID int64) ([]Loan, error) {
	result := []Loan{}
	for _, loan := range r.loans {
		if loan.AssetID == assetID {
			result = append(result, loan)
		}
	}
	return result, nil
}

func (r *memoryRepo) MaintenanceForAsset(ctx context.Context, orgID, assetID int64) ([]Maintenance, error) {
	result := []Maintenance{}
	for _, m := range r.maintenance {
		if m.AssetID == assetID {
			result = append(result, m)
		}
	}
	return result, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetAssetForUpdate(ctx context.Context, orgID, id int64) (Asset, error) {
	return t.repo.Get(ctx, orgID, id)
}

func (t *memoryTx) UpdateAsset(ctx context.Context, asset Asset) error {
	if _, ok := t.repo.assets[asset.ID]; !ok {
		return ErrNotFound
	}
	t.repo.assets[asset.ID] = asset
	return nil
}

func (t *memoryTx) InsertLoan(ctx context.Context, loan Loan) (Loan, error) {
	t.repo.nextID++
	loan.ID = t.repo.nextID
	t.repo.loans[loan.ID] = loan
	return loan, nil
}

func (t *memoryTx) GetLoanForUpdate(ctx context.Context, orgID, id int64) (Loan, Asset, error) {
	loan, ok := t.repo.loans[id]
	if !ok {
		return Loan{}, Asset{}, ErrNotFound
	}
	asset, err := t.repo.Get(ctx, orgID, loan.AssetID)
	if err != nil {
		return Loan{}, Asset{}, err
	}
	return loan, asset, nil
}

func (t *memoryTx) UpdateLoan(ctx context.Context, loan Loan) error {
	t.repo.loans[loan.ID] = loan
	return nil
}

func (t *memoryTx) InsertMaintenance(ctx context.Context, m Maintenance) (Maintenance, error) {
	t.repo.nextID++
	m.ID = t.repo.nextID
	t.repo.maintenance[m.ID] = m
	return m, nil
}

func (t *memoryTx) GetMaintenanceForUpdate(ctx context.Context, orgID, id int64) (Maintenance, Asset, error) {
	m, ok := t.repo.maintenance[id]
	if !ok {
		return Maintenance{}, Asset{}, ErrNotFound
	}
	asset, err := t.repo.Get(ctx, orgID, m.AssetID)
	if err != nil {
		return Maintenance{}, Asset{}, err
	}
	return m, asset, nil
}

func (t *memoryTx) UpdateMaintenance(ctx context.Context, m Maintenance) error {
	t.repo.maintenance[m.ID] = m
	return nil
}

func (t *memoryTx) ActiveLoans(ctx context.Context, assetID int64) ([]Loan, error) {
	result := []Loan{}
	for _, loan := range t.repo.loans {
		if loan.AssetID == assetID && loan.Status == LoanActive {
			result = append(result, loan)
		}
	}
	return result, nil
}

func (t *memoryTx) ScheduledMaintenance(ctx context.Context, assetID int64) ([]Maintenance, error) {
	result := []Maintenance{}
	for _, m := range t.repo.maintenance {
		if m.AssetID == assetID && m.Status == MaintenanceScheduled {
			result = append(result, m)
		}
	}
	return result, nil
}

func testCaller() shared.Caller {
	return shared.Caller{ActorID: 7, ActorName: "Budi", OrgID: 1}
}

func createAsset(t *testing.T, svc *Service) Asset {
	t.Helper()
	asset, err := svc.Create(context.Background(), testCaller(), CreateInput{Name: "Laptop"})
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, asset.Status)
	return asset
}

func TestStartLoanTakesAsset(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	asset := createAsset(t, svc)

	loan, err := svc.StartLoan(ctx, testCaller(), asset.ID, 11, "field work")
	require.NoError(t, err)
	require.Equal(t, LoanActive, loan.Status)

	stored, err := svc.Get(ctx, testCaller(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInUse, stored.Status)
	require.Equal(t, int64(11), stored.HolderID)

	// Second borrower is rejected while the first loan is active.
	_, err = svc.StartLoan(ctx, testCaller(), asset.ID, 12, "")
	require.ErrorIs(t, err, ErrAssetNotAvailable)
}

func TestReturnLoanFreesAsset(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	asset := createAsset(t, svc)

	loan, err := svc.StartLoan(ctx, testCaller(), asset.ID, 11, "")
	require.NoError(t, err)

	returned, err := svc.ReturnLoan(ctx, testCaller(), loan.ID)
	require.NoError(t, err)
	require.Equal(t, LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)

	stored, err := svc.Get(ctx, testCaller(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, stored.Status)
	require.Zero(t, stored.HolderID)

	_, err = svc.ReturnLoan(ctx, testCaller(), loan.ID)
	require.ErrorIs(t, err, ErrAlreadyReturned)
}

func TestReturnLoanWithScheduledRepairKeepsHold(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	asset := createAsset(t, svc)

	loan, err := svc.StartLoan(ctx, testCaller(), asset.ID, 11, "")
	require.NoError(t, err)

	_, err = svc.ScheduleMaintenance(ctx, testCaller(), asset.ID, MaintenanceRepair, "broken fan")
	require.NoError(t, err)

	// Loan still wins while active.
	stored, err := svc.Get(ctx, testCaller(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInUse, stored.Status)

	_, err = svc.ReturnLoan(ctx, testCaller(), loan.ID)
	require.NoError(t, err)

	stored, err = svc.Get(ctx, testCaller(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, StatusMaintenance, stored.Status)
	require.Zero(t, stored.HolderID)
}

func TestCompleteMaintenanceFreesAssetOnlyWhenNoOtherRepair(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	asset := createAsset(t, svc)

	first, err := svc.ScheduleMaintenance(ctx, testCaller(), asset.ID, MaintenanceRepair, "")
	require.NoError(t, err)
	second, err := svc.ScheduleMaintenance(ctx, testCaller(), asset.ID, MaintenanceRepair, "")
	require.NoError(t, err)

	_, err = svc.CompleteMaintenance(ctx, testCaller(), first.ID)
	require.NoError(t, err)

	stored, err := svc.Get(ctx, testCaller(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, StatusMaintenance, stored.Status)

	done, err := svc.CompleteMaintenance(ctx, testCaller(), second.ID)
	require.NoError(t, err)
	require.Equal(t, MaintenanceCompleted, done.Status)

	stored, err = svc.Get(ctx, testCaller(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, stored.Status)

	_, err = svc.CompleteMaintenance(ctx, testCaller(), second.ID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestNonRepairMaintenanceDoesNotHoldAsset(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	asset := createAsset(t, svc)

	_, err := svc.ScheduleMaintenance(ctx, testCaller(), asset.ID, "INSPECTION", "")
	require.NoError(t, err)

	stored, err := svc.Get(ctx, testCaller(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, stored.Status)
}

func TestTerminalStatusIsNeverOverridden(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	asset := createAsset(t, svc)

	disposed, err := svc.MarkDisposed(ctx, testCaller(), asset.ID, false)
	require.NoError(t, err)
	require.Equal(t, StatusDisposed, disposed.Status)

	_, err = svc.StartLoan(ctx, testCaller(), asset.ID, 11, "")
	require.ErrorIs(t, err, ErrTerminalStatus)

	_, err = svc.ScheduleMaintenance(ctx, testCaller(), asset.ID, MaintenanceRepair, "")
	require.ErrorIs(t, err, ErrTerminalStatus)

	_, err = svc.MarkDisposed(ctx, testCaller(), asset.ID, true)
	require.ErrorIs(t, err, ErrTerminalStatus)
}

func TestDisposeBlockedByActiveLoan(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	asset := createAsset(t, svc)

	_, err := svc.StartLoan(ctx, testCaller(), asset.ID, 11, "")
	require.NoError(t, err)

	_, err = svc.MarkDisposed(ctx, testCaller(), asset.ID, false)
	require.ErrorIs(t, err, ErrAssetNotAvailable)

	// Marking lost is allowed even with an open loan.
	lost, err := svc.MarkDisposed(ctx, testCaller(), asset.ID, true)
	require.NoError(t, err)
	require.Equal(t, StatusLost, lost.Status)
	require.Zero(t, lost.HolderID)
}
