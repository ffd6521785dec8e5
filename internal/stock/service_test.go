package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

type memoryRepo struct {
	levels    map[string]Level
	movements []Movement
	lines     map[int64][]MovementLine
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{levels: make(map[string]Level), lines: make(map[int64][]MovementLine)}
}

func levelKey(orgID, warehouseID, itemID int64) string {
	return fmt.Sprintf("%d:%d:%d", orgID, warehouseID, itemID)
}

// WithTx snapshots state before the callback and restores it on error, so the
// fake honors the same all-or-nothing contract as the real transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, LedgerTx) error) error {
	snapshotLevels := make(map[string]Level, len(r.levels))
	for k, v := range r.levels {
		snapshotLevels[k] = v
	}
	snapshotMovements := append([]Movement(nil), r.movements...)
	snapshotLines := make(map[int64][]MovementLine, len(r.lines))
	for k, v := range r.lines {
		snapshotLines[k] = append([]MovementLine(nil), v...)
	}
	snapshotID := r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.levels = snapshotLevels
		r.movements = snapshotMovements
		r.lines = snapshotLines
		r.nextID = snapshotID
		return err
	}
	return nil
}

func (r *memoryRepo) ListLevels(ctx context.Context, orgID, warehouseID int64) ([]Level, error) {
	result := []Level{}
	for _, lvl := range r.levels {
		if lvl.OrgID == orgID && lvl.WarehouseID == warehouseID {
			result = append(result, lvl)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, orgID int64, filter MovementFilter) ([]Movement, map[int64][]MovementLine, error) {
	movements := []Movement{}
	lines := map[int64][]MovementLine{}
	for _, mv := range r.movements {
		if mv.OrgID != orgID {
			continue
		}
		if filter.WarehouseID != 0 && mv.WarehouseID != filter.WarehouseID {
			continue
		}
		movements = append(movements, mv)
		lines[mv.ID] = append([]MovementLine(nil), r.lines[mv.ID]...)
	}
	return movements, lines, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

func (tx *memoryTx) InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error {
	tx.repo.lines[movementID] = append(tx.repo.lines[movementID], lines...)
	return nil
}

func (tx *memoryTx) GetLevelForUpdate(ctx context.Context, orgID, warehouseID, itemID int64) (Level, error) {
	if lvl, ok := tx.repo.levels[levelKey(orgID, warehouseID, itemID)]; ok {
		return lvl, nil
	}
	return Level{OrgID: orgID, WarehouseID: warehouseID, ItemID: itemID}, ErrLevelNotFound
}

func (tx *memoryTx) UpsertLevel(ctx context.Context, level Level) error {
	tx.repo.levels[levelKey(level.OrgID, level.WarehouseID, level.ItemID)] = level
	return nil
}

func (r *memoryRepo) qty(orgID, warehouseID, itemID int64) int64 {
	return r.levels[levelKey(orgID, warehouseID, itemID)].Qty
}

func testCaller() shared.Caller {
	return shared.Caller{ActorID: 7, ActorName: "Budi", OrgID: 1}
}

func TestReceiptCreatesLevelLazily(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	mv, err := svc.PostMovement(ctx, testCaller(), MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, MovementReceipt, mv.Kind)
	require.NotEmpty(t, mv.Code)
	require.Equal(t, int64(100), repo.qty(1, 1, 42))
}

func TestReceiptRejectsNonPositiveLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.PostMovement(context.Background(), testCaller(), MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: -5}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.Empty(t, repo.movements)
}

func TestAdjustmentAllowsSignedDeltas(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	caller := testCaller()

	_, err := svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: 10}},
	})
	require.NoError(t, err)

	_, err = svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementAdjustment,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: -4}},
		Note:        "cycle count",
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), repo.qty(1, 1, 42))
}

func TestMovementRejectsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	caller := testCaller()

	_, err := svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: 3}},
	})
	require.NoError(t, err)

	_, err = svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementAdjustment,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: -5}},
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(3), insufficient.Available)
	require.Equal(t, int64(5), insufficient.Requested)
	require.Equal(t, int64(3), repo.qty(1, 1, 42))
}

func TestMultiLineMovementIsAtomic(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	caller := testCaller()

	_, err := svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 1, Delta: 10}, {ItemID: 2, Delta: 2}},
	})
	require.NoError(t, err)

	// Second line exceeds stock; first line must not stick either.
	_, err = svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementAdjustment,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 1, Delta: -5}, {ItemID: 2, Delta: -3}},
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(2), insufficient.ItemID)
	require.Equal(t, int64(10), repo.qty(1, 1, 1))
	require.Equal(t, int64(2), repo.qty(1, 1, 2))
	require.Len(t, repo.movements, 1)
}

func TestTransferConservesTotalStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	caller := testCaller()

	_, err := svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: 50}},
	})
	require.NoError(t, err)

	out, in, err := svc.PostTransfer(ctx, caller, TransferInput{
		ItemID:       42,
		Qty:          20,
		SrcWarehouse: 1,
		DstWarehouse: 2,
	})
	require.NoError(t, err)
	require.Equal(t, MovementTransferOut, out.Kind)
	require.Equal(t, MovementTransferIn, in.Kind)
	require.Equal(t, int64(30), repo.qty(1, 1, 42))
	require.Equal(t, int64(20), repo.qty(1, 2, 42))
	require.Equal(t, int64(50), repo.qty(1, 1, 42)+repo.qty(1, 2, 42))
}

func TestTransferInsufficientStockAborts(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	caller := testCaller()

	_, err := svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 42, Delta: 5}},
	})
	require.NoError(t, err)

	_, _, err = svc.PostTransfer(ctx, caller, TransferInput{
		ItemID:       42,
		Qty:          9,
		SrcWarehouse: 1,
		DstWarehouse: 2,
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(5), repo.qty(1, 1, 42))
	require.Equal(t, int64(0), repo.qty(1, 2, 42))
	require.Len(t, repo.movements, 1)
}

func TestTransferRejectsSameWarehouse(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, _, err := svc.PostTransfer(context.Background(), testCaller(), TransferInput{
		ItemID:       42,
		Qty:          1,
		SrcWarehouse: 1,
		DstWarehouse: 1,
	})
	require.ErrorIs(t, err, ErrSameWarehouse)
}

func TestPostMovementRejectsTransferKinds(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	for _, kind := range []MovementKind{MovementTransferOut, MovementTransferIn, MovementIssue} {
		_, err := svc.PostMovement(context.Background(), testCaller(), MovementRequest{
			Kind:        kind,
			WarehouseID: 1,
			Lines:       []LineInput{{ItemID: 42, Delta: 1}},
		})
		require.ErrorIs(t, err, ErrInvalidKind)
	}
}

func TestMovementsListIncludesLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	caller := testCaller()

	mv, err := svc.PostMovement(ctx, caller, MovementRequest{
		Kind:        MovementReceipt,
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 1, Delta: 7}, {ItemID: 2, Delta: 3}},
	})
	require.NoError(t, err)

	views, err := svc.Movements(ctx, caller, MovementFilter{WarehouseID: 1})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, mv.ID, views[0].Movement.ID)
	require.Len(t, views[0].Lines, 2)
}
