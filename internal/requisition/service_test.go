package requisition

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uranghalus/dutaassets-sub001/internal/shared"
	"github.com/uranghalus/dutaassets-sub001/internal/stock"
)

type memoryRepo struct {
	reqs      map[int64]Requisition
	items     map[int64][]Item
	levels    map[string]int64
	movements []stock.Movement
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		reqs:   make(map[int64]Requisition),
		items:  make(map[int64][]Item),
		levels: make(map[string]int64),
	}
}

func stockKey(orgID, warehouseID, itemID int64) string {
	return fmt.Sprintf("%d:%d:%d", orgID, warehouseID, itemID)
}

func (r *memoryRepo) seedStock(orgID, warehouseID, itemID, qty int64) {
	r.levels[stockKey(orgID, warehouseID, itemID)] = qty
}

// WithTx snapshots all state and restores it on error, mirroring the
// commit-or-abort contract of the real transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	reqs := make(map[int64]Requisition, len(r.reqs))
	for k, v := range r.reqs {
		reqs[k] = v
	}
	items := make(map[int64][]Item, len(r.items))
	for k, v := range r.items {
		items[k] = append([]Item(nil), v...)
	}
	levels := make(map[string]int64, len(r.levels))
	for k, v := range r.levels {
		levels[k] = v
	}
	movements := append([]stock.Movement(nil), r.movements...)
	nextID := r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.reqs = reqs
		r.items = items
		r.levels = levels
		r.movements = movements
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, orgID, id int64) (Requisition, []Item, error) {
	req, ok := r.reqs[id]
	if !ok || req.OrgID != orgID {
		return Requisition{}, nil, ErrNotFound
	}
	return req, append([]Item(nil), r.items[id]...), nil
}

func (r *memoryRepo) List(ctx context.Context, orgID int64, filter Filter) ([]Requisition, error) {
	result := []Requisition{}
	for _, req := range r.reqs {
		if req.OrgID != orgID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		result = append(result, req)
	}
	return result, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetForUpdate(ctx context.Context, orgID, id int64) (Requisition, []Item, error) {
	return t.repo.Get(ctx, orgID, id)
}

func (t *memoryTx) Insert(ctx context.Context, req Requisition, items []Item) (Requisition, error) {
	t.repo.nextID++
	req.ID = t.repo.nextID
	t.repo.reqs[req.ID] = req
	stored := make([]Item, 0, len(items))
	for i, item := range items {
		item.ID = int64(i + 1)
		item.RequisitionID = req.ID
		stored = append(stored, item)
	}
	t.repo.items[req.ID] = stored
	return req, nil
}

func (t *memoryTx) Update(ctx context.Context, req Requisition) error {
	if _, ok := t.repo.reqs[req.ID]; !ok {
		return ErrNotFound
	}
	t.repo.reqs[req.ID] = req
	return nil
}

func (t *memoryTx) Ledger() stock.LedgerTx {
	return &memoryLedger{repo: t.repo}
}

type memoryLedger struct {
	repo *memoryRepo
}

func (l *memoryLedger) InsertMovement(ctx context.Context, mv stock.Movement) (int64, error) {
	mv.ID = int64(len(l.repo.movements) + 1)
	l.repo.movements = append(l.repo.movements, mv)
	return mv.ID, nil
}

func (l *memoryLedger) InsertMovementLines(ctx context.Context, movementID int64, lines []stock.MovementLine) error {
	return nil
}

func (l *memoryLedger) GetLevelForUpdate(ctx context.Context, orgID, warehouseID, itemID int64) (stock.Level, error) {
	key := stockKey(orgID, warehouseID, itemID)
	if qty, ok := l.repo.levels[key]; ok {
		return stock.Level{OrgID: orgID, WarehouseID: warehouseID, ItemID: itemID, Qty: qty}, nil
	}
	return stock.Level{OrgID: orgID, WarehouseID: warehouseID, ItemID: itemID}, stock.ErrLevelNotFound
}

func (l *memoryLedger) UpsertLevel(ctx context.Context, level stock.Level) error {
	l.repo.levels[stockKey(level.OrgID, level.WarehouseID, level.ItemID)] = level.Qty
	return nil
}

func testCaller(name string) shared.Caller {
	return shared.Caller{ActorID: 7, ActorName: name, OrgID: 1}
}

func createRequisition(t *testing.T, svc *Service, items []ItemInput, warehouseID int64) Requisition {
	t.Helper()
	req, err := svc.Create(context.Background(), testCaller("Budi"), CreateInput{
		Items:       items,
		WarehouseID: warehouseID,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPendingSupervisor, req.Status)
	return req
}

func TestCreateRequiresItems(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Create(context.Background(), testCaller("Budi"), CreateInput{})
	require.ErrorIs(t, err, ErrNoItems)

	_, err = svc.Create(context.Background(), testCaller("Budi"), CreateInput{
		Items: []ItemInput{{ItemID: 1, Qty: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQty)
}

func TestAdvanceStampsEachStage(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 9, 100, 50)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	req := createRequisition(t, svc, []ItemInput{{ItemID: 100, Qty: 5}}, 9)

	req, err := svc.Advance(ctx, testCaller("Sari"), req.ID, StatusPendingFA, 0)
	require.NoError(t, err)
	require.Equal(t, StatusPendingFA, req.Status)
	require.Equal(t, "Sari", req.SupervisorAckBy)
	require.NotNil(t, req.SupervisorAckAt)

	req, err = svc.Advance(ctx, testCaller("Dewi"), req.ID, StatusPendingGM, 0)
	require.NoError(t, err)
	require.Equal(t, "Dewi", req.FAManagerAckBy)
	require.NotNil(t, req.FAManagerAckAt)

	req, err = svc.Advance(ctx, testCaller("Agus"), req.ID, StatusPendingWarehouse, 0)
	require.NoError(t, err)
	require.Equal(t, "Agus", req.GMApprovedBy)
	require.NotNil(t, req.GMApprovedAt)

	req, err = svc.Advance(ctx, testCaller("Rina"), req.ID, StatusCompleted, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, req.Status)
	require.Equal(t, "Rina", req.FulfilledBy)
	require.NotNil(t, req.FulfilledAt)
	require.Equal(t, int64(45), repo.levels[stockKey(1, 9, 100)])
	require.Len(t, repo.movements, 1)
	require.Equal(t, stock.MovementIssue, repo.movements[0].Kind)
}

func TestAdvanceRejectsSkippedStage(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	req := createRequisition(t, svc, []ItemInput{{ItemID: 100, Qty: 5}}, 9)

	_, err := svc.Advance(context.Background(), testCaller("Sari"), req.ID, StatusPendingGM, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, _, getErr := svc.Get(context.Background(), testCaller("Sari"), req.ID)
	require.NoError(t, getErr)
	require.Equal(t, StatusPendingSupervisor, stored.Status)
}

func TestCompleteRequiresWarehouse(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	req := createRequisition(t, svc, []ItemInput{{ItemID: 100, Qty: 5}}, 0)

	var err error
	for _, target := range []Status{StatusPendingFA, StatusPendingGM, StatusPendingWarehouse} {
		req, err = svc.Advance(ctx, testCaller("Sari"), req.ID, target, 0)
		require.NoError(t, err)
	}

	_, err = svc.Advance(ctx, testCaller("Rina"), req.ID, StatusCompleted, 0)
	require.ErrorIs(t, err, ErrMissingWarehouse)

	// Supplying the warehouse in the completing call resolves it.
	repo.seedStock(1, 9, 100, 10)
	req, err = svc.Advance(ctx, testCaller("Rina"), req.ID, StatusCompleted, 9)
	require.NoError(t, err)
	require.Equal(t, int64(9), req.WarehouseID)
}

func TestCompleteInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 9, 100, 50)
	repo.seedStock(1, 9, 200, 5)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	req := createRequisition(t, svc, []ItemInput{{ItemID: 100, Qty: 3}, {ItemID: 200, Qty: 1000}}, 9)

	var err error
	for _, target := range []Status{StatusPendingFA, StatusPendingGM, StatusPendingWarehouse} {
		req, err = svc.Advance(ctx, testCaller("Sari"), req.ID, target, 0)
		require.NoError(t, err)
	}

	_, err = svc.Advance(ctx, testCaller("Rina"), req.ID, StatusCompleted, 0)
	var insufficient *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(200), insufficient.ItemID)

	stored, _, getErr := svc.Get(ctx, testCaller("Rina"), req.ID)
	require.NoError(t, getErr)
	require.Equal(t, StatusPendingWarehouse, stored.Status)
	require.Empty(t, stored.FulfilledBy)
	require.Equal(t, int64(50), repo.levels[stockKey(1, 9, 100)])
	require.Equal(t, int64(5), repo.levels[stockKey(1, 9, 200)])
	require.Empty(t, repo.movements)
}

func TestRejectFromAnyPendingStage(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	req := createRequisition(t, svc, []ItemInput{{ItemID: 100, Qty: 5}}, 9)

	var err error
	req, err = svc.Advance(ctx, testCaller("Sari"), req.ID, StatusPendingFA, 0)
	require.NoError(t, err)

	req, err = svc.Reject(ctx, testCaller("Dewi"), req.ID, "budget cut")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, req.Status)
	require.Equal(t, "Dewi", req.RejectedBy)
	require.NotNil(t, req.RejectedAt)
	require.Empty(t, repo.movements)
}

func TestTerminalRequisitionIsImmutable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	req := createRequisition(t, svc, []ItemInput{{ItemID: 100, Qty: 5}}, 9)

	_, err := svc.Reject(ctx, testCaller("Sari"), req.ID, "")
	require.NoError(t, err)

	_, err = svc.Reject(ctx, testCaller("Sari"), req.ID, "")
	require.ErrorIs(t, err, ErrAlreadyTerminal)

	_, err = svc.Advance(ctx, testCaller("Sari"), req.ID, StatusPendingFA, 0)
	require.ErrorIs(t, err, ErrAlreadyTerminal)

	stored, _, getErr := svc.Get(ctx, testCaller("Sari"), req.ID)
	require.NoError(t, getErr)
	require.Equal(t, StatusRejected, stored.Status)
}
