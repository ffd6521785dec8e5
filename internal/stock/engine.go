package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Apply posts one movement against the ledger inside the caller's transaction.
// Every line locks its level row, validates the non-negativity invariant and
// writes the new quantity; any failing line aborts the whole movement, so
// partial application never reaches the store. A missing level row reads as
// quantity 0 and is created on first inbound delta.
func Apply(ctx context.Context, tx LedgerTx, input MovementInput) (Movement, error) {
	if len(input.Lines) == 0 {
		return Movement{}, ErrNoLines
	}
	switch input.Kind {
	case MovementReceipt, MovementTransferOut, MovementTransferIn, MovementAdjustment, MovementIssue:
	default:
		return Movement{}, ErrInvalidKind
	}
	if input.OrgID == 0 || input.WarehouseID == 0 {
		return Movement{}, errors.New("stock: org and warehouse required")
	}
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.Delta == 0 {
			return Movement{}, ErrInvalidQuantity
		}
	}

	now := time.Now().UTC()
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("MV-%d", now.UnixNano())
	}

	// Lock levels in item order so concurrent movements touching the same
	// items cannot deadlock.
	lines := append([]LineInput(nil), input.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })

	header := Movement{
		OrgID:       input.OrgID,
		Code:        code,
		Kind:        input.Kind,
		WarehouseID: input.WarehouseID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
		Note:        input.Note,
		PostedBy:    input.ActorID,
		PostedAt:    now,
	}
	movementID, err := tx.InsertMovement(ctx, header)
	if err != nil {
		return Movement{}, err
	}
	header.ID = movementID

	movementLines := make([]MovementLine, 0, len(lines))
	for _, line := range lines {
		level, err := tx.GetLevelForUpdate(ctx, input.OrgID, input.WarehouseID, line.ItemID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return Movement{}, err
		}
		next := level.Qty + line.Delta
		if next < 0 {
			return Movement{}, &InsufficientStockError{
				ItemID:      line.ItemID,
				WarehouseID: input.WarehouseID,
				Available:   level.Qty,
				Requested:   -line.Delta,
			}
		}
		level.Qty = next
		if err := tx.UpsertLevel(ctx, level); err != nil {
			return Movement{}, err
		}
		movementLines = append(movementLines, MovementLine{
			MovementID: movementID,
			ItemID:     line.ItemID,
			QtyDelta:   line.Delta,
		})
	}
	if err := tx.InsertMovementLines(ctx, movementID, movementLines); err != nil {
		return Movement{}, err
	}
	return header, nil
}
