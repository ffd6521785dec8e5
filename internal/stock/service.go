package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, LedgerTx) error) error
	ListLevels(ctx context.Context, orgID, warehouseID int64) ([]Level, error)
	ListMovements(ctx context.Context, orgID int64, filter MovementFilter) ([]Movement, map[int64][]MovementLine, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	levelGroup  singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem}
}

// MovementRequest describes a receipt or adjustment to post.
type MovementRequest struct {
	Code        string
	Kind        MovementKind
	WarehouseID int64
	Lines       []LineInput
	Note        string
}

// PostMovement applies a receipt or adjustment as one atomic movement.
// Receipts accept inbound deltas only; adjustments accept signed deltas and
// are the only kind allowed to seed a level for a never-stocked item.
func (s *Service) PostMovement(ctx context.Context, caller shared.Caller, req MovementRequest) (Movement, error) {
	switch req.Kind {
	case MovementReceipt:
		for _, line := range req.Lines {
			if line.Delta <= 0 {
				return Movement{}, ErrInvalidQuantity
			}
		}
	case MovementAdjustment:
	default:
		return Movement{}, ErrInvalidKind
	}
	return s.post(ctx, caller, MovementInput{
		OrgID:       caller.OrgID,
		Code:        req.Code,
		Kind:        req.Kind,
		WarehouseID: req.WarehouseID,
		Lines:       req.Lines,
		RefModule:   "STOCK",
		Note:        req.Note,
		ActorID:     caller.ActorID,
	})
}

// PostTransfer moves stock between warehouses as one logical movement:
// a TRANSFER_OUT at the source paired with a TRANSFER_IN at the destination,
// committed in the same transaction. A failing source check means the
// destination write never happens.
func (s *Service) PostTransfer(ctx context.Context, caller shared.Caller, input TransferInput) (Movement, Movement, error) {
	if input.SrcWarehouse == 0 || input.DstWarehouse == 0 || input.ItemID == 0 {
		return Movement{}, Movement{}, errors.New("stock: warehouse and item required")
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return Movement{}, Movement{}, ErrSameWarehouse
	}
	if input.Qty <= 0 {
		return Movement{}, Movement{}, ErrInvalidQuantity
	}
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("TRF-%d", time.Now().UnixNano())
	}

	key := fmt.Sprintf("TRANSFER:%s:%d", code, caller.OrgID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			return Movement{}, Movement{}, err
		}
		insertedKey = true
	}

	var out, in Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		var err error
		out, err = Apply(ctx, tx, MovementInput{
			OrgID:       caller.OrgID,
			Code:        fmt.Sprintf("%s-OUT", code),
			Kind:        MovementTransferOut,
			WarehouseID: input.SrcWarehouse,
			Lines:       []LineInput{{ItemID: input.ItemID, Delta: -input.Qty}},
			RefModule:   "STOCK",
			Note:        fmt.Sprintf("Transfer to %d: %s", input.DstWarehouse, input.Note),
			ActorID:     caller.ActorID,
		})
		if err != nil {
			return err
		}
		in, err = Apply(ctx, tx, MovementInput{
			OrgID:       caller.OrgID,
			Code:        fmt.Sprintf("%s-IN", code),
			Kind:        MovementTransferIn,
			WarehouseID: input.DstWarehouse,
			Lines:       []LineInput{{ItemID: input.ItemID, Delta: input.Qty}},
			RefModule:   "STOCK",
			Note:        fmt.Sprintf("Transfer from %d: %s", input.SrcWarehouse, input.Note),
			ActorID:     caller.ActorID,
		})
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Movement{}, Movement{}, err
	}
	s.recordAudit(ctx, caller, "stock:TRANSFER", fmt.Sprintf("%d", input.ItemID), map[string]any{
		"src_warehouse": input.SrcWarehouse,
		"dst_warehouse": input.DstWarehouse,
		"qty":           input.Qty,
	})
	return out, in, nil
}

// Levels lists current stock for a warehouse. Concurrent identical reads are
// coalesced since level listings back the busiest dashboard polling path.
func (s *Service) Levels(ctx context.Context, caller shared.Caller, warehouseID int64) ([]Level, error) {
	if warehouseID == 0 {
		return nil, errors.New("stock: warehouse required")
	}
	key := fmt.Sprintf("levels:%d:%d", caller.OrgID, warehouseID)
	result, err, _ := s.levelGroup.Do(key, func() (any, error) {
		return s.repo.ListLevels(ctx, caller.OrgID, warehouseID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Level), nil
}

// MovementView couples a header with its lines for history listings.
type MovementView struct {
	Movement Movement       `json:"movement"`
	Lines    []MovementLine `json:"lines"`
}

// Movements lists movement history for audit reconstruction.
func (s *Service) Movements(ctx context.Context, caller shared.Caller, filter MovementFilter) ([]MovementView, error) {
	movements, lines, err := s.repo.ListMovements(ctx, caller.OrgID, filter)
	if err != nil {
		return nil, err
	}
	views := make([]MovementView, 0, len(movements))
	for _, mv := range movements {
		views = append(views, MovementView{Movement: mv, Lines: lines[mv.ID]})
	}
	return views, nil
}

func (s *Service) post(ctx context.Context, caller shared.Caller, input MovementInput) (Movement, error) {
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("MV-%d", time.Now().UTC().UnixNano())
		input.Code = code
	}
	key := fmt.Sprintf("%s:%s:%d:%d", input.Kind, code, caller.OrgID, input.WarehouseID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			return Movement{}, err
		}
		insertedKey = true
	}

	var posted Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		var err error
		posted, err = Apply(ctx, tx, input)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Movement{}, err
	}
	s.recordAudit(ctx, caller, fmt.Sprintf("stock:%s", input.Kind), posted.Code, map[string]any{
		"warehouse_id": input.WarehouseID,
		"lines":        len(input.Lines),
		"note":         input.Note,
	})
	return posted, nil
}

func (s *Service) recordAudit(ctx context.Context, caller shared.Caller, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    caller.OrgID,
		ActorID:  caller.ActorID,
		Action:   action,
		Entity:   "stock_movement",
		EntityID: entityID,
		Meta:     meta,
	})
}
