package requisition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uranghalus/dutaassets-sub001/internal/shared"
	"github.com/uranghalus/dutaassets-sub001/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, orgID, id int64) (Requisition, []Item, error)
	List(ctx context.Context, orgID int64, filter Filter) ([]Requisition, error)
}

// ApprovalPort records approval history entries.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	EnsureSubmit(ctx context.Context, orgID int64, module string, ref uuid.UUID, actorID int64, note string) error
	List(ctx context.Context, orgID int64, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const approvalModule = "REQUISITION"

// Service runs the sequential approval state machine.
type Service struct {
	repo      RepositoryPort
	approvals ApprovalPort
	audit     AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, approvals ApprovalPort, audit AuditPort) *Service {
	return &Service{repo: repo, approvals: approvals, audit: audit}
}

// ItemInput is one requested line on submission.
type ItemInput struct {
	ItemID int64
	Qty    int64
}

// CreateInput describes a new requisition.
type CreateInput struct {
	Code        string
	WarehouseID int64
	Items       []ItemInput
	Note        string
}

// Create submits a requisition at PENDING_SUPERVISOR.
func (s *Service) Create(ctx context.Context, caller shared.Caller, input CreateInput) (Requisition, error) {
	if len(input.Items) == 0 {
		return Requisition{}, ErrNoItems
	}
	for _, item := range input.Items {
		if item.ItemID == 0 || item.Qty <= 0 {
			return Requisition{}, ErrInvalidQty
		}
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		code = fmt.Sprintf("REQ-%d", time.Now().UTC().UnixNano())
	}

	req := Requisition{
		Ref:         uuid.New(),
		OrgID:       caller.OrgID,
		Code:        code,
		RequesterID: caller.ActorID,
		WarehouseID: input.WarehouseID,
		Status:      StatusPendingSupervisor,
		Note:        strings.TrimSpace(input.Note),
	}
	items := make([]Item, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, Item{ItemID: item.ItemID, Qty: item.Qty})
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.Insert(ctx, req, items)
		if err != nil {
			return err
		}
		req = created
		return nil
	})
	if err != nil {
		return Requisition{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, caller.OrgID, approvalModule, req.Ref, caller.ActorID, req.Note)
	}
	s.recordAudit(ctx, caller, "requisition:SUBMIT", req.Code, map[string]any{"items": len(items)})
	return req, nil
}

// Get returns one requisition with items.
func (s *Service) Get(ctx context.Context, caller shared.Caller, id int64) (Requisition, []Item, error) {
	return s.repo.Get(ctx, caller.OrgID, id)
}

// List returns requisitions matching the filter.
func (s *Service) List(ctx context.Context, caller shared.Caller, filter Filter) ([]Requisition, error) {
	return s.repo.List(ctx, caller.OrgID, filter)
}

// History returns the approval trail for a requisition.
func (s *Service) History(ctx context.Context, caller shared.Caller, id int64) ([]shared.ApprovalLog, error) {
	req, _, err := s.repo.Get(ctx, caller.OrgID, id)
	if err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, caller.OrgID, approvalModule, req.Ref)
}

// Advance moves a requisition one step forward in the chain. Skipping stages
// is rejected. Completing PENDING_WAREHOUSE issues stock for every item in
// the same transaction as the status flip; a failing stock check on any line
// leaves the requisition in PENDING_WAREHOUSE with no stock touched.
func (s *Service) Advance(ctx context.Context, caller shared.Caller, id int64, target Status, warehouseID int64) (Requisition, error) {
	var result Requisition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, items, err := tx.GetForUpdate(ctx, caller.OrgID, id)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return ErrAlreadyTerminal
		}
		if successor[req.Status] != target {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		switch req.Status {
		case StatusPendingSupervisor:
			req.SupervisorAckBy = caller.ActorName
			req.SupervisorAckAt = &now
		case StatusPendingFA:
			req.FAManagerAckBy = caller.ActorName
			req.FAManagerAckAt = &now
		case StatusPendingGM:
			req.GMApprovedBy = caller.ActorName
			req.GMApprovedAt = &now
		case StatusPendingWarehouse:
			if warehouseID != 0 {
				req.WarehouseID = warehouseID
			}
			if req.WarehouseID == 0 {
				return ErrMissingWarehouse
			}
			if err := s.issueStock(ctx, tx, caller, req, items); err != nil {
				return err
			}
			req.FulfilledBy = caller.ActorName
			req.FulfilledAt = &now
		}
		req.Status = target
		if err := tx.Update(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return Requisition{}, err
	}

	action := shared.ApprovalApprove
	if target == StatusCompleted {
		action = shared.ApprovalFulfill
	}
	s.recordApproval(ctx, caller, result, action)
	s.recordAudit(ctx, caller, fmt.Sprintf("requisition:%s", target), result.Code, map[string]any{"status": string(target)})
	return result, nil
}

// Reject moves a non-terminal requisition to REJECTED. Rejection is only
// possible before fulfillment, so no stock effects exist to unwind.
func (s *Service) Reject(ctx context.Context, caller shared.Caller, id int64, note string) (Requisition, error) {
	var result Requisition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, _, err := tx.GetForUpdate(ctx, caller.OrgID, id)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return ErrAlreadyTerminal
		}
		now := time.Now().UTC()
		req.Status = StatusRejected
		req.RejectedBy = caller.ActorName
		req.RejectedAt = &now
		if note != "" {
			req.Note = note
		}
		if err := tx.Update(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return Requisition{}, err
	}
	s.recordApproval(ctx, caller, result, shared.ApprovalReject)
	s.recordAudit(ctx, caller, "requisition:REJECTED", result.Code, map[string]any{"note": note})
	return result, nil
}

func (s *Service) issueStock(ctx context.Context, tx TxRepository, caller shared.Caller, req Requisition, items []Item) error {
	lines := make([]stock.LineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, stock.LineInput{ItemID: item.ItemID, Delta: -item.Qty})
	}
	_, err := stock.Apply(ctx, tx.Ledger(), stock.MovementInput{
		OrgID:       req.OrgID,
		Code:        fmt.Sprintf("ISS-%s", req.Code),
		Kind:        stock.MovementIssue,
		WarehouseID: req.WarehouseID,
		Lines:       lines,
		RefModule:   approvalModule,
		RefID:       req.Ref.String(),
		Note:        fmt.Sprintf("Fulfillment of %s", req.Code),
		ActorID:     caller.ActorID,
	})
	return err
}

func (s *Service) recordApproval(ctx context.Context, caller shared.Caller, req Requisition, action shared.ApprovalAction) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		OrgID:   caller.OrgID,
		Module:  approvalModule,
		RefID:   req.Ref,
		ActorID: caller.ActorID,
		Action:  action,
		Note:    string(req.Status),
	})
}

func (s *Service) recordAudit(ctx context.Context, caller shared.Caller, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    caller.OrgID,
		ActorID:  caller.ActorID,
		Action:   action,
		Entity:   "requisition",
		EntityID: entityID,
		Meta:     meta,
	})
}
