package requisition

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status enumerates requisition approval stages.
type Status string

const (
	// StatusPendingSupervisor is the initial stage after submission.
	StatusPendingSupervisor Status = "PENDING_SUPERVISOR"
	// StatusPendingFA awaits the finance & accounting manager.
	StatusPendingFA Status = "PENDING_FA"
	// StatusPendingGM awaits the general manager.
	StatusPendingGM Status = "PENDING_GM"
	// StatusPendingWarehouse awaits warehouse fulfillment.
	StatusPendingWarehouse Status = "PENDING_WAREHOUSE"
	// StatusCompleted is terminal; stock has been issued.
	StatusCompleted Status = "COMPLETED"
	// StatusRejected is terminal; reachable from any pending stage.
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transition is legal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// successor maps each pending stage to its only legal forward target.
var successor = map[Status]Status{
	StatusPendingSupervisor: StatusPendingFA,
	StatusPendingFA:         StatusPendingGM,
	StatusPendingGM:         StatusPendingWarehouse,
	StatusPendingWarehouse:  StatusCompleted,
}

// Requisition is the approval header. Stage stamps record who completed each
// stage and when; they are never cleared once written.
type Requisition struct {
	ID              int64      `json:"id"`
	Ref             uuid.UUID  `json:"ref"`
	OrgID           int64      `json:"org_id"`
	Code            string     `json:"code"`
	RequesterID     int64      `json:"requester_id"`
	WarehouseID     int64      `json:"warehouse_id,omitempty"`
	Status          Status     `json:"status"`
	Note            string     `json:"note,omitempty"`
	SupervisorAckBy string     `json:"supervisor_ack_by,omitempty"`
	SupervisorAckAt *time.Time `json:"supervisor_ack_at,omitempty"`
	FAManagerAckBy  string     `json:"fa_manager_ack_by,omitempty"`
	FAManagerAckAt  *time.Time `json:"fa_manager_ack_at,omitempty"`
	GMApprovedBy    string     `json:"gm_approved_by,omitempty"`
	GMApprovedAt    *time.Time `json:"gm_approved_at,omitempty"`
	FulfilledBy     string     `json:"fulfilled_by,omitempty"`
	FulfilledAt     *time.Time `json:"fulfilled_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Item is one requested line. Items are immutable once the header leaves
// PENDING_SUPERVISOR.
type Item struct {
	ID            int64 `json:"id"`
	RequisitionID int64 `json:"requisition_id"`
	ItemID        int64 `json:"item_id"`
	Qty           int64 `json:"qty"`
}

// Filter narrows requisition listings.
type Filter struct {
	Status      Status
	RequesterID int64
	Limit       int
	Offset      int
}

var (
	// ErrNotFound indicates a missing requisition within the caller's org.
	ErrNotFound = errors.New("requisition: not found")
	// ErrInvalidTransition indicates a target that is not the immediate successor.
	ErrInvalidTransition = errors.New("requisition: invalid status transition")
	// ErrMissingWarehouse indicates completion without a resolved warehouse.
	ErrMissingWarehouse = errors.New("requisition: fulfillment warehouse not resolved")
	// ErrAlreadyTerminal indicates an advance or reject on a terminal requisition.
	ErrAlreadyTerminal = errors.New("requisition: already in a terminal status")
	// ErrNoItems indicates a submission without requested lines.
	ErrNoItems = errors.New("requisition: at least one item required")
	// ErrInvalidQty indicates a non-positive requested quantity.
	ErrInvalidQty = errors.New("requisition: quantity must be positive")
)
