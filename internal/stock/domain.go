package stock

import (
	"errors"
	"fmt"
	"time"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementReceipt represents an inbound goods receipt.
	MovementReceipt MovementKind = "RECEIPT"
	// MovementTransferOut is the source half of a warehouse transfer.
	MovementTransferOut MovementKind = "TRANSFER_OUT"
	// MovementTransferIn is the destination half of a warehouse transfer.
	MovementTransferIn MovementKind = "TRANSFER_IN"
	// MovementAdjustment indicates a manual stock correction.
	MovementAdjustment MovementKind = "ADJUSTMENT"
	// MovementIssue records an outbound requisition fulfillment.
	MovementIssue MovementKind = "ISSUE"
)

// Movement models the immutable header of a stock movement.
type Movement struct {
	ID          int64
	OrgID       int64
	Code        string
	Kind        MovementKind
	WarehouseID int64
	RefModule   string
	RefID       string
	Note        string
	PostedBy    int64
	PostedAt    time.Time
}

// MovementLine models one item delta within a movement.
type MovementLine struct {
	ID         int64
	MovementID int64
	ItemID     int64
	QtyDelta   int64
}

// Level summarises on-hand stock per warehouse and item.
type Level struct {
	OrgID       int64
	WarehouseID int64
	ItemID      int64
	Qty         int64
	UpdatedAt   time.Time
}

// LineInput describes a requested item delta.
type LineInput struct {
	ItemID int64
	Delta  int64
}

// MovementInput describes a movement to apply against the ledger.
type MovementInput struct {
	OrgID       int64
	Code        string
	Kind        MovementKind
	WarehouseID int64
	Lines       []LineInput
	RefModule   string
	RefID       string
	Note        string
	ActorID     int64
}

// TransferInput describes a transfer between two warehouses.
type TransferInput struct {
	Code         string
	ItemID       int64
	Qty          int64
	SrcWarehouse int64
	DstWarehouse int64
	Note         string
}

// MovementFilter filters movement history listings.
type MovementFilter struct {
	WarehouseID int64
	ItemID      int64
	From        time.Time
	To          time.Time
	Limit       int
}

var (
	// ErrInvalidQuantity indicates a zero or wrongly-signed line delta.
	ErrInvalidQuantity = errors.New("stock: quantity must be non zero")
	// ErrNoLines indicates a movement without line items.
	ErrNoLines = errors.New("stock: movement requires at least one line")
	// ErrSameWarehouse indicates a transfer onto itself.
	ErrSameWarehouse = errors.New("stock: source and destination warehouse must differ")
	// ErrInvalidKind indicates an unknown movement kind.
	ErrInvalidKind = errors.New("stock: unknown movement kind")
	// ErrNotFound indicates a missing warehouse or item reference.
	ErrNotFound = errors.New("stock: not found")
)

// InsufficientStockError reports an outbound line that would drive a level negative.
type InsufficientStockError struct {
	ItemID      int64
	WarehouseID int64
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for item %d at warehouse %d: available %d, requested %d",
		e.ItemID, e.WarehouseID, e.Available, e.Requested)
}
