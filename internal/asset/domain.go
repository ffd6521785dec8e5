package asset

import (
	"errors"
	"time"
)

// Status enumerates asset lifecycle states.
type Status string

const (
	// StatusAvailable means the asset has no active holds.
	StatusAvailable Status = "AVAILABLE"
	// StatusInUse means an active loan holds the asset.
	StatusInUse Status = "IN_USE"
	// StatusMaintenance means a scheduled repair holds the asset.
	StatusMaintenance Status = "MAINTENANCE"
	// StatusDisposed is terminal.
	StatusDisposed Status = "DISPOSED"
	// StatusLost is terminal.
	StatusLost Status = "LOST"
)

// Terminal reports whether lifecycle operations are closed for the asset.
func (s Status) Terminal() bool {
	return s == StatusDisposed || s == StatusLost
}

// LoanStatus enumerates loan record states.
type LoanStatus string

const (
	// LoanActive means the asset is out with the employee.
	LoanActive LoanStatus = "ACTIVE"
	// LoanReturned is terminal.
	LoanReturned LoanStatus = "RETURNED"
)

// MaintenanceStatus enumerates maintenance record states.
type MaintenanceStatus string

const (
	// MaintenanceScheduled means the work order holds the asset.
	MaintenanceScheduled MaintenanceStatus = "SCHEDULED"
	// MaintenanceCompleted is terminal.
	MaintenanceCompleted MaintenanceStatus = "COMPLETED"
)

// MaintenanceRepair is the work type that holds an asset while scheduled.
const MaintenanceRepair = "REPAIR"

// Asset is a tracked physical asset. Status is always recomputed from the
// active holds inside the same transaction that changes a hold, never pushed
// by individual call sites.
type Asset struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	HolderID  int64     `json:"holder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Loan is a subordinate loan record.
type Loan struct {
	ID         int64      `json:"id"`
	AssetID    int64      `json:"asset_id"`
	EmployeeID int64      `json:"employee_id"`
	Status     LoanStatus `json:"status"`
	Note       string     `json:"note,omitempty"`
	LoanedAt   time.Time  `json:"loaned_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// Maintenance is a subordinate work-order record.
type Maintenance struct {
	ID          int64             `json:"id"`
	AssetID     int64             `json:"asset_id"`
	Type        string            `json:"type"`
	Status      MaintenanceStatus `json:"status"`
	Note        string            `json:"note,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

var (
	// ErrNotFound indicates a missing asset, loan or maintenance record.
	ErrNotFound = errors.New("asset: not found")
	// ErrAssetNotAvailable indicates a loan attempt on a held asset.
	ErrAssetNotAvailable = errors.New("asset: not available")
	// ErrAlreadyReturned indicates a double return.
	ErrAlreadyReturned = errors.New("asset: loan already returned")
	// ErrAlreadyCompleted indicates a double completion.
	ErrAlreadyCompleted = errors.New("asset: maintenance already completed")
	// ErrTerminalStatus indicates a lifecycle operation on a disposed or lost asset.
	ErrTerminalStatus = errors.New("asset: terminal status")
)

// deriveStatus recomputes the asset's status from its active holds. An
// active loan wins over a scheduled repair; non-repair work orders do not
// hold the asset; terminal statuses are never overridden. Returns the status
// plus the holder implied by the winning loan.
func deriveStatus(current Status, activeLoans []Loan, scheduled []Maintenance) (Status, int64) {
	if current.Terminal() {
		return current, 0
	}
	if len(activeLoans) > 0 {
		return StatusInUse, activeLoans[0].EmployeeID
	}
	for _, m := range scheduled {
		if m.Type == MaintenanceRepair {
			return StatusMaintenance, 0
		}
	}
	return StatusAvailable, 0
}
