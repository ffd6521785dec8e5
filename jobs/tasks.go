package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan flags item/warehouse pairs that fell below minimum stock.
	TaskLowStockScan = "stock:low_stock_scan"
	// TaskMaintenanceDueScan flags scheduled maintenance approaching its date.
	TaskMaintenanceDueScan = "asset:maintenance_due_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "ops:idempotency_cleanup"
)

// LowStockScanPayload configures a low-stock scan run.
type LowStockScanPayload struct {
	// Limit caps the number of flagged rows per run. Zero means the default.
	Limit int `json:"limit"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// MaintenanceDueScanPayload configures a maintenance-due scan run.
type MaintenanceDueScanPayload struct {
	// LeadDays is how far ahead scheduled work is considered due. Zero means the default.
	LeadDays int `json:"lead_days"`
	Limit    int `json:"limit"`
}

// NewMaintenanceDueScanTask constructs an Asynq task.
func NewMaintenanceDueScanTask(payload MaintenanceDueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMaintenanceDueScan, data), nil
}

// IdempotencyCleanupPayload configures the cleanup run.
type IdempotencyCleanupPayload struct {
	// RetentionHours is how long processed keys are kept. Zero means the default.
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
