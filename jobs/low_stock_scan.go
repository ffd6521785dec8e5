package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/uranghalus/dutaassets-sub001/internal/jobs"
)

// LowStockScanJob flags item/warehouse pairs whose on-hand quantity fell
// below the item's minimum stock.
type LowStockScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the low-stock scan logic.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("limit", payload.Limit))
	logger.Info("starting low stock scan")

	rows, err := j.scan(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, row := range rows {
		logger.Warn("item below minimum stock",
			slog.Int64("org_id", row.OrgID),
			slog.Int64("item_id", row.ItemID),
			slog.String("item_code", row.ItemCode),
			slog.Int64("warehouse_id", row.WarehouseID),
			slog.Int64("qty", row.Qty),
			slog.Int64("min_stock", row.MinStock),
		)
		j.metrics().AddAlerts(TaskLowStockScan, row.OrgID, 1)
	}

	logger.Info("completed low stock scan",
		slog.Int("flagged", len(rows)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

type lowStockRow struct {
	OrgID       int64
	ItemID      int64
	ItemCode    string
	WarehouseID int64
	Qty         int64
	MinStock    int64
}

func (j *LowStockScanJob) scan(ctx context.Context, limit int) ([]lowStockRow, error) {
	if j.Pool == nil {
		return nil, errors.New("low stock scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT i.org_id, i.id, i.code, l.warehouse_id, l.qty, i.min_stock
		FROM stock_levels l
		JOIN items i ON i.id = l.item_id
		WHERE i.is_active AND i.min_stock > 0 AND l.qty < i.min_stock
		ORDER BY i.org_id, i.id, l.warehouse_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flagged := make([]lowStockRow, 0)
	for rows.Next() {
		var row lowStockRow
		if err := rows.Scan(&row.OrgID, &row.ItemID, &row.ItemCode, &row.WarehouseID, &row.Qty, &row.MinStock); err != nil {
			return nil, err
		}
		flagged = append(flagged, row)
	}
	return flagged, rows.Err()
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
