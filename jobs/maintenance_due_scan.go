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

// MaintenanceDueScanJob flags scheduled maintenance whose date is inside the
// lead window, so operators can prepare the asset before the work order runs.
type MaintenanceDueScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMaintenanceDueScanJob initialises the maintenance-due scan handler.
func NewMaintenanceDueScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *MaintenanceDueScanJob {
	return &MaintenanceDueScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the maintenance-due scan logic.
func (j *MaintenanceDueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("maintenance due scan: handler not configured")
	}
	var payload MaintenanceDueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.LeadDays <= 0 {
		payload.LeadDays = 3
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}

	start := j.now()
	tracker := j.metrics().Track(TaskMaintenanceDueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("lead_days", payload.LeadDays))
	logger.Info("starting maintenance due scan")

	rows, err := j.scan(ctx, payload, start)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, row := range rows {
		logger.Warn("maintenance due soon",
			slog.Int64("org_id", row.OrgID),
			slog.Int64("asset_id", row.AssetID),
			slog.String("asset_code", row.AssetCode),
			slog.Int64("maintenance_id", row.MaintenanceID),
			slog.String("type", row.Type),
			slog.Time("scheduled_at", row.ScheduledAt),
		)
		j.metrics().AddAlerts(TaskMaintenanceDueScan, row.OrgID, 1)
	}

	logger.Info("completed maintenance due scan",
		slog.Int("flagged", len(rows)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

type maintenanceDueRow struct {
	OrgID         int64
	AssetID       int64
	AssetCode     string
	MaintenanceID int64
	Type          string
	ScheduledAt   time.Time
}

func (j *MaintenanceDueScanJob) scan(ctx context.Context, payload MaintenanceDueScanPayload, now time.Time) ([]maintenanceDueRow, error) {
	if j.Pool == nil {
		return nil, errors.New("maintenance due scan: pool not configured")
	}
	horizon := now.AddDate(0, 0, payload.LeadDays)
	rows, err := j.Pool.Query(ctx, `SELECT a.org_id, a.id, a.code, m.id, m.type, m.scheduled_at
		FROM asset_maintenance m
		JOIN assets a ON a.id = m.asset_id
		WHERE m.status = 'SCHEDULED' AND m.scheduled_at <= $1
		ORDER BY m.scheduled_at, m.id
		LIMIT $2`, horizon, payload.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flagged := make([]maintenanceDueRow, 0)
	for rows.Next() {
		var row maintenanceDueRow
		if err := rows.Scan(&row.OrgID, &row.AssetID, &row.AssetCode, &row.MaintenanceID, &row.Type, &row.ScheduledAt); err != nil {
			return nil, err
		}
		flagged = append(flagged, row)
	}
	return flagged, rows.Err()
}

func (j *MaintenanceDueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMaintenanceDueScan))
	}
	return slog.Default().With(slog.String("job", TaskMaintenanceDueScan))
}

func (j *MaintenanceDueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *MaintenanceDueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
