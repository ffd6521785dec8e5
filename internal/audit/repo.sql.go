package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit_logs table.
type Repository interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// PGRepository implements Repository against PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `SELECT occurred_at, actor_id, action, entity, entity_id, COALESCE(meta::text, '')
FROM audit_logs
WHERE org_id = $1
  AND occurred_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
  AND ($4::bigint = 0 OR actor_id = $4)
  AND ($5::text = '' OR entity = $5)
  AND ($6::text = '' OR action = $6)
ORDER BY occurred_at DESC`

// TimelineWindow returns one page of timeline rows plus lookahead.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery+` OFFSET $7 LIMIT $8`,
		filters.OrgID, nullTime(filters.From), nullTime(filters.To),
		filters.ActorID, filters.Entity, filters.Action, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// TimelineAll returns the full filtered timeline for exports.
func (r *PGRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery,
		filters.OrgID, nullTime(filters.From), nullTime(filters.To),
		filters.ActorID, filters.Entity, filters.Action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectRows(rows pgxRows) ([]TimelineRow, error) {
	result := []TimelineRow{}
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
