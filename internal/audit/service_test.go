package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastOffset = offset
	s.lastLimit = limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubTimelineRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return s.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, 0, n)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:       base.Add(-time.Duration(i) * time.Hour),
			ActorID:  7,
			Action:   "stock:RECEIPT",
			Entity:   "stock_movement",
			EntityID: "MV-1",
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: makeRows(3)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{OrgID: 1, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, repo.lastLimit)
	require.Equal(t, 0, repo.lastOffset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{OrgID: 1, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 2, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{rows: makeRows(1)}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{OrgID: 1, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 51, repo.lastLimit)
}

func TestCSVExport(t *testing.T) {
	rows := []TimelineRow{
		{
			At:       time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
			ActorID:  7,
			Action:   "requisition:REJECTED",
			Entity:   "requisition",
			EntityID: "REQ-1",
			Meta:     `{"note":"budget cut"}`,
		},
	}
	data, err := CSVExporter{}.WriteCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "at,actor_id,action,entity,entity_id,meta", lines[0])
	require.Contains(t, lines[1], "2026-03-10T10:00:00Z")
	require.Contains(t, lines[1], "requisition:REJECTED")
}
