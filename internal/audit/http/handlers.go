package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/uranghalus/dutaassets-sub001/internal/audit"
	"github.com/uranghalus/dutaassets-sub001/internal/platform/httpx"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRangeDays = 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Exporter writes audit timeline exports.
type Exporter interface {
	WriteCSV(rows []audit.TimelineRow) ([]byte, error)
}

// Handler serves the audit timeline endpoints.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	exporter Exporter
	now      func() time.Time
}

// NewHandler builds a new audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, exporter Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, exporter: exporter, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	filters, err := h.parseFilters(r, caller)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	filters, err := h.parseFilters(r, caller)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
		return
	}
	data, err := h.exporter.WriteCSV(rows)
	if err != nil {
		h.logger.Error("render audit csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
		return
	}
	filename := fmt.Sprintf("audit-timeline-%s.csv", h.now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) parseFilters(r *http.Request, caller shared.Caller) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		OrgID:  caller.OrgID,
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	if v := q.Get("actor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return audit.TimelineFilters{}, fmt.Errorf("invalid actor_id")
		}
		filters.ActorID = id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.TimelineFilters{}, fmt.Errorf("invalid from date")
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.TimelineFilters{}, fmt.Errorf("invalid to date")
		}
		filters.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if filters.From.IsZero() && filters.To.IsZero() {
		now := h.now().UTC()
		filters.To = now
		filters.From = now.Add(-defaultDateRange)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() {
		if filters.To.Before(filters.From) {
			return audit.TimelineFilters{}, fmt.Errorf("date range reversed")
		}
		if filters.To.Sub(filters.From) > maxDateRangeDays*24*time.Hour {
			return audit.TimelineFilters{}, fmt.Errorf("date range exceeds %d days", maxDateRangeDays)
		}
	}
	if v := q.Get("page"); v != "" {
		filters.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		filters.PageSize, _ = strconv.Atoi(v)
	}
	return filters, nil
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (shared.Caller, bool) {
	sess := shared.SessionFromContext(r.Context())
	caller, ok := shared.CallerFromSession(sess)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return shared.Caller{}, false
	}
	return caller, true
}
