package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/uranghalus/dutaassets-sub001/internal/platform/httpx"
	"github.com/uranghalus/dutaassets-sub001/internal/rbac"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

// Handler wires HTTP endpoints for the stock module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbacMW}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockView))
		r.Get("/levels", h.handleLevels)
		r.Get("/movements", h.handleMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermStockEdit))
		r.Post("/receipts", h.handleReceipt)
		r.Post("/adjustments", h.handleAdjustment)
		r.Post("/transfers", h.handleTransfer)
	})
}

type movementLinePayload struct {
	ItemID int64 `json:"item_id" validate:"required,gt=0"`
	Qty    int64 `json:"qty" validate:"required"`
}

type receiptPayload struct {
	Code        string                `json:"code"`
	WarehouseID int64                 `json:"warehouse_id" validate:"required,gt=0"`
	Lines       []movementLinePayload `json:"lines" validate:"required,min=1,dive"`
	Note        string                `json:"note"`
}

type transferPayload struct {
	Code         string `json:"code"`
	ItemID       int64  `json:"item_id" validate:"required,gt=0"`
	Qty          int64  `json:"qty" validate:"required,gt=0"`
	SrcWarehouse int64  `json:"src_warehouse_id" validate:"required,gt=0"`
	DstWarehouse int64  `json:"dst_warehouse_id" validate:"required,gt=0"`
	Note         string `json:"note"`
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	h.postMovement(w, r, MovementReceipt)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	h.postMovement(w, r, MovementAdjustment)
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request, kind MovementKind) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload receiptPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	lines := make([]LineInput, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		lines = append(lines, LineInput{ItemID: line.ItemID, Delta: line.Qty})
	}
	movement, err := h.service.PostMovement(r.Context(), caller, MovementRequest{
		Code:        payload.Code,
		Kind:        kind,
		WarehouseID: payload.WarehouseID,
		Lines:       lines,
		Note:        payload.Note,
	})
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload transferPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	out, in, err := h.service.PostTransfer(r.Context(), caller, TransferInput{
		Code:         payload.Code,
		ItemID:       payload.ItemID,
		Qty:          payload.Qty,
		SrcWarehouse: payload.SrcWarehouse,
		DstWarehouse: payload.DstWarehouse,
		Note:         payload.Note,
	})
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"out": out, "in": in})
}

func (h *Handler) handleLevels(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "warehouse_id is required")
		return
	}
	levels, err := h.service.Levels(r.Context(), caller, warehouseID)
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"levels": levels})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := MovementFilter{}
	if v := q.Get("warehouse_id"); v != "" {
		filter.WarehouseID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("item_id"); v != "" {
		filter.ItemID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	views, err := h.service.Movements(r.Context(), caller, filter)
	if err != nil {
		h.respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": views})
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

func (h *Handler) respondStockError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrNoLines),
		errors.Is(err, ErrSameWarehouse), errors.Is(err, ErrInvalidKind):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "movement already submitted")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("stock request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}
