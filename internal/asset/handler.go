package asset

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/uranghalus/dutaassets-sub001/internal/platform/httpx"
	"github.com/uranghalus/dutaassets-sub001/internal/rbac"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

// Handler wires HTTP endpoints for the asset module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs asset handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbacMW}
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAssetView))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Get("/{id}/loans", h.handleLoans)
		r.Get("/{id}/maintenance", h.handleMaintenance)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermAssetEdit))
		r.Post("/", h.handleCreate)
		r.Post("/{id}/loans", h.handleStartLoan)
		r.Post("/loans/{loanID}/return", h.handleReturnLoan)
		r.Post("/{id}/maintenance", h.handleScheduleMaintenance)
		r.Post("/maintenance/{maintenanceID}/complete", h.handleCompleteMaintenance)
		r.Post("/{id}/dispose", h.handleDispose)
	})
}

type createAssetPayload struct {
	Code string `json:"code"`
	Name string `json:"name" validate:"required"`
}

type startLoanPayload struct {
	EmployeeID int64  `json:"employee_id" validate:"required,gt=0"`
	Note       string `json:"note"`
}

type maintenancePayload struct {
	Type string `json:"type"`
	Note string `json:"note"`
}

type disposePayload struct {
	Lost bool `json:"lost"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload createAssetPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	asset, err := h.service.Create(r.Context(), caller, CreateInput{Code: payload.Code, Name: payload.Name})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, asset)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	assets, err := h.service.List(r.Context(), caller, Status(q.Get("status")), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	asset, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) handleLoans(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	loans, err := h.service.Loans(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loans": loans})
}

func (h *Handler) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	records, err := h.service.MaintenanceHistory(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"maintenance": records})
}

func (h *Handler) handleStartLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload startLoanPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	loan, err := h.service.StartLoan(r.Context(), caller, id, payload.EmployeeID, payload.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	loanID, ok := h.pathID(w, r, "loanID")
	if !ok {
		return
	}
	loan, err := h.service.ReturnLoan(r.Context(), caller, loanID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loan)
}

func (h *Handler) handleScheduleMaintenance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload maintenancePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	record, err := h.service.ScheduleMaintenance(r.Context(), caller, id, payload.Type, payload.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleCompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	maintenanceID, ok := h.pathID(w, r, "maintenanceID")
	if !ok {
		return
	}
	record, err := h.service.CompleteMaintenance(r.Context(), caller, maintenanceID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleDispose(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload disposePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	asset, err := h.service.MarkDisposed(r.Context(), caller, id, payload.Lost)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "asset record not found")
	case errors.Is(err, ErrAssetNotAvailable):
		httpx.Problem(w, http.StatusConflict, "Asset Not Available", err.Error())
	case errors.Is(err, ErrAlreadyReturned), errors.Is(err, ErrAlreadyCompleted), errors.Is(err, ErrTerminalStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("asset request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}
