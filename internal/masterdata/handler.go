package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/employees"
	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/items"
	mdshared "github.com/uranghalus/dutaassets-sub001/internal/masterdata/shared"
	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/warehouses"
	"github.com/uranghalus/dutaassets-sub001/internal/platform/httpx"
	"github.com/uranghalus/dutaassets-sub001/internal/rbac"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

// Handler wires HTTP endpoints for master data entities.
type Handler struct {
	logger     *slog.Logger
	warehouses *warehouses.Service
	items      *items.Service
	employees  *employees.Service
	rbac       rbac.Middleware
}

// NewHandler constructs masterdata handler.
func NewHandler(logger *slog.Logger, wh *warehouses.Service, it *items.Service, emp *employees.Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, warehouses: wh, items: it, employees: emp, rbac: rbacMW}
}

// MountRoutes registers masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermMasterView))
		r.Get("/warehouses", h.listWarehouses)
		r.Get("/warehouses/{id}", h.getWarehouse)
		r.Get("/items", h.listItems)
		r.Get("/items/{id}", h.getItem)
		r.Get("/employees", h.listEmployees)
		r.Get("/employees/{id}", h.getEmployee)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermMasterEdit))
		r.Post("/warehouses", h.createWarehouse)
		r.Put("/warehouses/{id}", h.updateWarehouse)
		r.Delete("/warehouses/{id}", h.deleteWarehouse)
		r.Post("/items", h.createItem)
		r.Put("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.deleteItem)
		r.Post("/employees", h.createEmployee)
		r.Put("/employees/{id}", h.updateEmployee)
		r.Delete("/employees/{id}", h.deleteEmployee)
	})
}

func listFilters(r *http.Request) mdshared.ListFilters {
	q := r.URL.Query()
	filters := mdshared.ListFilters{
		Page:    mdshared.DefaultPage,
		Limit:   mdshared.DefaultLimit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort_by"),
		SortDir: q.Get("sort_dir"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filters.Limit = v
	}
	if v := q.Get("is_active"); v != "" {
		active := v == "true" || v == "1"
		filters.IsActive = &active
	}
	return filters
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	list, total, err := h.warehouses.List(r.Context(), caller.OrgID, listFilters(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouses": list, "total": total})
}

func (h *Handler) getWarehouse(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	warehouse, err := h.warehouses.Get(r.Context(), caller.OrgID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload warehouses.Warehouse
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	payload.OrgID = caller.OrgID
	created, err := h.warehouses.Create(r.Context(), payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateWarehouse(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload warehouses.Warehouse
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	payload.OrgID = caller.OrgID
	if err := h.warehouses.Update(r.Context(), caller.OrgID, id, payload); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) deleteWarehouse(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.warehouses.Delete(r.Context(), caller.OrgID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	list, total, err := h.items.List(r.Context(), caller.OrgID, listFilters(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list, "total": total})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.items.Get(r.Context(), caller.OrgID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload items.Item
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	payload.OrgID = caller.OrgID
	created, err := h.items.Create(r.Context(), payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload items.Item
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	payload.OrgID = caller.OrgID
	if err := h.items.Update(r.Context(), caller.OrgID, id, payload); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.items.Delete(r.Context(), caller.OrgID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	list, total, err := h.employees.List(r.Context(), caller.OrgID, listFilters(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employees": list, "total": total})
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	employee, err := h.employees.Get(r.Context(), caller.OrgID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload employees.Employee
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	payload.OrgID = caller.OrgID
	created, err := h.employees.Create(r.Context(), payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload employees.Employee
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	payload.OrgID = caller.OrgID
	if err := h.employees.Update(r.Context(), caller.OrgID, id, payload); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.employees.Delete(r.Context(), caller.OrgID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mdshared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
	case errors.Is(err, mdshared.ErrInvalidID):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, mdshared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		// Validation errors from the entity services are plain errors.
		h.logger.Warn("masterdata request rejected", slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	}
}
