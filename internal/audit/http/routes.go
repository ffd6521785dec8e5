package audithttp

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/uranghalus/dutaassets-sub001/internal/rbac"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

// MountRoutes registers audit timeline routes. Exports are rate-limited
// since each one runs an unbounded timeline query.
func MountRoutes(r chi.Router, h *Handler, rbacMW rbac.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(rbacMW.RequireAny(shared.PermAuditView))
		r.Get("/timeline", h.handleTimeline)
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			r.Get("/timeline/export", h.handleExport)
		})
	})
}
