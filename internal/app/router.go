package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/uranghalus/dutaassets-sub001/internal/asset"
	audithttp "github.com/uranghalus/dutaassets-sub001/internal/audit/http"
	"github.com/uranghalus/dutaassets-sub001/internal/auth"
	"github.com/uranghalus/dutaassets-sub001/internal/masterdata"
	"github.com/uranghalus/dutaassets-sub001/internal/observability"
	"github.com/uranghalus/dutaassets-sub001/internal/rbac"
	"github.com/uranghalus/dutaassets-sub001/internal/requisition"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
	"github.com/uranghalus/dutaassets-sub001/internal/stock"
	"github.com/uranghalus/dutaassets-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	StockHandler       *stock.Handler
	RequisitionHandler *requisition.Handler
	AssetHandler       *asset.Handler
	MasterDataHandler  *masterdata.Handler
	AuditHandler       *audithttp.Handler
	RolesHandler       *rbac.Handler
	JobHandler         *jobs.Handler
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/stock", params.StockHandler.MountRoutes)
	r.Route("/requisitions", params.RequisitionHandler.MountRoutes)
	r.Route("/assets", params.AssetHandler.MountRoutes)
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", func(r chi.Router) {
			audithttp.MountRoutes(r, params.AuditHandler, params.RBACMiddleware)
		})
	}
	if params.RolesHandler != nil {
		r.Route("/admin", params.RolesHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(shared.PermAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
