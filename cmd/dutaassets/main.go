package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/uranghalus/dutaassets-sub001/internal/app"
	"github.com/uranghalus/dutaassets-sub001/internal/asset"
	"github.com/uranghalus/dutaassets-sub001/internal/audit"
	audithttp "github.com/uranghalus/dutaassets-sub001/internal/audit/http"
	"github.com/uranghalus/dutaassets-sub001/internal/auth"
	"github.com/uranghalus/dutaassets-sub001/internal/masterdata"
	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/employees"
	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/items"
	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/warehouses"
	"github.com/uranghalus/dutaassets-sub001/internal/observability"
	"github.com/uranghalus/dutaassets-sub001/internal/platform/cache"
	"github.com/uranghalus/dutaassets-sub001/internal/platform/db"
	"github.com/uranghalus/dutaassets-sub001/internal/rbac"
	"github.com/uranghalus/dutaassets-sub001/internal/requisition"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
	"github.com/uranghalus/dutaassets-sub001/internal/stock"
	"github.com/uranghalus/dutaassets-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Source: rbacService, Logger: logger}
	rolesHandler := rbac.NewRolesHandler(logger, rbacService, rbacMiddleware)

	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, auditLogger, idempotencyStore)
	stockHandler := stock.NewHandler(logger, stockService, rbacMiddleware)

	requisitionRepo := requisition.NewRepository(dbpool)
	requisitionService := requisition.NewService(requisitionRepo, approvalRecorder, auditLogger)
	requisitionHandler := requisition.NewHandler(logger, requisitionService, rbacMiddleware)

	assetRepo := asset.NewRepository(dbpool)
	assetService := asset.NewService(assetRepo, auditLogger)
	assetHandler := asset.NewHandler(logger, assetService, rbacMiddleware)

	warehouseService := warehouses.NewService(warehouses.NewRepository(dbpool))
	itemService := items.NewService(items.NewRepository(dbpool))
	employeeService := employees.NewService(employees.NewRepository(dbpool))
	masterDataHandler := masterdata.NewHandler(logger, warehouseService, itemService, employeeService, rbacMiddleware)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audithttp.NewHandler(logger, auditService, audit.CSVExporter{})

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		StockHandler:       stockHandler,
		RequisitionHandler: requisitionHandler,
		AssetHandler:       assetHandler,
		MasterDataHandler:  masterDataHandler,
		AuditHandler:       auditHandler,
		RolesHandler:       rolesHandler,
		JobHandler:         jobHandler,
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
