package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/agritrace-api/api/swagger"
	"github.com/noah-isme/agritrace-api/internal/handler"
	"github.com/noah-isme/agritrace-api/internal/middleware"
	"github.com/noah-isme/agritrace-api/internal/models"
	"github.com/noah-isme/agritrace-api/internal/repository"
	"github.com/noah-isme/agritrace-api/internal/service"
	"github.com/noah-isme/agritrace-api/pkg/batchid"
	"github.com/noah-isme/agritrace-api/pkg/cache"
	"github.com/noah-isme/agritrace-api/pkg/config"
	"github.com/noah-isme/agritrace-api/pkg/database"
	"github.com/noah-isme/agritrace-api/pkg/export"
	"github.com/noah-isme/agritrace-api/pkg/jobs"
	"github.com/noah-isme/agritrace-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/agritrace-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/agritrace-api/pkg/middleware/requestid"
	"github.com/noah-isme/agritrace-api/pkg/storage"
)

// @title AgriTrace API
// @version 0.1.0
// @description Agricultural supply-chain traceability platform
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	txRunner := repository.NewTxRunner(db)
	userRepo := repository.NewUserRepository(db)
	cropRepo := repository.NewCropRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	traceRepo := repository.NewTraceRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Trace.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "agritrace-api",
	})
	userSvc := service.NewUserService(userRepo, logr)

	batchIDs := batchid.NewGenerator(cfg.Batch.IDPrefix)
	cropSvc := service.NewCropService(cropRepo, traceRepo, txRunner, userRepo, batchIDs, cfg.Batch.InsertRetries, validate, logr)
	supplySvc := service.NewSupplyChainService(cropRepo, deliveryRepo, transactionRepo, traceRepo, txRunner, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, validate, logr)
	traceSvc := service.NewTraceService(traceRepo, cropRepo, userRepo, txRunner, cacheSvc, metricsSvc, cfg.Trace.CacheTTL, validate, logr)
	dashboardSvc := service.NewDashboardService(statsRepo, cacheSvc, 0, logr)

	// Every projection write that appends a ledger event also bumps the
	// metrics counter and drops the cached trace for that batch.
	cropSvc.SetAppendHook(traceSvc.OnLedgerAppend)
	supplySvc.SetAppendHook(traceSvc.OnLedgerAppend)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	cropHandler := handler.NewCropHandler(cropSvc)
	supplyHandler := handler.NewSupplyChainHandler(supplySvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	traceHandler := handler.NewTraceHandler(traceSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public endpoints. Consumers scan batch codes without an account.
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.GET("/trace/:batchId", traceHandler.TraceBatch)
	api.GET("/trace/:batchId/history", traceHandler.History)
	api.GET("/trace/:batchId/qr", traceHandler.QRCode)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.PATCH("/users/:id/status", userHandler.SetStatus)
	admin.GET("/dashboard", dashboardHandler.Overview)
	admin.POST("/ledger/events", traceHandler.Append)

	authed.POST("/crops", middleware.RequireRoles(models.RoleFarmer), cropHandler.Register)
	authed.GET("/crops", cropHandler.List)
	authed.GET("/crops/:id", cropHandler.Get)
	authed.PATCH("/crops/:id/status", middleware.RequireRoles(models.RoleFarmer), cropHandler.OverrideStatus)

	authed.POST("/deliveries/accept-crop", middleware.RequireRoles(models.RoleDistributor), supplyHandler.AcceptCrop)
	authed.POST("/deliveries/:id/start", middleware.RequireRoles(models.RoleDistributor), supplyHandler.StartDelivery)
	authed.POST("/deliveries/:id/accept", middleware.RequireRoles(models.RoleRetailer), supplyHandler.AcceptDelivery)
	authed.GET("/deliveries", supplyHandler.ListDeliveries)
	authed.GET("/deliveries/:id", supplyHandler.GetDelivery)
	authed.POST("/sales", middleware.RequireRoles(models.RoleRetailer), supplyHandler.RecordSale)
	authed.GET("/transactions", supplyHandler.ListTransactions)

	authed.POST("/payments", paymentHandler.Create)
	authed.GET("/payments", paymentHandler.List)
	authed.PATCH("/payments/:id/status", paymentHandler.Transition)

	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(traceRepo, cropRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		reportRepo := repository.NewReportRepository(db)
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportSvc := service.NewReportService(reportRepo, queue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler := handler.NewReportHandler(reportSvc)
		admin.POST("/reports", reportHandler.Create)
		admin.GET("/reports/:id", reportHandler.Status)
		// Downloads are gated by the signed token, not a session.
		api.GET("/export/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
}
