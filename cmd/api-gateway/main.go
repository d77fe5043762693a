package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-approval-api/api/swagger"
	"github.com/noah-isme/academic-approval-api/internal/handler"
	"github.com/noah-isme/academic-approval-api/internal/middleware"
	"github.com/noah-isme/academic-approval-api/internal/repository"
	"github.com/noah-isme/academic-approval-api/internal/service"
	"github.com/noah-isme/academic-approval-api/pkg/cache"
	"github.com/noah-isme/academic-approval-api/pkg/config"
	"github.com/noah-isme/academic-approval-api/pkg/database"
	"github.com/noah-isme/academic-approval-api/pkg/jobs"
	"github.com/noah-isme/academic-approval-api/pkg/logger"
	"github.com/noah-isme/academic-approval-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/academic-approval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-approval-api/pkg/middleware/requestid"
	"github.com/noah-isme/academic-approval-api/pkg/scheduler"
	"github.com/noah-isme/academic-approval-api/pkg/storage"
)

// @title Academic Approval API
// @version 1.0.0
// @description Document approval workflow for departmental academic activities
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled && cfg.Workflow.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("workflow status cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, cfg.Redis.KeyPrefix, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Workflow.CacheTTL, logr, cacheRepo != nil)

	blobs, err := storage.New(cfg.Documents)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	documentRepo := repository.NewDocumentRepository(db)
	eventRepo := repository.NewEventRepository(db)
	workflowRepo := repository.NewWorkflowStatusRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	deadlineRepo := repository.NewDeadlineRepository(db)
	programRepo := repository.NewProgramCountRepository(db)
	remarkRepo := repository.NewRemarkRepository(db)
	tx := database.NewTxRunner(db)
	validate := validator.New()

	worker := service.NewNotificationWorker(userRepo, notificationRepo, mailer.NewSMTPMailer(cfg.Notifications.SMTP), directoryRepo, cfg.Notifications.AppURL, metrics, logr)
	queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		DeadLetter: worker.DeadLetter,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if pending := queue.Pending(); pending > 0 {
			logr.Info("draining notifications", zap.String("queue", queue.Name()), zap.Int("pending", pending))
		}
		queue.Stop(drainCtx)
	}()
	dispatcher := service.NewNotificationDispatcher(queue, cfg.Notifications.Enabled, metrics, logr)

	evaluator := service.NewCompletionEvaluator(eventRepo, documentRepo)
	reconciler := service.NewReconciler(eventRepo, workflowRepo, evaluator, metrics, logr)
	workflowSvc := service.NewWorkflowService(workflowRepo, cacheSvc, cfg.Workflow.CacheTTL, dispatcher, auditRepo, validate, logr)
	deadlineSvc := service.NewDeadlineService(deadlineRepo, dispatcher, auditRepo, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, eventRepo, reconciler, tx, blobs, signer, deadlineSvc, dispatcher, workflowSvc, auditRepo, metrics,
		service.DocumentServiceConfig{
			MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
		}, validate, logr)
	eventSvc := service.NewEventService(eventRepo, directoryRepo, evaluator, reconciler, tx, deadlineSvc, dispatcher, workflowSvc, auditRepo, validate, logr)
	programSvc := service.NewProgramCountService(programRepo, workflowRepo, directoryRepo, deadlineSvc, tx, dispatcher, workflowSvc, auditRepo, validate, logr)
	remarkSvc := service.NewRemarkService(remarkRepo, directoryRepo, auditRepo, validate, logr)
	consistencySvc := service.NewConsistencyService(eventRepo, workflowRepo, evaluator, reconciler, tx, dispatcher, workflowSvc, auditRepo, metrics, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)

	sched := scheduler.New(logr, 15*time.Minute)
	if cfg.Consistency.Enabled {
		repair := cfg.Consistency.Repair
		if err := sched.Add("consistency-sweep", cfg.Consistency.Schedule, func(ctx context.Context) error {
			ctx = reqidmiddleware.WithID(ctx, "consistency-sweep-"+time.Now().UTC().Format("20060102T150405"))
			_, err := consistencySvc.Sweep(ctx, repair, nil)
			return err
		}); err != nil {
			return fmt.Errorf("schedule consistency sweep: %w", err)
		}
		sched.Start()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health"))

	metricsHandler := handler.NewMetricsHandler(metrics, func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Documents:     handler.NewDocumentHandler(documentSvc, cfg.APIPrefix+handler.DownloadRoute),
		Events:        handler.NewEventHandler(eventSvc),
		Workflow:      handler.NewWorkflowHandler(workflowSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Consistency:   handler.NewConsistencyHandler(consistencySvc),
		Programs:      handler.NewProgramCountHandler(programSvc),
		Deadlines:     handler.NewDeadlineHandler(deadlineSvc),
		Remarks:       handler.NewRemarkHandler(remarkSvc),
		Tokens:        tokenSvc,
		Audit:         auditRepo,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if cfg.Consistency.Enabled {
		sched.Stop(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}
