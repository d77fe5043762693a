package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/repository"
	"github.com/noah-isme/academic-approval-api/internal/service"
	"github.com/noah-isme/academic-approval-api/pkg/cache"
	"github.com/noah-isme/academic-approval-api/pkg/config"
	"github.com/noah-isme/academic-approval-api/pkg/database"
	"github.com/noah-isme/academic-approval-api/pkg/export"
	"github.com/noah-isme/academic-approval-api/pkg/logger"
)

// workflow-audit runs one consistency sweep and prints the report as JSON, CSV or PDF. Notifications
// are not sent. After a repair the whole workflow status cache is flushed when Redis is enabled.
func main() {
	repair := flag.Bool("repair", false, "revert stale completion claims and promote fully approved years")
	format := flag.String("format", "json", "report format: json, csv or pdf")
	flag.Parse()

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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	eventRepo := repository.NewEventRepository(db)
	workflowRepo := repository.NewWorkflowStatusRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	metrics := service.NewMetricsService()
	evaluator := service.NewCompletionEvaluator(eventRepo, documentRepo)
	reconciler := service.NewReconciler(eventRepo, workflowRepo, evaluator, metrics, logr)
	sweeper := service.NewConsistencyService(eventRepo, workflowRepo, evaluator, reconciler, database.NewTxRunner(db),
		nil, nil, repository.NewAuditRepository(db), metrics, logr)

	report, err := sweeper.Sweep(ctx, *repair, nil)
	if err != nil {
		logr.Fatal("consistency sweep failed", zap.Error(err))
	}
	if *repair && repaired(report) {
		flushWorkflowCache(ctx, cfg, metrics, logr)
	}

	if err := writeReport(os.Stdout, *format, report); err != nil {
		logr.Fatal("write report", zap.Error(err))
	}
}

func repaired(report *service.SweepReport) bool {
	for _, f := range report.Findings {
		if f.Repaired {
			return true
		}
	}
	return false
}

func flushWorkflowCache(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) {
	if !cfg.Redis.Enabled || !cfg.Workflow.CacheEnabled {
		return
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("workflow status cache not flushed", zap.Error(err))
		return
	}
	repo := repository.NewCacheRepository(client, cfg.Redis.KeyPrefix, logr)
	defer repo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(repo, metrics, cfg.Workflow.CacheTTL, logr, true)
	if err := cacheSvc.Invalidate(ctx, service.WorkflowStatusCachePattern); err == nil {
		logr.Info("workflow status cache flushed")
	}
}

func writeReport(w io.Writer, format string, report *service.SweepReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	out, err := export.Render(f, report.Table())
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
