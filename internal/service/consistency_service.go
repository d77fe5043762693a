package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/models"
	"github.com/noah-isme/academic-approval-api/internal/repository"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/export"
)

const (
	findingInvalidCompletedEvent = "invalid_completed_event"
	findingInvalidWorkflow       = "invalid_completed_workflow"
	findingPromotable            = "promotable_year"
)

type sweepEventStore interface {
	ListDepartmentYears(ctx context.Context) ([]repository.DepartmentYear, error)
	ListByDepartmentYear(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) ([]models.Event, error)
}

type sweepWorkflowReader interface {
	Find(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error)
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error)
}

// ScopeFinding reports the inconsistencies of one (department, academic year).
type ScopeFinding struct {
	DepartmentID           string               `json:"department_id"`
	AcademicYearID         string               `json:"academic_year_id"`
	WorkflowStatus         models.WorkflowState `json:"workflow_status,omitempty"`
	InvalidCompletedEvents []string             `json:"invalid_completed_events,omitempty"`
	WorkflowInvalid        bool                 `json:"workflow_invalid"`
	Promotable             bool                 `json:"promotable"`
	Repaired               bool                 `json:"repaired"`
	Error                  string               `json:"error,omitempty"`
}

func (f ScopeFinding) inconsistent() bool {
	return len(f.InvalidCompletedEvents) > 0 || f.WorkflowInvalid || f.Promotable
}

// SweepReport summarises one consistency sweep.
type SweepReport struct {
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Repair        bool           `json:"repair"`
	ScopesChecked int            `json:"scopes_checked"`
	Findings      []ScopeFinding `json:"findings"`
}

// ConsistencyService detects, and optionally repairs, completion claims that no longer match the
// approved documents.
type ConsistencyService struct {
	events     sweepEventStore
	workflows  sweepWorkflowReader
	evaluator  *CompletionEvaluator
	reconciler yearReconciler
	tx         txRunner
	announcer  reconcileAnnouncer
	audit      auditLogger
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewConsistencyService constructs the service.
func NewConsistencyService(
	events sweepEventStore,
	workflows sweepWorkflowReader,
	evaluator *CompletionEvaluator,
	reconciler yearReconciler,
	tx txRunner,
	notifier notifier,
	invalidator workflowCacheInvalidator,
	audit auditLogger,
	metrics *MetricsService,
	logger *zap.Logger,
) *ConsistencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsistencyService{
		events:     events,
		workflows:  workflows,
		evaluator:  evaluator,
		reconciler: reconciler,
		tx:         tx,
		announcer:  reconcileAnnouncer{notifier: notifier, workflows: invalidator, logger: logger},
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Sweep inspects every (department, academic year) that has events. With repair set, invalid
// completion claims are reverted through the backward path and fully approved years are promoted
// through the forward path, each scope in its own transaction.
func (s *ConsistencyService) Sweep(ctx context.Context, repair bool, actor *models.JWTClaims) (*SweepReport, error) {
	report := &SweepReport{StartedAt: s.now(), Repair: repair}
	scopes, err := s.events.ListDepartmentYears(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic year scopes")
	}

	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.ScopesChecked++
		finding, err := s.inspectScope(ctx, nil, scope)
		if err != nil {
			s.logger.Warn("consistency inspection failed",
				zap.String("department_id", scope.DepartmentID),
				zap.String("academic_year_id", scope.AcademicYearID),
				zap.Error(err),
			)
			finding.Error = err.Error()
			report.Findings = append(report.Findings, finding)
			continue
		}
		if !finding.inconsistent() {
			continue
		}
		s.recordFinding(finding)
		if repair {
			if err := s.repairScope(ctx, &finding, actor); err != nil {
				finding.Error = err.Error()
				s.logger.Warn("consistency repair failed",
					zap.String("department_id", scope.DepartmentID),
					zap.String("academic_year_id", scope.AcademicYearID),
					zap.Error(err),
				)
			}
		}
		report.Findings = append(report.Findings, finding)
	}

	report.FinishedAt = s.now()
	s.logger.Info("consistency sweep finished",
		zap.Bool("repair", repair),
		zap.Int("scopes", report.ScopesChecked),
		zap.Int("findings", len(report.Findings)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (s *ConsistencyService) inspectScope(ctx context.Context, exec sqlx.ExtContext, scope repository.DepartmentYear) (ScopeFinding, error) {
	finding := ScopeFinding{DepartmentID: scope.DepartmentID, AcademicYearID: scope.AcademicYearID}

	ws, err := s.workflows.Find(ctx, exec, scope.DepartmentID, scope.AcademicYearID)
	switch {
	case err == nil:
		finding.WorkflowStatus = ws.Status
	case errors.Is(err, sql.ErrNoRows):
	default:
		return finding, err
	}

	events, err := s.events.ListByDepartmentYear(ctx, exec, scope.DepartmentID, scope.AcademicYearID)
	if err != nil {
		return finding, err
	}
	allComplete := len(events) > 0
	allMarked := true
	for i := range events {
		completion, err := s.evaluator.inspect(ctx, exec, &events[i])
		if err != nil {
			return finding, err
		}
		if !completion.Complete {
			allComplete = false
			if events[i].Status == models.EventStatusCompleted {
				finding.InvalidCompletedEvents = append(finding.InvalidCompletedEvents, events[i].ID)
			}
		}
		if events[i].Status != models.EventStatusCompleted {
			allMarked = false
		}
	}

	if finding.WorkflowStatus == models.WorkflowStateCompleted && !allComplete {
		finding.WorkflowInvalid = true
	}
	if allComplete && (finding.WorkflowStatus != models.WorkflowStateCompleted || !allMarked) {
		finding.Promotable = true
	}
	return finding, nil
}

// repairScope re-inspects the scope under the workflow lock and reconciles it only when it is
// still inconsistent. Decisions committed since the unlocked inspection win.
func (s *ConsistencyService) repairScope(ctx context.Context, finding *ScopeFinding, actor *models.JWTClaims) error {
	scope := repository.DepartmentYear{DepartmentID: finding.DepartmentID, AcademicYearID: finding.AcademicYearID}
	var (
		result   ReconcileResult
		resolved bool
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if _, err := s.workflows.LockForUpdate(ctx, exec, scope.DepartmentID, scope.AcademicYearID); err != nil {
			return err
		}
		current, err := s.inspectScope(ctx, exec, scope)
		if err != nil {
			return err
		}
		if !current.inconsistent() {
			resolved = true
			return nil
		}
		if current.Promotable {
			result, err = s.reconciler.ReconcileForward(ctx, exec, scope.DepartmentID, scope.AcademicYearID)
		} else {
			result, err = s.reconciler.ReconcileBackward(ctx, exec, scope.DepartmentID, scope.AcademicYearID)
		}
		return err
	})
	if err != nil {
		return err
	}
	if resolved {
		s.logger.Info("consistency repair skipped, scope already consistent",
			zap.String("department_id", scope.DepartmentID),
			zap.String("academic_year_id", scope.AcademicYearID),
		)
		return nil
	}
	finding.Repaired = true
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionConsistencyFix,
		resource:   workflowStatusResource,
		resourceID: finding.DepartmentID + ":" + finding.AcademicYearID,
		oldValues:  finding,
		newValues:  result,
		userAgent:  "consistency-sweep",
	})
	s.announcer.announce(ctx, result, actor)
	return nil
}

func (s *ConsistencyService) recordFinding(finding ScopeFinding) {
	for range finding.InvalidCompletedEvents {
		s.metrics.RecordSweepFinding(findingInvalidCompletedEvent)
	}
	if finding.WorkflowInvalid {
		s.metrics.RecordSweepFinding(findingInvalidWorkflow)
	}
	if finding.Promotable {
		s.metrics.RecordSweepFinding(findingPromotable)
	}
}

// Table flattens the report findings for CSV or PDF export.
func (r *SweepReport) Table() export.Table {
	table := export.Table{
		Title: fmt.Sprintf("Consistency sweep %s (repair=%t, scopes=%d)",
			r.StartedAt.Format(time.RFC3339), r.Repair, r.ScopesChecked),
		Columns: []string{
			"department_id", "academic_year_id", "workflow_status", "invalid_completed_events",
			"workflow_invalid", "promotable", "repaired", "error",
		},
	}
	for _, f := range r.Findings {
		table.Rows = append(table.Rows, []string{
			f.DepartmentID,
			f.AcademicYearID,
			string(f.WorkflowStatus),
			strings.Join(f.InvalidCompletedEvents, " "),
			strconv.FormatBool(f.WorkflowInvalid),
			strconv.FormatBool(f.Promotable),
			strconv.FormatBool(f.Repaired),
			f.Error,
		})
	}
	return table
}
