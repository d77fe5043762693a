package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

// ReconcileDirection tells which document transition triggered a reconciliation.
type ReconcileDirection string

const (
	DirectionForward  ReconcileDirection = "forward"
	DirectionBackward ReconcileDirection = "backward"
)

// ReconcileResult describes what a reconciliation changed inside the caller's transaction.
type ReconcileResult struct {
	DepartmentID       string               `json:"department_id"`
	AcademicYearID     string               `json:"academic_year_id"`
	Direction          ReconcileDirection   `json:"direction"`
	PreviousStatus     models.WorkflowState `json:"previous_status"`
	Status             models.WorkflowState `json:"status"`
	PromotedEventIDs   []string             `json:"promoted_event_ids,omitempty"`
	RevertedEventIDs   []string             `json:"reverted_event_ids,omitempty"`
	IncompleteEventIDs []string             `json:"incomplete_event_ids,omitempty"`
}

// WorkflowChanged reports whether the workflow status row was rewritten.
func (r ReconcileResult) WorkflowChanged() bool {
	return r.PreviousStatus != r.Status
}

// Changed reports whether any event or the workflow status moved.
func (r ReconcileResult) Changed() bool {
	return r.WorkflowChanged() || len(r.PromotedEventIDs) > 0 || len(r.RevertedEventIDs) > 0
}

type reconcileEventStore interface {
	ListByDepartmentYear(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) ([]models.Event, error)
	MarkCompleted(ctx context.Context, exec sqlx.ExtContext, ids []string, at time.Time) ([]string, error)
	RevertCompleted(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, at time.Time) ([]string, error)
}

type reconcileWorkflowStore interface {
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, status models.WorkflowState, updatedBy *string) (*models.WorkflowStatus, error)
}

// Reconciler propagates document decisions to event and workflow statuses of one
// (department, academic year). It always runs inside the caller's transaction.
type Reconciler struct {
	events    reconcileEventStore
	workflows reconcileWorkflowStore
	evaluator *CompletionEvaluator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciler constructs a Reconciler.
func NewReconciler(events reconcileEventStore, workflows reconcileWorkflowStore, evaluator *CompletionEvaluator, metrics *MetricsService, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		events:    events,
		workflows: workflows,
		evaluator: evaluator,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileForward completes the academic year when every event in it is document-complete.
// Nothing changes unless all events are complete.
func (r *Reconciler) ReconcileForward(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (ReconcileResult, error) {
	result := ReconcileResult{DepartmentID: departmentID, AcademicYearID: academicYearID, Direction: DirectionForward}

	ws, err := r.workflows.LockForUpdate(ctx, exec, departmentID, academicYearID)
	if err != nil {
		return result, r.fail(result, err, "failed to lock workflow status")
	}
	result.PreviousStatus = ws.Status
	result.Status = ws.Status

	events, err := r.events.ListByDepartmentYear(ctx, exec, departmentID, academicYearID)
	if err != nil {
		return result, r.fail(result, err, "failed to load events")
	}
	if len(events) == 0 {
		r.record(result)
		return result, nil
	}

	ids := make([]string, 0, len(events))
	for i := range events {
		completion, err := r.evaluator.inspect(ctx, exec, &events[i])
		if err != nil {
			r.metrics.RecordReconciliation(DirectionForward, "error")
			return result, err
		}
		if !completion.Complete {
			result.IncompleteEventIDs = append(result.IncompleteEventIDs, events[i].ID)
		}
		ids = append(ids, events[i].ID)
	}
	if len(result.IncompleteEventIDs) > 0 {
		r.record(result)
		return result, nil
	}

	promoted, err := r.events.MarkCompleted(ctx, exec, ids, r.now())
	if err != nil {
		return result, r.fail(result, err, "failed to complete events")
	}
	result.PromotedEventIDs = promoted

	if ws.Status != models.WorkflowStateCompleted {
		updated, err := r.workflows.Upsert(ctx, exec, departmentID, academicYearID, models.WorkflowStateCompleted, nil)
		if err != nil {
			return result, r.fail(result, err, "failed to complete workflow status")
		}
		result.Status = updated.Status
	}
	r.record(result)
	return result, nil
}

// ReconcileBackward reverts every completed event of the academic year to planned and a completed
// workflow to events_planned. Remaining events are not re-evaluated.
func (r *Reconciler) ReconcileBackward(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (ReconcileResult, error) {
	result := ReconcileResult{DepartmentID: departmentID, AcademicYearID: academicYearID, Direction: DirectionBackward}

	ws, err := r.workflows.LockForUpdate(ctx, exec, departmentID, academicYearID)
	if err != nil {
		return result, r.fail(result, err, "failed to lock workflow status")
	}
	result.PreviousStatus = ws.Status
	result.Status = ws.Status

	reverted, err := r.events.RevertCompleted(ctx, exec, departmentID, academicYearID, r.now())
	if err != nil {
		return result, r.fail(result, err, "failed to revert completed events")
	}
	result.RevertedEventIDs = reverted

	if ws.Status == models.WorkflowStateCompleted {
		updated, err := r.workflows.Upsert(ctx, exec, departmentID, academicYearID, models.WorkflowStateEventsPlanned, nil)
		if err != nil {
			return result, r.fail(result, err, "failed to revert workflow status")
		}
		result.Status = updated.Status
	}
	r.record(result)
	return result, nil
}

func (r *Reconciler) fail(result ReconcileResult, err error, message string) error {
	r.metrics.RecordReconciliation(result.Direction, "error")
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (r *Reconciler) record(result ReconcileResult) {
	outcome := "unchanged"
	if result.Changed() {
		outcome = "changed"
		r.logger.Info("academic year reconciled",
			zap.String("direction", string(result.Direction)),
			zap.String("department_id", result.DepartmentID),
			zap.String("academic_year_id", result.AcademicYearID),
			zap.String("previous_status", string(result.PreviousStatus)),
			zap.String("status", string(result.Status)),
			zap.Strings("promoted", result.PromotedEventIDs),
			zap.Strings("reverted", result.RevertedEventIDs),
		)
	}
	r.metrics.RecordReconciliation(result.Direction, outcome)
}

// reconcileAnnouncer publishes the side effects of a committed reconciliation.
type reconcileAnnouncer struct {
	notifier  notifier
	workflows workflowCacheInvalidator
	logger    *zap.Logger
}

// announce invalidates the cached workflow status and notifies the department leads when the year
// was completed or reverted. Both steps are best-effort.
func (a reconcileAnnouncer) announce(ctx context.Context, result ReconcileResult, actor *models.JWTClaims) {
	if !result.Changed() {
		return
	}
	if a.workflows != nil && result.WorkflowChanged() {
		a.workflows.InvalidateStatus(ctx, result.DepartmentID, result.AcademicYearID)
	}
	if a.notifier == nil || !result.WorkflowChanged() {
		return
	}
	kind := models.NotificationWorkflowReverted
	if result.Status == models.WorkflowStateCompleted {
		kind = models.NotificationWorkflowCompleted
	}
	nctx := models.NotificationContext{
		DepartmentID:   result.DepartmentID,
		AcademicYearID: result.AcademicYearID,
		PreviousStatus: string(result.PreviousStatus),
		NewStatus:      string(result.Status),
	}
	if id := actorID(actor); id != nil {
		nctx.ActorID = *id
	}
	a.notifier.Notify(ctx, kind, departmentLeads(result.DepartmentID), nctx)
}

func departmentLeads(departmentID string) models.NotificationRecipients {
	return models.NotificationRecipients{
		Roles:        []models.UserRole{models.RoleHOD, models.RolePrincipal},
		DepartmentID: departmentID,
	}
}
