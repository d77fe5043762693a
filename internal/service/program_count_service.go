package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

const programCountResource = "program_counts"

type programCountStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, entry *models.ProgramCount) error
	List(ctx context.Context, filter models.ProgramCountFilter) ([]models.ProgramCount, error)
	SetPrincipalRemarks(ctx context.Context, departmentID, academicYearID, remarks string, updatedBy *string) (int64, error)
	Summaries(ctx context.Context, academicYearID string) ([]models.ProgramSubmissionSummary, error)
}

type proposalWorkflowStore interface {
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, status models.WorkflowState, updatedBy *string) (*models.WorkflowStatus, error)
}

// ProgramSaveResult is the saved proposal and the workflow status it left behind.
type ProgramSaveResult struct {
	Entries        []models.ProgramCount  `json:"entries"`
	WorkflowStatus *models.WorkflowStatus `json:"workflow_status"`
	Submitted      bool                   `json:"submitted"`
}

// ProgramCountService owns the budget proposal step that precedes event planning: a department
// saves its program counts while the workflow is draft and submits them for principal approval.
type ProgramCountService struct {
	repo      programCountStore
	workflows proposalWorkflowStore
	directory departmentYearLookup
	deadlines deadlineGate
	tx        txRunner
	notifier  notifier
	cache     workflowCacheInvalidator
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramCountService constructs the service. directory, deadlines, notifier, cache and audit
// may be nil.
func NewProgramCountService(
	repo programCountStore,
	workflows proposalWorkflowStore,
	directory departmentYearLookup,
	deadlines deadlineGate,
	tx txRunner,
	notifier notifier,
	cache workflowCacheInvalidator,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProgramCountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramCountService{
		repo:      repo,
		workflows: workflows,
		directory: directory,
		deadlines: deadlines,
		tx:        tx,
		notifier:  notifier,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// Save upserts the proposal lines of one (department, academic year). Lines can change only while
// the workflow is draft or submitted. With Submit set a draft workflow moves to submitted in the
// same transaction.
func (s *ProgramCountService) Save(ctx context.Context, req dto.SaveProgramCountsRequest, actor *models.JWTClaims) (*ProgramSaveResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program count payload")
	}
	if err := AuthorizeDepartment(actor, ActionProgramSubmit, req.DepartmentID); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(req.Entries))
	for _, entry := range req.Entries {
		key := strings.ToLower(strings.TrimSpace(entry.ProgramType)) + "|" + strings.ToLower(strings.TrimSpace(entry.SubProgramType))
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate program type "+entry.ProgramType)
		}
		seen[key] = struct{}{}
	}
	if err := ensureDepartmentYear(ctx, s.directory, req.DepartmentID, req.AcademicYearID); err != nil {
		return nil, err
	}
	if s.deadlines != nil {
		if err := s.deadlines.EnsureOpen(ctx, actor, req.DepartmentID, req.AcademicYearID, models.ModuleProgramEntry); err != nil {
			return nil, err
		}
	}

	result := &ProgramSaveResult{}
	var previous models.WorkflowState
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		ws, err := s.workflows.LockForUpdate(ctx, exec, req.DepartmentID, req.AcademicYearID)
		if err != nil {
			return err
		}
		previous = ws.Status
		if ws.Status != models.WorkflowStateDraft && ws.Status != models.WorkflowStateSubmitted {
			return appErrors.Clone(appErrors.ErrInvalidState, "the budget proposal is locked once the workflow is "+string(ws.Status))
		}

		for _, in := range req.Entries {
			entry := &models.ProgramCount{
				DepartmentID:     req.DepartmentID,
				AcademicYearID:   req.AcademicYearID,
				ProgramType:      strings.TrimSpace(in.ProgramType),
				SubProgramType:   strings.TrimSpace(in.SubProgramType),
				ActivityCategory: in.ActivityCategory,
				BudgetMode:       in.BudgetMode,
				Count:            in.Count,
				TotalBudget:      in.TotalBudget,
				Remarks:          in.Remarks,
				UpdatedBy:        actorID(actor),
			}
			if err := s.repo.Upsert(ctx, exec, entry); err != nil {
				return err
			}
			result.Entries = append(result.Entries, *entry)
		}

		if req.Submit && ws.Status == models.WorkflowStateDraft {
			ws, err = s.workflows.Upsert(ctx, exec, req.DepartmentID, req.AcademicYearID, models.WorkflowStateSubmitted, actorID(actor))
			if err != nil {
				return err
			}
		}
		result.WorkflowStatus = ws
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "failed to save program counts")
	}
	result.Submitted = result.WorkflowStatus.Status == models.WorkflowStateSubmitted

	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionProgramSubmit,
		resource:   programCountResource,
		resourceID: req.DepartmentID + ":" + req.AcademicYearID,
		oldValues:  map[string]interface{}{"status": previous},
		newValues:  map[string]interface{}{"status": result.WorkflowStatus.Status, "entries": len(result.Entries)},
		userAgent:  "program-count-service",
	})
	if previous != result.WorkflowStatus.Status {
		if s.cache != nil {
			s.cache.InvalidateStatus(ctx, req.DepartmentID, req.AcademicYearID)
		}
		if s.notifier != nil {
			s.notifier.Notify(ctx, models.NotificationBudgetSubmitted, models.NotificationRecipients{
				Roles:        []models.UserRole{models.RolePrincipal, models.RolePAPrincipal},
				DepartmentID: req.DepartmentID,
			}, models.NotificationContext{
				DepartmentID:   req.DepartmentID,
				AcademicYearID: req.AcademicYearID,
				PreviousStatus: string(previous),
				NewStatus:      string(result.WorkflowStatus.Status),
				ActorID:        actor.UserID,
			})
		}
	}
	return result, nil
}

// List returns the proposal lines matching the query.
func (s *ProgramCountService) List(ctx context.Context, query dto.ProgramCountQuery) ([]models.ProgramCount, error) {
	entries, err := s.repo.List(ctx, models.ProgramCountFilter{DepartmentID: query.DepartmentID, AcademicYearID: query.AcademicYearID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program counts")
	}
	return entries, nil
}

// SetPrincipalRemarks records the principal's remark on every line of the proposal.
func (s *ProgramCountService) SetPrincipalRemarks(ctx context.Context, req dto.ProgramRemarksRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remarks payload")
	}
	if err := Authorize(actor, ActionProgramRemark); err != nil {
		return err
	}
	updated, err := s.repo.SetPrincipalRemarks(ctx, req.DepartmentID, req.AcademicYearID, req.PrincipalRemarks, actorID(actor))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no program counts to remark on")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save principal remarks")
	}
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionProgramRemarks,
		resource:   programCountResource,
		resourceID: req.DepartmentID + ":" + req.AcademicYearID,
		newValues:  map[string]interface{}{"principal_remarks": req.PrincipalRemarks, "entries": updated},
		userAgent:  "program-count-service",
	})
	return nil
}

// Summary returns the submission overview of every department for an academic year.
func (s *ProgramCountService) Summary(ctx context.Context, academicYearID string) ([]models.ProgramSubmissionSummary, error) {
	if academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYearId is required")
	}
	summaries, err := s.repo.Summaries(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise program counts")
	}
	return summaries, nil
}
