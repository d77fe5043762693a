package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

const deadlineResource = "module_deadline"

type deadlineStore interface {
	UpsertDeadline(ctx context.Context, deadline *models.ModuleDeadline) error
	FindDeadline(ctx context.Context, academicYearID string, module models.DeadlineModule) (*models.ModuleDeadline, error)
	ListDeadlines(ctx context.Context, academicYearID string) ([]models.ModuleDeadline, error)
	UpsertOverride(ctx context.Context, override *models.DeadlineOverride) error
	FindOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule) (*models.DeadlineOverride, error)
	ListOverrides(ctx context.Context, academicYearID string) ([]models.DeadlineOverride, error)
	ExtendOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule, hours int, now time.Time) (*models.DeadlineOverride, error)
	DeleteOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule) error
}

// deadlineGate is the check other services run before a department writes to a module.
type deadlineGate interface {
	EnsureOpen(ctx context.Context, actor *models.JWTClaims, departmentID, academicYearID string, module models.DeadlineModule) error
}

// DeadlineService manages module deadlines and the overrides principals grant past them.
type DeadlineService struct {
	repo      deadlineStore
	notifier  notifier
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDeadlineService constructs the service. notifier and audit may be nil.
func NewDeadlineService(repo deadlineStore, notifier notifier, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *DeadlineService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadlineService{
		repo:      repo,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetDeadline creates or moves the deadline of a module for an academic year.
func (s *DeadlineService) SetDeadline(ctx context.Context, req dto.SetModuleDeadlineRequest, actor *models.JWTClaims) (*models.ModuleDeadline, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deadline payload")
	}
	if !req.Module.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown module "+string(req.Module))
	}
	if err := Authorize(actor, ActionDeadlineManage); err != nil {
		return nil, err
	}
	deadline := &models.ModuleDeadline{
		AcademicYearID: req.AcademicYearID,
		Module:         req.Module,
		Deadline:       req.Deadline.UTC(),
		UpdatedBy:      actorID(actor),
	}
	if err := s.repo.UpsertDeadline(ctx, deadline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save deadline")
	}
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionDeadlineSet,
		resource:   deadlineResource,
		resourceID: deadline.ID,
		newValues:  deadline,
		userAgent:  "deadline-service",
	})
	return deadline, nil
}

// GetDeadline returns the deadline of one module.
func (s *DeadlineService) GetDeadline(ctx context.Context, academicYearID string, module models.DeadlineModule) (*models.ModuleDeadline, error) {
	if !module.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown module "+string(module))
	}
	deadline, err := s.repo.FindDeadline(ctx, academicYearID, module)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deadline not set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deadline")
	}
	return deadline, nil
}

// ListDeadlines returns every module deadline of an academic year.
func (s *DeadlineService) ListDeadlines(ctx context.Context, academicYearID string) ([]models.ModuleDeadline, error) {
	deadlines, err := s.repo.ListDeadlines(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deadlines")
	}
	return deadlines, nil
}

// GrantOverride reopens a module for one department for the requested number of hours. Granting
// again replaces the previous override and restarts its clock.
func (s *DeadlineService) GrantOverride(ctx context.Context, req dto.GrantOverrideRequest, actor *models.JWTClaims) (*models.DeadlineOverride, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if !req.Module.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown module "+string(req.Module))
	}
	if err := Authorize(actor, ActionDeadlineOverride); err != nil {
		return nil, err
	}
	now := s.now()
	override := &models.DeadlineOverride{
		DepartmentID:   req.DepartmentID,
		AcademicYearID: req.AcademicYearID,
		Module:         req.Module,
		Enabled:        true,
		Reason:         req.Reason,
		DurationHours:  req.DurationHours,
		ExpiresAt:      now.Add(time.Duration(req.DurationHours) * time.Hour),
		CreatedBy:      actorID(actor),
		CreatedAt:      now,
	}
	if err := s.repo.UpsertOverride(ctx, override); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save deadline override")
	}
	override.Status = override.StatusAt(now)

	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionOverrideGrant,
		resource:   deadlineResource,
		resourceID: override.ID,
		newValues:  override,
		userAgent:  "deadline-service",
	})
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.NotificationDeadlineOverride, models.NotificationRecipients{
			Roles:        []models.UserRole{models.RoleHOD},
			DepartmentID: req.DepartmentID,
		}, models.NotificationContext{
			DepartmentID:   req.DepartmentID,
			AcademicYearID: req.AcademicYearID,
			Module:         string(req.Module),
			Reason:         fmt.Sprintf("open until %s", override.ExpiresAt.Format(time.RFC1123)),
			ActorID:        actor.UserID,
		})
	}
	return override, nil
}

// ExtendOverride adds hours to an existing override.
func (s *DeadlineService) ExtendOverride(ctx context.Context, req dto.ExtendOverrideRequest, actor *models.JWTClaims) (*models.DeadlineOverride, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if !req.Module.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown module "+string(req.Module))
	}
	if err := Authorize(actor, ActionDeadlineOverride); err != nil {
		return nil, err
	}
	now := s.now()
	override, err := s.repo.ExtendOverride(ctx, req.DepartmentID, req.AcademicYearID, req.Module, req.AdditionalHours, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "override not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend deadline override")
	}
	override.Status = override.StatusAt(now)
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionOverrideGrant,
		resource:   deadlineResource,
		resourceID: override.ID,
		newValues:  map[string]interface{}{"expires_at": override.ExpiresAt, "additional_hours": req.AdditionalHours},
		userAgent:  "deadline-service",
	})
	return override, nil
}

// RevokeOverride removes an override so the module deadline applies again.
func (s *DeadlineService) RevokeOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule, actor *models.JWTClaims) error {
	if err := Authorize(actor, ActionDeadlineOverride); err != nil {
		return err
	}
	if err := s.repo.DeleteOverride(ctx, departmentID, academicYearID, module); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "override not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove deadline override")
	}
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionOverrideRevoke,
		resource:   deadlineResource,
		resourceID: departmentID + ":" + academicYearID + ":" + string(module),
		userAgent:  "deadline-service",
	})
	return nil
}

// ListOverrides returns overrides with their status at the time of the call.
func (s *DeadlineService) ListOverrides(ctx context.Context, academicYearID string) ([]models.DeadlineOverride, error) {
	overrides, err := s.repo.ListOverrides(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deadline overrides")
	}
	now := s.now()
	for i := range overrides {
		overrides[i].Status = overrides[i].StatusAt(now)
	}
	return overrides, nil
}

// Status reports whether a department may still write to a module. A module without a deadline
// is always open.
func (s *DeadlineService) Status(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule) (*models.DeadlineStatus, error) {
	if departmentID == "" || academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "departmentId and academicYearId are required")
	}
	if !module.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown module "+string(module))
	}
	status := &models.DeadlineStatus{DepartmentID: departmentID, AcademicYearID: academicYearID, Module: module, Open: true}
	now := s.now()

	deadline, err := s.repo.FindDeadline(ctx, academicYearID, module)
	switch {
	case err == nil:
		due := deadline.Deadline
		status.Deadline = &due
		status.Passed = now.After(due)
	case errors.Is(err, sql.ErrNoRows):
		return status, nil
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deadline")
	}

	override, err := s.repo.FindOverride(ctx, departmentID, academicYearID, module)
	switch {
	case err == nil:
		override.Status = override.StatusAt(now)
		status.Override = override
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deadline override")
	}

	status.Open = !status.Passed || (status.Override != nil && status.Override.Status == models.OverrideActive)
	return status, nil
}

// EnsureOpen fails with appErrors.ErrDeadlinePassed when the module is closed for the department. Roles
// holding the deadline bypass capability are never blocked.
func (s *DeadlineService) EnsureOpen(ctx context.Context, actor *models.JWTClaims, departmentID, academicYearID string, module models.DeadlineModule) error {
	if actor != nil && Can(actor.Role, ActionDeadlineBypass) {
		return nil
	}
	status, err := s.Status(ctx, departmentID, academicYearID, module)
	if err != nil {
		return err
	}
	if !status.Open {
		return appErrors.Clone(appErrors.ErrDeadlinePassed, fmt.Sprintf("%s closed on %s", module, status.Deadline.Format(time.RFC3339)))
	}
	return nil
}
