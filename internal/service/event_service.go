package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

const eventResource = "event"

type eventStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EventStatus, at time.Time) error
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
}

type departmentYearLookup interface {
	FindDepartment(ctx context.Context, id string) (*models.Department, error)
	FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error)
}

// EventService manages departmental events. The completed status is owned by the reconciler.
type EventService struct {
	repo       eventStore
	directory  departmentYearLookup
	evaluator  *CompletionEvaluator
	reconciler yearReconciler
	tx         txRunner
	deadlines  deadlineGate
	announcer  reconcileAnnouncer
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEventService constructs the service. directory, deadlines, notifier, workflows and audit may
// be nil.
func NewEventService(
	repo eventStore,
	directory departmentYearLookup,
	evaluator *CompletionEvaluator,
	reconciler yearReconciler,
	tx txRunner,
	deadlines deadlineGate,
	notifier notifier,
	workflows workflowCacheInvalidator,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		repo:       repo,
		directory:  directory,
		evaluator:  evaluator,
		reconciler: reconciler,
		tx:         tx,
		deadlines:  deadlines,
		announcer:  reconcileAnnouncer{notifier: notifier, workflows: workflows, logger: logger},
		audit:      audit,
		validator:  validate,
		logger:     logger,
	}
}

// Create registers a planned event for a department and academic year. A completed year has an
// incomplete event again, so it is reverted in the same transaction.
func (s *EventService) Create(ctx context.Context, req dto.CreateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if err := AuthorizeDepartment(actor, ActionEventCreate, req.DepartmentID); err != nil {
		return nil, err
	}
	if err := ensureDepartmentYear(ctx, s.directory, req.DepartmentID, req.AcademicYearID); err != nil {
		return nil, err
	}
	if s.deadlines != nil {
		if err := s.deadlines.EnsureOpen(ctx, actor, req.DepartmentID, req.AcademicYearID, models.ModuleEventPlanning); err != nil {
			return nil, err
		}
	}

	event := &models.Event{
		DepartmentID:       req.DepartmentID,
		AcademicYearID:     req.AcademicYearID,
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		EventDate:          req.EventDate,
		BudgetAmount:       req.BudgetAmount,
		CoordinatorName:    req.CoordinatorName,
		CoordinatorContact: req.CoordinatorContact,
		Status:             models.EventStatusPlanned,
		CreatedBy:          actor.UserID,
	}
	var result ReconcileResult
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.repo.Create(ctx, exec, event); err != nil {
			return err
		}
		var err error
		result, err = s.reconciler.ReconcileBackward(ctx, exec, req.DepartmentID, req.AcademicYearID)
		return err
	})
	if err != nil {
		return nil, asAppError(err, "failed to create event")
	}
	s.announcer.announce(ctx, result, actor)
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionEventCreate,
		resource:   eventResource,
		resourceID: event.ID,
		newValues:  event,
		userAgent:  "event-service",
	})
	return event, nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// List returns events matching the query.
func (s *EventService) List(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error) {
	filter := models.EventFilter{
		DepartmentID:   query.DepartmentID,
		AcademicYearID: query.AcademicYearID,
		Status:         models.EventStatus(query.Status),
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown event status "+query.Status)
	}
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return events, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UpdateStatus moves an event between planned, ongoing and cancelled.
func (s *EventService) UpdateStatus(ctx context.Context, id string, req dto.UpdateEventStatusRequest, actor *models.JWTClaims) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event status "+string(req.Status))
	}
	if req.Status == models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "events are completed only through document approval")
	}

	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeDepartment(actor, ActionEventUpdateStatus, event.DepartmentID); err != nil {
		return nil, err
	}
	if event.Status == req.Status {
		return event, nil
	}
	if event.Status == models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "completed events change only through document review")
	}

	previous := event.Status
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, nil, id, req.Status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event status")
	}
	event.Status = req.Status
	event.UpdatedAt = now

	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionEventStatus,
		resource:   eventResource,
		resourceID: event.ID,
		oldValues:  map[string]interface{}{"status": previous},
		newValues:  map[string]interface{}{"status": event.Status},
		userAgent:  "event-service",
	})
	return event, nil
}

// Completion returns the per-kind completion breakdown of an event.
func (s *EventService) Completion(ctx context.Context, id string) (*models.EventCompletion, error) {
	return s.evaluator.InspectEvent(ctx, nil, id)
}

func ensureDepartmentYear(ctx context.Context, directory departmentYearLookup, departmentID, academicYearID string) error {
	if directory == nil {
		return nil
	}
	if _, err := directory.FindDepartment(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if _, err := directory.FindAcademicYear(ctx, academicYearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return nil
}

func pageBounds(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
