package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

const workflowStatusResource = "workflow_status"

type workflowStore interface {
	Find(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error)
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, status models.WorkflowState, updatedBy *string) (*models.WorkflowStatus, error)
}

type statusCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Evict(ctx context.Context, keys ...string) error
}

type workflowCacheInvalidator interface {
	InvalidateStatus(ctx context.Context, departmentID, academicYearID string)
}

// WorkflowService reads and overwrites the workflow status of a (department, academic year).
//
// Reads are cache-aside. Every invalidation bumps a per-scope generation and a read only fills the
// cache when no invalidation ran while it was loading, so a stale row is never written back by
// this instance. Writes committed by other instances are bounded by the cache TTL.
type WorkflowService struct {
	repo      workflowStore
	cache     statusCache
	cacheTTL  time.Duration
	notifier  notifier
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewWorkflowService constructs the service. cache and notifier may be nil.
func NewWorkflowService(repo workflowStore, cache statusCache, cacheTTL time.Duration, notifier notifier, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		repo:        repo,
		cache:       cache,
		cacheTTL:    cacheTTL,
		notifier:    notifier,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

// WorkflowStatusCachePattern matches every cached workflow row.
const WorkflowStatusCachePattern = "workflow_status:*"

// WorkflowStatusCacheKey is the cache key of one workflow row.
func WorkflowStatusCacheKey(departmentID, academicYearID string) string {
	return fmt.Sprintf("workflow_status:%s:%s", departmentID, academicYearID)
}

// Get returns the workflow status, creating a draft row on first access.
func (s *WorkflowService) Get(ctx context.Context, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	if departmentID == "" || academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "departmentId and academicYearId are required")
	}
	key := WorkflowStatusCacheKey(departmentID, academicYearID)
	if s.cache != nil {
		var cached models.WorkflowStatus
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	generation := s.generation(key)
	ws, err := s.repo.GetOrCreate(ctx, nil, departmentID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow status")
	}
	if s.cache != nil {
		s.mu.Lock()
		if s.generations[key] == generation {
			_ = s.cache.Set(ctx, key, ws, s.cacheTTL)
		}
		s.mu.Unlock()
	}
	return ws, nil
}

// Set overwrites the workflow status regardless of its current value. Only the status value
// itself is validated. Notification is best-effort and never fails the write.
func (s *WorkflowService) Set(ctx context.Context, req dto.SetWorkflowStatusRequest, actor *models.JWTClaims) (*models.WorkflowStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workflow status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown workflow status "+string(req.Status))
	}
	if err := AuthorizeDepartment(actor, ActionWorkflowSet, req.DepartmentID); err != nil {
		return nil, err
	}

	var previous models.WorkflowState
	current, err := s.repo.Find(ctx, nil, req.DepartmentID, req.AcademicYearID)
	switch {
	case err == nil:
		previous = current.Status
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow status")
	}

	ws, err := s.repo.Upsert(ctx, nil, req.DepartmentID, req.AcademicYearID, req.Status, actorID(actor))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workflow status")
	}

	s.InvalidateStatus(ctx, req.DepartmentID, req.AcademicYearID)
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionWorkflowSet,
		resource:   workflowStatusResource,
		resourceID: ws.ID,
		oldValues:  map[string]interface{}{"status": previous},
		newValues:  map[string]interface{}{"status": ws.Status},
		userAgent:  "workflow-service",
	})
	if s.notifier != nil && previous != ws.Status {
		s.notifier.Notify(ctx, models.NotificationWorkflowStatusChanged, departmentLeads(req.DepartmentID), models.NotificationContext{
			DepartmentID:   req.DepartmentID,
			AcademicYearID: req.AcademicYearID,
			PreviousStatus: string(previous),
			NewStatus:      string(ws.Status),
			ActorID:        actor.UserID,
		})
	}
	return ws, nil
}

func (s *WorkflowService) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key]
}

// InvalidateStatus drops the cached workflow row and fences off reads that started before it.
// Failures are logged only.
func (s *WorkflowService) InvalidateStatus(ctx context.Context, departmentID, academicYearID string) {
	if s == nil || s.cache == nil {
		return
	}
	key := WorkflowStatusCacheKey(departmentID, academicYearID)
	s.mu.Lock()
	s.generations[key]++
	s.mu.Unlock()
	if err := s.cache.Evict(ctx, key); err != nil {
		s.logger.Warn("failed to invalidate workflow status cache",
			zap.String("department_id", departmentID),
			zap.String("academic_year_id", academicYearID),
			zap.Error(err),
		)
	}
}
