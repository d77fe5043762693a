package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

type remarkStore interface {
	Upsert(ctx context.Context, remark *models.YearRemark) error
	Find(ctx context.Context, departmentID, academicYearID string, kind models.RemarkKind) (*models.YearRemark, error)
}

// RemarkService keeps the closing remarks a head of department and the principal write on an
// academic year.
type RemarkService struct {
	repo      remarkStore
	directory departmentYearLookup
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRemarkService constructs the service.
func NewRemarkService(repo remarkStore, directory departmentYearLookup, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *RemarkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemarkService{repo: repo, directory: directory, audit: audit, validator: validate, logger: logger}
}

// Save stores the remark of a kind. HoD remarks are limited to the actor's own department.
func (s *RemarkService) Save(ctx context.Context, kind models.RemarkKind, req dto.SaveRemarkRequest, actor *models.JWTClaims) (*models.YearRemark, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown remark kind "+string(kind))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remark payload")
	}
	var err error
	if kind == models.RemarkHOD {
		err = AuthorizeDepartment(actor, ActionRemarkHOD, req.DepartmentID)
	} else {
		err = Authorize(actor, ActionRemarkPrincipal)
	}
	if err != nil {
		return nil, err
	}
	if err := ensureDepartmentYear(ctx, s.directory, req.DepartmentID, req.AcademicYearID); err != nil {
		return nil, err
	}

	remark := &models.YearRemark{
		DepartmentID:   req.DepartmentID,
		AcademicYearID: req.AcademicYearID,
		Kind:           kind,
		Remarks:        strings.TrimSpace(req.Remarks),
		UpdatedBy:      actorID(actor),
	}
	if err := s.repo.Upsert(ctx, remark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save remarks")
	}
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionRemarkSave,
		resource:   "year_remarks",
		resourceID: remark.ID,
		newValues:  remark,
		userAgent:  "remark-service",
	})
	return remark, nil
}

// Get returns the remark of a kind for a scope.
func (s *RemarkService) Get(ctx context.Context, kind models.RemarkKind, departmentID, academicYearID string) (*models.YearRemark, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown remark kind "+string(kind))
	}
	if departmentID == "" || academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "departmentId and academicYearId are required")
	}
	remark, err := s.repo.Find(ctx, departmentID, academicYearID, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "remarks not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load remarks")
	}
	return remark, nil
}
