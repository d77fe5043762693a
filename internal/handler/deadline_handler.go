package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/response"
)

type deadlineService interface {
	SetDeadline(ctx context.Context, req dto.SetModuleDeadlineRequest, actor *models.JWTClaims) (*models.ModuleDeadline, error)
	GetDeadline(ctx context.Context, academicYearID string, module models.DeadlineModule) (*models.ModuleDeadline, error)
	ListDeadlines(ctx context.Context, academicYearID string) ([]models.ModuleDeadline, error)
	GrantOverride(ctx context.Context, req dto.GrantOverrideRequest, actor *models.JWTClaims) (*models.DeadlineOverride, error)
	ExtendOverride(ctx context.Context, req dto.ExtendOverrideRequest, actor *models.JWTClaims) (*models.DeadlineOverride, error)
	RevokeOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule, actor *models.JWTClaims) error
	ListOverrides(ctx context.Context, academicYearID string) ([]models.DeadlineOverride, error)
	Status(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule) (*models.DeadlineStatus, error)
}

// DeadlineHandler exposes module deadlines and per-department overrides.
type DeadlineHandler struct {
	service deadlineService
}

// NewDeadlineHandler builds a new handler.
func NewDeadlineHandler(service deadlineService) *DeadlineHandler {
	return &DeadlineHandler{service: service}
}

// ListDeadlines godoc
// @Summary List module deadlines of an academic year
// @Tags Deadlines
// @Produce json
// @Param academicYearId query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /module-deadlines [get]
func (h *DeadlineHandler) ListDeadlines(c *gin.Context) {
	academicYearID := c.Query("academicYearId")
	if academicYearID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYearId is required"))
		return
	}
	deadlines, err := h.service.ListDeadlines(c.Request.Context(), academicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadlines, nil)
}

// GetDeadline godoc
// @Summary Get the deadline of one module
// @Tags Deadlines
// @Produce json
// @Param module path string true "Module" Enums(program_entry, event_planning, document_upload)
// @Param academicYearId query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /module-deadlines/{module} [get]
func (h *DeadlineHandler) GetDeadline(c *gin.Context) {
	deadline, err := h.service.GetDeadline(c.Request.Context(), c.Query("academicYearId"), models.DeadlineModule(c.Param("module")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadline, nil)
}

// SetDeadline godoc
// @Summary Set the deadline of a module
// @Tags Deadlines
// @Accept json
// @Produce json
// @Param payload body dto.SetModuleDeadlineRequest true "Deadline"
// @Success 200 {object} response.Envelope
// @Router /module-deadlines [put]
func (h *DeadlineHandler) SetDeadline(c *gin.Context) {
	var req dto.SetModuleDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deadline payload"))
		return
	}
	deadline, err := h.service.SetDeadline(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadline, nil)
}

// ListOverrides godoc
// @Summary List deadline overrides
// @Tags Deadlines
// @Produce json
// @Param academicYearId query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /deadline-overrides [get]
func (h *DeadlineHandler) ListOverrides(c *gin.Context) {
	overrides, err := h.service.ListOverrides(c.Request.Context(), c.Query("academicYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overrides, nil)
}

// GrantOverride godoc
// @Summary Reopen a module for one department
// @Tags Deadlines
// @Accept json
// @Produce json
// @Param payload body dto.GrantOverrideRequest true "Override"
// @Success 201 {object} response.Envelope
// @Router /deadline-overrides [post]
func (h *DeadlineHandler) GrantOverride(c *gin.Context) {
	var req dto.GrantOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	override, err := h.service.GrantOverride(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, override)
}

// ExtendOverride godoc
// @Summary Extend an override
// @Tags Deadlines
// @Accept json
// @Produce json
// @Param payload body dto.ExtendOverrideRequest true "Extension"
// @Success 200 {object} response.Envelope
// @Router /deadline-overrides/extend [post]
func (h *DeadlineHandler) ExtendOverride(c *gin.Context) {
	var req dto.ExtendOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	override, err := h.service.ExtendOverride(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, override, nil)
}

// RevokeOverride godoc
// @Summary Remove an override
// @Tags Deadlines
// @Param departmentId query string true "Department ID"
// @Param academicYearId query string true "Academic year ID"
// @Param module query string true "Module"
// @Success 204
// @Router /deadline-overrides [delete]
func (h *DeadlineHandler) RevokeOverride(c *gin.Context) {
	departmentID, academicYearID, module, ok := scopeModuleQuery(c)
	if !ok {
		return
	}
	if err := h.service.RevokeOverride(c.Request.Context(), departmentID, academicYearID, module, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary Whether a department may still write to a module
// @Tags Deadlines
// @Produce json
// @Param departmentId query string true "Department ID"
// @Param academicYearId query string true "Academic year ID"
// @Param module query string true "Module"
// @Success 200 {object} response.Envelope
// @Router /deadline-status [get]
func (h *DeadlineHandler) Status(c *gin.Context) {
	departmentID, academicYearID, module, ok := scopeModuleQuery(c)
	if !ok {
		return
	}
	status, err := h.service.Status(c.Request.Context(), departmentID, academicYearID, module)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

func scopeModuleQuery(c *gin.Context) (string, string, models.DeadlineModule, bool) {
	departmentID := c.Query("departmentId")
	academicYearID := c.Query("academicYearId")
	module := models.DeadlineModule(c.Query("module"))
	if departmentID == "" || academicYearID == "" || module == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "departmentId, academicYearId and module are required"))
		return "", "", "", false
	}
	return departmentID, academicYearID, module, true
}
