package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/middleware"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/response"
)

type workflowService interface {
	Get(ctx context.Context, departmentID, academicYearID string) (*models.WorkflowStatus, error)
	Set(ctx context.Context, req dto.SetWorkflowStatusRequest, actor *models.JWTClaims) (*models.WorkflowStatus, error)
}

// WorkflowHandler exposes the workflow status store.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler builds a new handler.
func NewWorkflowHandler(service workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// Get godoc
// @Summary Get the workflow status of a department and academic year
// @Description A draft row is created on first access.
// @Tags Workflow
// @Produce json
// @Param departmentId query string true "Department ID"
// @Param academicYearId query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /workflow-status [get]
func (h *WorkflowHandler) Get(c *gin.Context) {
	departmentID := c.Query("departmentId")
	academicYearID := c.Query("academicYearId")
	if departmentID == "" || academicYearID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "departmentId and academicYearId are required"))
		return
	}
	ws, err := h.service.Get(c.Request.Context(), departmentID, academicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ws, nil, middleware.ExtractMeta(c))
}

// Set godoc
// @Summary Overwrite the workflow status
// @Tags Workflow
// @Accept json
// @Produce json
// @Param payload body dto.SetWorkflowStatusRequest true "Workflow status payload"
// @Success 200 {object} response.Envelope
// @Router /workflow-status [put]
func (h *WorkflowHandler) Set(c *gin.Context) {
	var req dto.SetWorkflowStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workflow status payload"))
		return
	}
	ws, err := h.service.Set(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ws, nil)
}
