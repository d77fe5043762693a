package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/middleware"
	"github.com/noah-isme/academic-approval-api/internal/models"
	"github.com/noah-isme/academic-approval-api/internal/service"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/response"
)

type programCountService interface {
	Save(ctx context.Context, req dto.SaveProgramCountsRequest, actor *models.JWTClaims) (*service.ProgramSaveResult, error)
	List(ctx context.Context, query dto.ProgramCountQuery) ([]models.ProgramCount, error)
	SetPrincipalRemarks(ctx context.Context, req dto.ProgramRemarksRequest, actor *models.JWTClaims) error
	Summary(ctx context.Context, academicYearID string) ([]models.ProgramSubmissionSummary, error)
}

// ProgramCountHandler exposes budget proposal endpoints.
type ProgramCountHandler struct {
	service programCountService
}

// NewProgramCountHandler builds a new handler.
func NewProgramCountHandler(service programCountService) *ProgramCountHandler {
	return &ProgramCountHandler{service: service}
}

// List godoc
// @Summary List program counts
// @Tags Programs
// @Produce json
// @Param departmentId query string false "Department ID"
// @Param academicYearId query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /program-counts [get]
func (h *ProgramCountHandler) List(c *gin.Context) {
	var query dto.ProgramCountQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	entries, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}

// Save godoc
// @Summary Save a batch of program counts
// @Description Upserts every line; with submit=true a draft workflow moves to submitted.
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body dto.SaveProgramCountsRequest true "Program counts"
// @Success 200 {object} response.Envelope
// @Router /program-counts [post]
func (h *ProgramCountHandler) Save(c *gin.Context) {
	var req dto.SaveProgramCountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid program count payload"))
		return
	}
	result, err := h.service.Save(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Remarks godoc
// @Summary Record principal remarks on a budget proposal
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body dto.ProgramRemarksRequest true "Remarks"
// @Success 204
// @Router /program-counts/remarks [post]
func (h *ProgramCountHandler) Remarks(c *gin.Context) {
	var req dto.ProgramRemarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid remarks payload"))
		return
	}
	if err := h.service.SetPrincipalRemarks(c.Request.Context(), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Budget proposal submission status of every department
// @Tags Programs
// @Produce json
// @Param academicYearId query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /program-counts/status-summary [get]
func (h *ProgramCountHandler) Summary(c *gin.Context) {
	summaries, err := h.service.Summary(c.Request.Context(), c.Query("academicYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}
