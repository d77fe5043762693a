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

type remarkService interface {
	Save(ctx context.Context, kind models.RemarkKind, req dto.SaveRemarkRequest, actor *models.JWTClaims) (*models.YearRemark, error)
	Get(ctx context.Context, kind models.RemarkKind, departmentID, academicYearID string) (*models.YearRemark, error)
}

// RemarkHandler exposes HoD and principal remarks.
type RemarkHandler struct {
	service remarkService
}

// NewRemarkHandler builds a new handler.
func NewRemarkHandler(service remarkService) *RemarkHandler {
	return &RemarkHandler{service: service}
}

// Get godoc
// @Summary Get the remarks of a kind for a department and academic year
// @Tags Remarks
// @Produce json
// @Param kind path string true "Remark kind" Enums(hod, principal)
// @Param departmentId query string true "Department ID"
// @Param academicYearId query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /remarks/{kind} [get]
func (h *RemarkHandler) Get(c *gin.Context) {
	remark, err := h.service.Get(c.Request.Context(), models.RemarkKind(c.Param("kind")), c.Query("departmentId"), c.Query("academicYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, remark, nil)
}

// Save godoc
// @Summary Save the remarks of a kind
// @Tags Remarks
// @Accept json
// @Produce json
// @Param kind path string true "Remark kind" Enums(hod, principal)
// @Param payload body dto.SaveRemarkRequest true "Remarks"
// @Success 200 {object} response.Envelope
// @Router /remarks/{kind} [put]
func (h *RemarkHandler) Save(c *gin.Context) {
	var req dto.SaveRemarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid remark payload"))
		return
	}
	remark, err := h.service.Save(c.Request.Context(), models.RemarkKind(c.Param("kind")), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, remark, nil)
}
