package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	"github.com/noah-isme/academic-approval-api/internal/service"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/response"
)

type consistencyService interface {
	Sweep(ctx context.Context, repair bool, actor *models.JWTClaims) (*service.SweepReport, error)
}

// ConsistencyHandler exposes the completion consistency sweep to administrators.
type ConsistencyHandler struct {
	service consistencyService
}

// NewConsistencyHandler builds a new handler.
func NewConsistencyHandler(service consistencyService) *ConsistencyHandler {
	return &ConsistencyHandler{service: service}
}

// Sweep godoc
// @Summary Detect, and optionally repair, stale completion claims
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.SweepRequest false "Sweep options"
// @Success 200 {object} response.Envelope
// @Router /admin/consistency/sweep [post]
func (h *ConsistencyHandler) Sweep(c *gin.Context) {
	var req dto.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sweep payload"))
		return
	}
	report, err := h.service.Sweep(c.Request.Context(), req.Repair, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
