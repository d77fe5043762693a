package dto

import "github.com/noah-isme/academic-approval-api/internal/models"

// SetWorkflowStatusRequest is the payload of PUT /workflow-status.
type SetWorkflowStatusRequest struct {
	DepartmentID   string               `json:"departmentId" validate:"required"`
	AcademicYearID string               `json:"academicYearId" validate:"required"`
	Status         models.WorkflowState `json:"status" validate:"required"`
}
