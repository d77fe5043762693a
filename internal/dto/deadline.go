package dto

import (
	"time"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

// SetModuleDeadlineRequest is the payload of PUT /module-deadlines.
type SetModuleDeadlineRequest struct {
	AcademicYearID string                `json:"academicYearId" validate:"required"`
	Module         models.DeadlineModule `json:"module" validate:"required"`
	Deadline       time.Time             `json:"deadline" validate:"required"`
}

// GrantOverrideRequest is the payload of POST /deadline-overrides.
type GrantOverrideRequest struct {
	DepartmentID   string                `json:"departmentId" validate:"required"`
	AcademicYearID string                `json:"academicYearId" validate:"required"`
	Module         models.DeadlineModule `json:"module" validate:"required"`
	Reason         string                `json:"reason" validate:"required,max=500"`
	DurationHours  int                   `json:"durationHours" validate:"required,gte=1,lte=720"`
}

// ExtendOverrideRequest is the payload of POST /deadline-overrides/extend.
type ExtendOverrideRequest struct {
	DepartmentID    string                `json:"departmentId" validate:"required"`
	AcademicYearID  string                `json:"academicYearId" validate:"required"`
	Module          models.DeadlineModule `json:"module" validate:"required"`
	AdditionalHours int                   `json:"additionalHours" validate:"required,gte=1,lte=720"`
}
