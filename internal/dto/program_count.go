package dto

import "github.com/noah-isme/academic-approval-api/internal/models"

// ProgramCountEntry is one proposal line of a batch.
type ProgramCountEntry struct {
	ProgramType      string            `json:"programType" validate:"required,max=255"`
	SubProgramType   string            `json:"subProgramType" validate:"max=255"`
	ActivityCategory string            `json:"activityCategory" validate:"required,max=255"`
	BudgetMode       models.BudgetMode `json:"budgetMode" validate:"required,oneof=fixed variable"`
	Count            int               `json:"count" validate:"gte=0"`
	TotalBudget      float64           `json:"totalBudget" validate:"gte=0"`
	Remarks          *string           `json:"remarks,omitempty" validate:"omitempty,max=1000"`
}

// SaveProgramCountsRequest is the payload of POST /program-counts. Submit also moves the
// workflow to submitted for principal review.
type SaveProgramCountsRequest struct {
	DepartmentID   string              `json:"departmentId" validate:"required"`
	AcademicYearID string              `json:"academicYearId" validate:"required"`
	Entries        []ProgramCountEntry `json:"entries" validate:"required,min=1,dive"`
	Submit         bool                `json:"submit"`
}

// ProgramRemarksRequest is the payload of POST /program-counts/remarks.
type ProgramRemarksRequest struct {
	DepartmentID     string `json:"departmentId" validate:"required"`
	AcademicYearID   string `json:"academicYearId" validate:"required"`
	PrincipalRemarks string `json:"principalRemarks" validate:"required,max=2000"`
}

// ProgramCountQuery captures GET /program-counts query parameters.
type ProgramCountQuery struct {
	DepartmentID   string `form:"departmentId"`
	AcademicYearID string `form:"academicYearId"`
}
