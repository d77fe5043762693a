package models

import "time"

// BudgetMode tells whether a program type has a fixed or a variable budget.
type BudgetMode string

const (
	BudgetModeFixed    BudgetMode = "fixed"
	BudgetModeVariable BudgetMode = "variable"
)

// ProgramCount is one line of a department's budget proposal: how many programs of a type it plans
// for the academic year and their total budget. SubProgramType is empty when the type has none.
type ProgramCount struct {
	ID               string     `db:"id" json:"id"`
	DepartmentID     string     `db:"department_id" json:"department_id"`
	AcademicYearID   string     `db:"academic_year_id" json:"academic_year_id"`
	ProgramType      string     `db:"program_type" json:"program_type"`
	SubProgramType   string     `db:"sub_program_type" json:"sub_program_type,omitempty"`
	ActivityCategory string     `db:"activity_category" json:"activity_category"`
	BudgetMode       BudgetMode `db:"budget_mode" json:"budget_mode"`
	Count            int        `db:"count" json:"count"`
	TotalBudget      float64    `db:"total_budget" json:"total_budget"`
	Remarks          *string    `db:"remarks" json:"remarks,omitempty"`
	PrincipalRemarks *string    `db:"principal_remarks" json:"principal_remarks,omitempty"`
	UpdatedBy        *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// ProgramCountFilter narrows program count listings.
type ProgramCountFilter struct {
	DepartmentID   string
	AcademicYearID string
}

// ProgramSubmissionSummary is the per-department proposal overview of an academic year.
type ProgramSubmissionSummary struct {
	DepartmentID     string        `db:"department_id" json:"department_id"`
	DepartmentName   string        `db:"department_name" json:"department_name"`
	Entries          int           `db:"entries" json:"entries"`
	Submitted        bool          `db:"-" json:"submitted"`
	GrandTotalBudget float64       `db:"grand_total_budget" json:"grand_total_budget"`
	WorkflowStatus   WorkflowState `db:"workflow_status" json:"workflow_status"`
	LastUpdated      *time.Time    `db:"last_updated" json:"last_updated,omitempty"`
}
