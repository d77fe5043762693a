package models

import "time"

// WorkflowStatus is the single workflow row of a (department, academic year).
type WorkflowStatus struct {
	ID             string        `db:"id" json:"id"`
	DepartmentID   string        `db:"department_id" json:"department_id"`
	AcademicYearID string        `db:"academic_year_id" json:"academic_year_id"`
	Status         WorkflowState `db:"status" json:"status"`
	UpdatedBy      *string       `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}
