package models

import "time"

// RemarkKind identifies who authored a year remark.
type RemarkKind string

const (
	RemarkHOD       RemarkKind = "hod"
	RemarkPrincipal RemarkKind = "principal"
)

// Valid reports whether k is a known remark kind.
func (k RemarkKind) Valid() bool {
	return k == RemarkHOD || k == RemarkPrincipal
}

// YearRemark is the free-text remark a head of department or principal keeps for one
// (department, academic year). There is at most one per kind.
type YearRemark struct {
	ID             string     `db:"id" json:"id"`
	DepartmentID   string     `db:"department_id" json:"department_id"`
	AcademicYearID string     `db:"academic_year_id" json:"academic_year_id"`
	Kind           RemarkKind `db:"kind" json:"kind"`
	Remarks        string     `db:"remarks" json:"remarks"`
	UpdatedBy      *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
