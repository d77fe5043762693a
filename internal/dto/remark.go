package dto

// SaveRemarkRequest is the payload of PUT /remarks/:kind.
type SaveRemarkRequest struct {
	DepartmentID   string `json:"departmentId" validate:"required"`
	AcademicYearID string `json:"academicYearId" validate:"required"`
	Remarks        string `json:"remarks" validate:"required,max=4000"`
}
