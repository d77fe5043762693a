package models

// Department is an academic department.
type Department struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// AcademicYear is a reporting period. IsEnabled is informational only; submission windows are
// set per module through ModuleDeadline.
type AcademicYear struct {
	ID        string `db:"id" json:"id"`
	Year      string `db:"year" json:"year"`
	IsEnabled bool   `db:"is_enabled" json:"is_enabled"`
}
