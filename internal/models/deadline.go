package models

import "time"

// DeadlineModule names a submission window of the academic year.
type DeadlineModule string

const (
	ModuleProgramEntry   DeadlineModule = "program_entry"
	ModuleEventPlanning  DeadlineModule = "event_planning"
	ModuleDocumentUpload DeadlineModule = "document_upload"
)

// Valid reports whether m is a known module.
func (m DeadlineModule) Valid() bool {
	switch m {
	case ModuleProgramEntry, ModuleEventPlanning, ModuleDocumentUpload:
		return true
	}
	return false
}

// ModuleDeadline closes a module for every department of an academic year.
type ModuleDeadline struct {
	ID             string         `db:"id" json:"id"`
	AcademicYearID string         `db:"academic_year_id" json:"academic_year_id"`
	Module         DeadlineModule `db:"module" json:"module"`
	Deadline       time.Time      `db:"deadline" json:"deadline"`
	UpdatedBy      *string        `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Override status values.
const (
	OverrideActive   = "active"
	OverrideExpired  = "expired"
	OverrideDisabled = "disabled"
)

// DeadlineOverride reopens a closed module for one department until ExpiresAt.
type DeadlineOverride struct {
	ID             string         `db:"id" json:"id"`
	DepartmentID   string         `db:"department_id" json:"department_id"`
	AcademicYearID string         `db:"academic_year_id" json:"academic_year_id"`
	Module         DeadlineModule `db:"module" json:"module"`
	Enabled        bool           `db:"enabled" json:"enabled"`
	Reason         string         `db:"reason" json:"reason"`
	DurationHours  int            `db:"duration_hours" json:"duration_hours"`
	ExpiresAt      time.Time      `db:"expires_at" json:"expires_at"`
	CreatedBy      *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	Status         string         `db:"-" json:"status"`
}

// StatusAt derives the override status at now.
func (o DeadlineOverride) StatusAt(now time.Time) string {
	switch {
	case !o.Enabled:
		return OverrideDisabled
	case !o.ExpiresAt.After(now):
		return OverrideExpired
	default:
		return OverrideActive
	}
}

// DeadlineStatus tells whether a department may still write to a module.
type DeadlineStatus struct {
	DepartmentID   string            `json:"department_id"`
	AcademicYearID string            `json:"academic_year_id"`
	Module         DeadlineModule    `json:"module"`
	Deadline       *time.Time        `json:"deadline,omitempty"`
	Passed         bool              `json:"passed"`
	Override       *DeadlineOverride `json:"override,omitempty"`
	Open           bool              `json:"open"`
}
