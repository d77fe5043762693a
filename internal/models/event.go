package models

import "time"

// Event is an activity planned by a department within an academic year.
type Event struct {
	ID                 string      `db:"id" json:"id"`
	DepartmentID       string      `db:"department_id" json:"department_id"`
	AcademicYearID     string      `db:"academic_year_id" json:"academic_year_id"`
	Title              string      `db:"title" json:"title"`
	Description        *string     `db:"description" json:"description,omitempty"`
	EventDate          *time.Time  `db:"event_date" json:"event_date,omitempty"`
	BudgetAmount       float64     `db:"budget_amount" json:"budget_amount"`
	CoordinatorName    *string     `db:"coordinator_name" json:"coordinator_name,omitempty"`
	CoordinatorContact *string     `db:"coordinator_contact" json:"coordinator_contact,omitempty"`
	Status             EventStatus `db:"status" json:"status"`
	CreatedBy          string      `db:"created_by" json:"created_by"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	DepartmentID   string
	AcademicYearID string
	Status         EventStatus
	Page           int
	PageSize       int
}

// KindCompletion summarises one required kind for an event.
type KindCompletion struct {
	Kind           DocumentKind    `json:"kind"`
	LatestStatus   *DocumentStatus `json:"latest_status,omitempty"`
	LatestVersion  int             `json:"latest_version,omitempty"`
	LatestDocument *string         `json:"latest_document_id,omitempty"`
	Approved       bool            `json:"approved"`
}

// EventCompletion is the evaluator's verdict for one event.
type EventCompletion struct {
	EventID      string           `json:"event_id"`
	Status       EventStatus      `json:"status"`
	Complete     bool             `json:"complete"`
	Kinds        []KindCompletion `json:"kinds"`
	MissingKinds []DocumentKind   `json:"missing_kinds,omitempty"`
}
