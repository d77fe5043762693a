package models

import "time"

// Document is one uploaded version of a (event, kind) lineage.
type Document struct {
	ID               string         `db:"id" json:"id"`
	EventID          string         `db:"event_id" json:"event_id"`
	DepartmentID     string         `db:"department_id" json:"department_id"`
	AcademicYearID   string         `db:"academic_year_id" json:"academic_year_id"`
	Kind             DocumentKind   `db:"kind" json:"kind"`
	Title            string         `db:"title" json:"title"`
	OriginalFilename string         `db:"original_filename" json:"original_filename"`
	FilePath         string         `db:"file_path" json:"-"`
	MimeType         string         `db:"mime_type" json:"mime_type"`
	SizeBytes        int64          `db:"size_bytes" json:"size_bytes"`
	Status           DocumentStatus `db:"status" json:"status"`
	Version          int            `db:"version" json:"version"`
	IsLatestVersion  bool           `db:"is_latest_version" json:"is_latest_version"`
	ParentDocumentID *string        `db:"parent_document_id" json:"parent_document_id,omitempty"`
	UploadedBy       string         `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt       time.Time      `db:"uploaded_at" json:"uploaded_at"`
	ApprovedBy       *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	RejectedBy       *string        `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt       *time.Time     `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason  *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DeletedBy        *string        `db:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt        *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// LineageRootID returns the id of version 1 of this document's lineage.
func (d *Document) LineageRootID() string {
	if d.ParentDocumentID != nil && *d.ParentDocumentID != "" {
		return *d.ParentDocumentID
	}
	return d.ID
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	EventID        string
	DepartmentID   string
	AcademicYearID string
	Kind           DocumentKind
	Status         DocumentStatus
	LatestOnly     bool
	Page           int
	PageSize       int
}
