package dto

import (
	"io"
	"time"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

// UploadDocumentRequest carries the form fields of POST /documents.
type UploadDocumentRequest struct {
	EventID string              `form:"eventId" json:"eventId" validate:"required"`
	Kind    models.DocumentKind `form:"kind" json:"kind" validate:"required"`
	Title   string              `form:"title" json:"title" validate:"omitempty,max=255"`
}

// UploadedFile is the file part of an upload, detached from the HTTP layer.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// RejectDocumentRequest is the payload of POST /documents/:id/reject.
type RejectDocumentRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// DocumentListQuery captures GET /documents query parameters.
type DocumentListQuery struct {
	EventID        string `form:"eventId"`
	DepartmentID   string `form:"departmentId"`
	AcademicYearID string `form:"academicYearId"`
	Kind           string `form:"kind"`
	Status         string `form:"status"`
	LatestOnly     bool   `form:"latestOnly"`
	Page           int    `form:"page"`
	PageSize       int    `form:"pageSize"`
}

// DownloadLinkResponse is returned by GET /documents/:id/download-url.
type DownloadLinkResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
