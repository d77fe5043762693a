package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/middleware"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, req dto.UploadDocumentRequest, file dto.UploadedFile, actor *models.JWTClaims) (*models.Document, error)
	Approve(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error)
	Reject(ctx context.Context, documentID string, req dto.RejectDocumentRequest, actor *models.JWTClaims) (*models.Document, error)
	Delete(ctx context.Context, documentID string, actor *models.JWTClaims) error
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error)
	ListVersions(ctx context.Context, eventID string, kind models.DocumentKind) ([]models.Document, error)
	DownloadURL(ctx context.Context, id string) (string, time.Time, error)
	Download(ctx context.Context, token string) (*models.Document, io.ReadCloser, error)
}

// DocumentHandler exposes document upload, review and download endpoints.
type DocumentHandler struct {
	service      documentService
	downloadPath string
}

// NewDocumentHandler builds a new handler. downloadPath is the public route that redeems
// signed download tokens.
func NewDocumentHandler(service documentService, downloadPath string) *DocumentHandler {
	return &DocumentHandler{service: service, downloadPath: downloadPath}
}

// Upload godoc
// @Summary Upload a new document version
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param eventId formData string true "Event ID"
// @Param kind formData string true "Document kind"
// @Param title formData string false "Title"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read uploaded file"))
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), req, dto.UploadedFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Approve godoc
// @Summary Approve the latest version of a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/approve [post]
func (h *DocumentHandler) Approve(c *gin.Context) {
	doc, err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Reject godoc
// @Summary Reject a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.RejectDocumentRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/reject [post]
func (h *DocumentHandler) Reject(c *gin.Context) {
	var req dto.RejectDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}
	doc, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Soft-delete the latest version of a document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get document metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param eventId query string false "Event ID"
// @Param departmentId query string false "Department ID"
// @Param academicYearId query string false "Academic year ID"
// @Param kind query string false "Document kind"
// @Param status query string false "Document status"
// @Param latestOnly query bool false "Only latest versions"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.DocumentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	docs, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination, middleware.ExtractMeta(c))
}

// Versions godoc
// @Summary List every version of one document kind for an event
// @Tags Documents
// @Produce json
// @Param eventId path string true "Event ID"
// @Param kind path string true "Document kind"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/documents/{kind}/versions [get]
func (h *DocumentHandler) Versions(c *gin.Context) {
	docs, err := h.service.ListVersions(c.Request.Context(), c.Param("id"), models.DocumentKind(c.Param("kind")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// DownloadURL godoc
// @Summary Issue a signed download link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	token, expiresAt, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DownloadLinkResponse{
		URL:       h.downloadPath + "?token=" + url.QueryEscape(token),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a document through a signed link
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	doc, body, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close()

	name := doc.OriginalFilename
	if name == "" {
		name = doc.ID
	}
	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	length := doc.SizeBytes
	if length <= 0 {
		length = -1
	}
	c.DataFromReader(http.StatusOK, length, contentType, body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
		"Cache-Control":       "private, no-store",
		"X-Document-Version":  strconv.Itoa(doc.Version),
	})
}
