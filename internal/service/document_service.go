package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	"github.com/noah-isme/academic-approval-api/internal/repository"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/storage"
)

const documentResource = "document"

type documentStore interface {
	NextVersion(ctx context.Context, exec sqlx.ExtContext, eventID string, kind models.DocumentKind) (int, error)
	LockLatest(ctx context.Context, exec sqlx.ExtContext, eventID string, kind models.DocumentKind) (*models.Document, error)
	Demote(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
	Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error)
	UpdateReview(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error
	ListVersions(ctx context.Context, eventID string, kind models.DocumentKind) ([]models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
}

type documentEventReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error)
}

type yearReconciler interface {
	ReconcileForward(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (ReconcileResult, error)
	ReconcileBackward(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (ReconcileResult, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type downloadSigner interface {
	Generate(documentID, key string) (string, time.Time, error)
	Parse(token string) (storage.DownloadGrant, error)
}

// DocumentServiceConfig holds upload limits.
type DocumentServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService owns the document lifecycle and triggers academic year reconciliation.
type DocumentService struct {
	docs       documentStore
	events     documentEventReader
	reconciler yearReconciler
	tx         txRunner
	blobs      blobStore
	signer     downloadSigner
	deadlines  deadlineGate
	notifier   notifier
	announcer  reconcileAnnouncer
	audit      auditLogger
	metrics    *MetricsService
	cfg        DocumentServiceConfig
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewDocumentService constructs the service. deadlines, notifier, workflows, audit and metrics may
// be nil.
func NewDocumentService(
	docs documentStore,
	events documentEventReader,
	reconciler yearReconciler,
	tx txRunner,
	blobs blobStore,
	signer downloadSigner,
	deadlines deadlineGate,
	notifier notifier,
	workflows workflowCacheInvalidator,
	audit auditLogger,
	metrics *MetricsService,
	cfg DocumentServiceConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docs:       docs,
		events:     events,
		reconciler: reconciler,
		tx:         tx,
		blobs:      blobs,
		signer:     signer,
		deadlines:  deadlines,
		notifier:   notifier,
		announcer:  reconcileAnnouncer{notifier: notifier, workflows: workflows, logger: logger},
		audit:      audit,
		metrics:    metrics,
		cfg:        cfg,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a new version of (event, kind). The previous latest version is demoted in the same
// transaction; if it was approved the academic year is reconciled backward.
func (s *DocumentService) Upload(ctx context.Context, req dto.UploadDocumentRequest, file dto.UploadedFile, actor *models.JWTClaims) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document kind "+string(req.Kind))
	}
	if file.Reader == nil || file.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if s.cfg.MaxFileSizeBytes > 0 && file.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType := detectContentType(file.ContentType, ext)
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type "+contentType+" is not allowed")
	}

	event, err := s.events.FindByID(ctx, nil, req.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if err := AuthorizeDepartment(actor, ActionDocumentUpload, event.DepartmentID); err != nil {
		return nil, err
	}
	if s.deadlines != nil {
		if err := s.deadlines.EnsureOpen(ctx, actor, event.DepartmentID, event.AcademicYearID, models.ModuleDocumentUpload); err != nil {
			return nil, err
		}
	}

	key := storage.DocumentKey(event.DepartmentID, event.AcademicYearID, string(req.Kind), uuid.NewString(), ext)
	size, err := s.blobs.Put(ctx, key, file.Reader, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store document file")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = file.Filename
	}
	doc := &models.Document{
		EventID:          event.ID,
		DepartmentID:     event.DepartmentID,
		AcademicYearID:   event.AcademicYearID,
		Kind:             req.Kind,
		Title:            title,
		OriginalFilename: file.Filename,
		FilePath:         key,
		MimeType:         contentType,
		SizeBytes:        size,
		Status:           models.DocumentStatusPending,
		IsLatestVersion:  true,
		UploadedBy:       actor.UserID,
	}

	var result ReconcileResult
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		latest, err := s.docs.LockLatest(ctx, exec, event.ID, req.Kind)
		if err != nil {
			return err
		}
		version, err := s.docs.NextVersion(ctx, exec, event.ID, req.Kind)
		if err != nil {
			return err
		}
		doc.Version = version
		if latest != nil {
			if err := s.docs.Demote(ctx, exec, latest.ID, s.now()); err != nil {
				return err
			}
			root := latest.LineageRootID()
			doc.ParentDocumentID = &root
		}
		if err := s.docs.Create(ctx, exec, doc); err != nil {
			return err
		}
		if latest != nil && latest.Status == models.DocumentStatusApproved {
			result, err = s.reconciler.ReconcileBackward(ctx, exec, event.DepartmentID, event.AcademicYearID)
			return err
		}
		return nil
	})
	if err != nil {
		s.removeBlob(ctx, key)
		if errors.Is(err, repository.ErrDuplicateVersion) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a concurrent upload created this version, retry the upload")
		}
		return nil, asAppError(err, "failed to upload document")
	}

	s.metrics.RecordDocumentDecision(string(models.DocumentStatusPending))
	s.announcer.announce(ctx, result, actor)
	s.notify(ctx, models.NotificationDocumentUploaded, models.NotificationRecipients{
		Roles:        []models.UserRole{models.RolePrincipal, models.RolePAPrincipal, models.RoleDeanIQAC},
		DepartmentID: doc.DepartmentID,
	}, doc, actor, "")
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionDocumentUpload,
		resource:   documentResource,
		resourceID: doc.ID,
		newValues:  map[string]interface{}{"event_id": doc.EventID, "kind": doc.Kind, "version": doc.Version},
		userAgent:  "document-service",
	})
	return doc, nil
}

// Approve approves a pending latest version and reconciles the academic year forward.
// Approving an approved document returns it unchanged.
func (s *DocumentService) Approve(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error) {
	if err := Authorize(actor, ActionDocumentApprove); err != nil {
		return nil, err
	}

	var (
		doc     *models.Document
		result  ReconcileResult
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		current, err := s.lockReviewable(ctx, exec, documentID)
		if err != nil {
			return err
		}
		doc = current
		switch current.Status {
		case models.DocumentStatusApproved:
			return nil
		case models.DocumentStatusPending:
		default:
			return appErrors.Clone(appErrors.ErrInvalidState, "only pending documents can be approved")
		}

		now := s.now()
		current.Status = models.DocumentStatusApproved
		current.ApprovedBy = actorID(actor)
		current.ApprovedAt = &now
		if err := s.docs.UpdateReview(ctx, exec, current); err != nil {
			return err
		}
		changed = true
		result, err = s.reconciler.ReconcileForward(ctx, exec, current.DepartmentID, current.AcademicYearID)
		return err
	})
	if err != nil {
		return nil, asAppError(err, "failed to approve document")
	}
	if !changed {
		return doc, nil
	}

	s.metrics.RecordDocumentDecision(string(models.DocumentStatusApproved))
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionDocumentApprove,
		resource:   documentResource,
		resourceID: doc.ID,
		oldValues:  map[string]interface{}{"status": models.DocumentStatusPending},
		newValues:  map[string]interface{}{"status": doc.Status},
		userAgent:  "document-service",
	})
	s.notify(ctx, models.NotificationDocumentApproved, models.NotificationRecipients{UserIDs: []string{doc.UploadedBy}}, doc, actor, "")
	s.announcer.announce(ctx, result, actor)
	return doc, nil
}

// Reject rejects a pending or approved latest version and reconciles the academic year backward.
// Rejecting a rejected document returns it unchanged.
func (s *DocumentService) Reject(ctx context.Context, documentID string, req dto.RejectDocumentRequest, actor *models.JWTClaims) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
	}
	if err := Authorize(actor, ActionDocumentReject); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	var (
		doc      *models.Document
		previous models.DocumentStatus
		result   ReconcileResult
		changed  bool
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		current, err := s.lockReviewable(ctx, exec, documentID)
		if err != nil {
			return err
		}
		doc = current
		previous = current.Status
		switch current.Status {
		case models.DocumentStatusRejected:
			return nil
		case models.DocumentStatusPending, models.DocumentStatusApproved:
		default:
			return appErrors.Clone(appErrors.ErrInvalidState, "document cannot be rejected in status "+string(current.Status))
		}

		now := s.now()
		current.Status = models.DocumentStatusRejected
		current.RejectedBy = actorID(actor)
		current.RejectedAt = &now
		current.RejectionReason = &reason
		current.ApprovedBy = nil
		current.ApprovedAt = nil
		if err := s.docs.UpdateReview(ctx, exec, current); err != nil {
			return err
		}
		changed = true
		result, err = s.reconciler.ReconcileBackward(ctx, exec, current.DepartmentID, current.AcademicYearID)
		return err
	})
	if err != nil {
		return nil, asAppError(err, "failed to reject document")
	}
	if !changed {
		return doc, nil
	}

	s.metrics.RecordDocumentDecision(string(models.DocumentStatusRejected))
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionDocumentReject,
		resource:   documentResource,
		resourceID: doc.ID,
		oldValues:  map[string]interface{}{"status": previous},
		newValues:  map[string]interface{}{"status": doc.Status, "reason": reason},
		userAgent:  "document-service",
	})
	s.notify(ctx, models.NotificationDocumentRejected, models.NotificationRecipients{UserIDs: []string{doc.UploadedBy}}, doc, actor, reason)
	s.announcer.announce(ctx, result, actor)
	return doc, nil
}

// Delete soft-deletes a latest version and reconciles the academic year backward. The stored file
// is removed after commit.
func (s *DocumentService) Delete(ctx context.Context, documentID string, actor *models.JWTClaims) error {
	if err := Authorize(actor, ActionDocumentDelete); err != nil {
		return err
	}

	var (
		doc      *models.Document
		previous models.DocumentStatus
		result   ReconcileResult
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		current, err := s.lockReviewable(ctx, exec, documentID)
		if err != nil {
			return err
		}
		if err := AuthorizeDepartment(actor, ActionDocumentDelete, current.DepartmentID); err != nil {
			return err
		}
		doc = current
		previous = current.Status

		now := s.now()
		current.Status = models.DocumentStatusDeleted
		current.DeletedBy = actorID(actor)
		current.DeletedAt = &now
		if err := s.docs.UpdateReview(ctx, exec, current); err != nil {
			return err
		}
		result, err = s.reconciler.ReconcileBackward(ctx, exec, current.DepartmentID, current.AcademicYearID)
		return err
	})
	if err != nil {
		return asAppError(err, "failed to delete document")
	}

	s.removeBlob(ctx, doc.FilePath)
	s.metrics.RecordDocumentDecision(string(models.DocumentStatusDeleted))
	emitAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionDocumentDelete,
		resource:   documentResource,
		resourceID: doc.ID,
		oldValues:  map[string]interface{}{"status": previous},
		newValues:  map[string]interface{}{"status": doc.Status},
		userAgent:  "document-service",
	})
	if doc.UploadedBy != actor.UserID {
		s.notify(ctx, models.NotificationDocumentDeleted, models.NotificationRecipients{UserIDs: []string{doc.UploadedBy}}, doc, actor, "")
	}
	s.announcer.announce(ctx, result, actor)
	return nil
}

// Get returns a document by id.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// List returns documents matching the query. Deleted documents are only listed when asked for by status.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error) {
	filter := models.DocumentFilter{
		EventID:        query.EventID,
		DepartmentID:   query.DepartmentID,
		AcademicYearID: query.AcademicYearID,
		Kind:           models.DocumentKind(query.Kind),
		Status:         models.DocumentStatus(query.Status),
		LatestOnly:     query.LatestOnly,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown document kind "+query.Kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown document status "+query.Status)
	}
	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return docs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListVersions returns every version of (event, kind), newest first.
func (s *DocumentService) ListVersions(ctx context.Context, eventID string, kind models.DocumentKind) ([]models.Document, error) {
	if eventID == "" || !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "eventId and a valid kind are required")
	}
	docs, err := s.docs.ListVersions(ctx, eventID, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document versions")
	}
	return docs, nil
}

// DownloadURL issues a signed, expiring download token for a document.
func (s *DocumentService) DownloadURL(ctx context.Context, id string) (string, time.Time, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if doc.Status == models.DocumentStatusDeleted {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// Download resolves a signed token to the document and its content. The caller closes the reader.
func (s *DocumentService) Download(ctx context.Context, token string) (*models.Document, io.ReadCloser, error) {
	grant, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	doc, err := s.Get(ctx, grant.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status == models.DocumentStatusDeleted || doc.FilePath != grant.Key {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	rc, err := s.blobs.Get(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document file not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read document file")
	}
	return doc, rc, nil
}

// lockReviewable loads a document under lock and rejects superseded or deleted versions.
func (s *DocumentService) lockReviewable(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	doc, err := s.docs.FindByIDForUpdate(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, err
	}
	if doc.Status == models.DocumentStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "document is deleted")
	}
	if !doc.IsLatestVersion {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "document has been superseded by a newer version")
	}
	return doc, nil
}

func (s *DocumentService) notify(ctx context.Context, kind models.NotificationType, recipients models.NotificationRecipients, doc *models.Document, actor *models.JWTClaims, reason string) {
	if s.notifier == nil {
		return
	}
	nctx := models.NotificationContext{
		DepartmentID:   doc.DepartmentID,
		AcademicYearID: doc.AcademicYearID,
		EventID:        doc.EventID,
		DocumentID:     doc.ID,
		DocumentKind:   string(doc.Kind),
		NewStatus:      string(doc.Status),
		Reason:         reason,
	}
	if actor != nil {
		nctx.ActorID = actor.UserID
	}
	s.notifier.Notify(ctx, kind, recipients, nctx)
}

func (s *DocumentService) removeBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("failed to remove document file", zap.String("key", key), zap.Error(err))
	}
}

func (s *DocumentService) mimeAllowed(contentType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

// detectContentType prefers the declared type and falls back to the file extension.
func detectContentType(declared, ext string) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

// asAppError keeps typed errors and wraps anything else as an internal error.
func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
