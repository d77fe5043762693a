package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

const documentColumns = `id, event_id, department_id, academic_year_id, kind, title, original_filename, file_path, mime_type, size_bytes,
status, version, is_latest_version, parent_document_id, uploaded_by, uploaded_at, approved_by, approved_at,
rejected_by, rejected_at, rejection_reason, deleted_by, deleted_at, updated_at`

// ErrDuplicateVersion is returned when another transaction inserted the same (event, kind, version).
var ErrDuplicateVersion = errors.New("document version already exists")

const uniqueViolation = "23505"

// DocumentRepository persists versioned event documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// NextVersion returns the version number the next upload of (event, kind) receives.
func (r *DocumentRepository) NextVersion(ctx context.Context, exec sqlx.ExtContext, eventID string, kind models.DocumentKind) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) + 1 FROM documents WHERE event_id = $1 AND kind = $2`
	var next int
	if err := sqlx.GetContext(ctx, r.exec(exec), &next, query, eventID, kind); err != nil {
		return 0, fmt.Errorf("compute next document version: %w", err)
	}
	return next, nil
}

// LockLatest returns the current latest version of (event, kind) under a row lock, or nil when none exists.
func (r *DocumentRepository) LockLatest(ctx context.Context, exec sqlx.ExtContext, eventID string, kind models.DocumentKind) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE event_id = $1 AND kind = $2 AND is_latest_version = TRUE FOR UPDATE`
	var doc models.Document
	if err := sqlx.GetContext(ctx, r.exec(exec), &doc, query, eventID, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock latest document: %w", err)
	}
	return &doc, nil
}

// Demote clears the latest-version flag on a document.
func (r *DocumentRepository) Demote(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	const query = `UPDATE documents SET is_latest_version = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("demote document: %w", err)
	}
	return nil
}

// Create inserts a new document version.
func (r *DocumentRepository) Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document payload is nil")
	}
	if doc.EventID == "" || doc.Kind == "" {
		return fmt.Errorf("event_id and kind are required")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
	}
	if doc.Version <= 0 {
		doc.Version = 1
	}
	now := time.Now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now

	const query = `
INSERT INTO documents (id, event_id, department_id, academic_year_id, kind, title, original_filename, file_path, mime_type, size_bytes,
	status, version, is_latest_version, parent_document_id, uploaded_by, uploaded_at, updated_at)
VALUES (:id, :event_id, :department_id, :academic_year_id, :kind, :title, :original_filename, :file_path, :mime_type, :size_bytes,
	:status, :version, :is_latest_version, :parent_document_id, :uploaded_by, :uploaded_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, doc); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateVersion
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// FindByID returns a document by id. sql.ErrNoRows is returned unwrapped when absent.
func (r *DocumentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := sqlx.GetContext(ctx, r.exec(exec), &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// FindByIDForUpdate is FindByID holding a row lock until the transaction ends.
func (r *DocumentRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	var doc models.Document
	if err := sqlx.GetContext(ctx, r.exec(exec), &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock document: %w", err)
	}
	return &doc, nil
}

// UpdateReview persists the status and review columns of a document.
func (r *DocumentRepository) UpdateReview(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE documents SET status = :status, approved_by = :approved_by, approved_at = :approved_at,
	rejected_by = :rejected_by, rejected_at = :rejected_at, rejection_reason = :rejection_reason,
	deleted_by = :deleted_by, deleted_at = :deleted_at, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, doc)
	if err != nil {
		return fmt.Errorf("update document review: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListLatestByEvent returns every non-deleted latest version attached to an event.
func (r *DocumentRepository) ListLatestByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
WHERE event_id = $1 AND is_latest_version = TRUE AND status <> 'deleted'
ORDER BY kind ASC`
	var docs []models.Document
	if err := sqlx.SelectContext(ctx, r.exec(exec), &docs, query, eventID); err != nil {
		return nil, fmt.Errorf("list latest documents: %w", err)
	}
	return docs, nil
}

// ListVersions returns the full history of (event, kind), newest first.
func (r *DocumentRepository) ListVersions(ctx context.Context, eventID string, kind models.DocumentKind) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE event_id = $1 AND kind = $2 ORDER BY version DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, eventID, kind); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return docs, nil
}

// List returns documents matching filter along with the total count.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	baseQuery := `FROM documents WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	} else {
		conditions = append(conditions, "status <> 'deleted'")
	}
	if filter.LatestOnly {
		conditions = append(conditions, "is_latest_version = TRUE")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY uploaded_at DESC LIMIT %d OFFSET %d", documentColumns, baseQuery, pageSize, offset)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
