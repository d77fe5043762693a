package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

const workflowStatusColumns = `id, department_id, academic_year_id, status, updated_by, created_at, updated_at`

// WorkflowStatusRepository stores the single workflow row per (department, academic year).
type WorkflowStatusRepository struct {
	db *sqlx.DB
}

// NewWorkflowStatusRepository constructs the repository.
func NewWorkflowStatusRepository(db *sqlx.DB) *WorkflowStatusRepository {
	return &WorkflowStatusRepository{db: db}
}

func (r *WorkflowStatusRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Find returns the workflow row. sql.ErrNoRows is returned unwrapped when absent.
func (r *WorkflowStatusRepository) Find(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	query := `SELECT ` + workflowStatusColumns + ` FROM workflow_statuses WHERE department_id = $1 AND academic_year_id = $2`
	var ws models.WorkflowStatus
	if err := sqlx.GetContext(ctx, r.exec(exec), &ws, query, departmentID, academicYearID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find workflow status: %w", err)
	}
	return &ws, nil
}

// EnsureDefault inserts a draft row for the scope when none exists. Existing rows are untouched.
func (r *WorkflowStatusRepository) EnsureDefault(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) error {
	now := time.Now().UTC()
	const query = `
INSERT INTO workflow_statuses (id, department_id, academic_year_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (department_id, academic_year_id) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, uuid.NewString(), departmentID, academicYearID, models.WorkflowStateDraft, now); err != nil {
		return fmt.Errorf("ensure workflow status: %w", err)
	}
	return nil
}

// GetOrCreate returns the workflow row, lazily creating a draft one on first access.
func (r *WorkflowStatusRepository) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	ws, err := r.Find(ctx, exec, departmentID, academicYearID)
	if err == nil {
		return ws, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	if err := r.EnsureDefault(ctx, exec, departmentID, academicYearID); err != nil {
		return nil, err
	}
	return r.Find(ctx, exec, departmentID, academicYearID)
}

// LockForUpdate creates the row if needed and locks it until the surrounding transaction ends.
// Reconciliation of a scope is serialized through this lock.
func (r *WorkflowStatusRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	if err := r.EnsureDefault(ctx, exec, departmentID, academicYearID); err != nil {
		return nil, err
	}
	query := `SELECT ` + workflowStatusColumns + ` FROM workflow_statuses WHERE department_id = $1 AND academic_year_id = $2 FOR UPDATE`
	var ws models.WorkflowStatus
	if err := sqlx.GetContext(ctx, r.exec(exec), &ws, query, departmentID, academicYearID); err != nil {
		return nil, fmt.Errorf("lock workflow status: %w", err)
	}
	return &ws, nil
}

// Upsert overwrites the status of the scope unconditionally, creating the row if absent.
func (r *WorkflowStatusRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, status models.WorkflowState, updatedBy *string) (*models.WorkflowStatus, error) {
	now := time.Now().UTC()
	query := `
INSERT INTO workflow_statuses (id, department_id, academic_year_id, status, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (department_id, academic_year_id)
DO UPDATE SET status = EXCLUDED.status, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING ` + workflowStatusColumns
	var ws models.WorkflowStatus
	if err := sqlx.GetContext(ctx, r.exec(exec), &ws, query, uuid.NewString(), departmentID, academicYearID, status, updatedBy, now); err != nil {
		return nil, fmt.Errorf("upsert workflow status: %w", err)
	}
	return &ws, nil
}
