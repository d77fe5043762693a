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

const (
	moduleDeadlineColumns   = `id, academic_year_id, module, deadline, updated_by, updated_at`
	deadlineOverrideColumns = `id, department_id, academic_year_id, module, enabled, reason, duration_hours, expires_at, created_by, created_at`
)

// DeadlineRepository stores module deadlines and the per-department overrides that reopen them.
type DeadlineRepository struct {
	db *sqlx.DB
}

// NewDeadlineRepository constructs the repository.
func NewDeadlineRepository(db *sqlx.DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

// UpsertDeadline sets the deadline of a module for an academic year.
func (r *DeadlineRepository) UpsertDeadline(ctx context.Context, deadline *models.ModuleDeadline) error {
	if deadline.ID == "" {
		deadline.ID = uuid.NewString()
	}
	deadline.UpdatedAt = time.Now().UTC()
	query := `
INSERT INTO module_deadlines (id, academic_year_id, module, deadline, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (academic_year_id, module)
DO UPDATE SET deadline = EXCLUDED.deadline, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING ` + moduleDeadlineColumns
	if err := r.db.GetContext(ctx, deadline, query, deadline.ID, deadline.AcademicYearID, deadline.Module,
		deadline.Deadline, deadline.UpdatedBy, deadline.UpdatedAt); err != nil {
		return fmt.Errorf("upsert module deadline: %w", err)
	}
	return nil
}

// FindDeadline returns the deadline of a module. sql.ErrNoRows is returned unwrapped when unset.
func (r *DeadlineRepository) FindDeadline(ctx context.Context, academicYearID string, module models.DeadlineModule) (*models.ModuleDeadline, error) {
	query := `SELECT ` + moduleDeadlineColumns + ` FROM module_deadlines WHERE academic_year_id = $1 AND module = $2`
	var deadline models.ModuleDeadline
	if err := r.db.GetContext(ctx, &deadline, query, academicYearID, module); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find module deadline: %w", err)
	}
	return &deadline, nil
}

// ListDeadlines returns every module deadline of an academic year.
func (r *DeadlineRepository) ListDeadlines(ctx context.Context, academicYearID string) ([]models.ModuleDeadline, error) {
	query := `SELECT ` + moduleDeadlineColumns + ` FROM module_deadlines WHERE academic_year_id = $1 ORDER BY module`
	var deadlines []models.ModuleDeadline
	if err := r.db.SelectContext(ctx, &deadlines, query, academicYearID); err != nil {
		return nil, fmt.Errorf("list module deadlines: %w", err)
	}
	return deadlines, nil
}

// UpsertOverride creates or replaces the override of (department, year, module).
func (r *DeadlineRepository) UpsertOverride(ctx context.Context, override *models.DeadlineOverride) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	if override.CreatedAt.IsZero() {
		override.CreatedAt = time.Now().UTC()
	}
	query := `
INSERT INTO deadline_overrides (id, department_id, academic_year_id, module, enabled, reason, duration_hours, expires_at, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (department_id, academic_year_id, module)
DO UPDATE SET enabled = EXCLUDED.enabled, reason = EXCLUDED.reason, duration_hours = EXCLUDED.duration_hours,
	expires_at = EXCLUDED.expires_at, created_by = EXCLUDED.created_by, created_at = EXCLUDED.created_at
RETURNING ` + deadlineOverrideColumns
	if err := r.db.GetContext(ctx, override, query, override.ID, override.DepartmentID, override.AcademicYearID, override.Module,
		override.Enabled, override.Reason, override.DurationHours, override.ExpiresAt, override.CreatedBy, override.CreatedAt); err != nil {
		return fmt.Errorf("upsert deadline override: %w", err)
	}
	return nil
}

// FindOverride returns the override of (department, year, module). sql.ErrNoRows is returned
// unwrapped when none exists.
func (r *DeadlineRepository) FindOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule) (*models.DeadlineOverride, error) {
	query := `SELECT ` + deadlineOverrideColumns + ` FROM deadline_overrides WHERE department_id = $1 AND academic_year_id = $2 AND module = $3`
	var override models.DeadlineOverride
	if err := r.db.GetContext(ctx, &override, query, departmentID, academicYearID, module); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find deadline override: %w", err)
	}
	return &override, nil
}

// ListOverrides returns overrides, optionally narrowed to one academic year.
func (r *DeadlineRepository) ListOverrides(ctx context.Context, academicYearID string) ([]models.DeadlineOverride, error) {
	query := `SELECT ` + deadlineOverrideColumns + ` FROM deadline_overrides`
	var args []interface{}
	if academicYearID != "" {
		query += ` WHERE academic_year_id = $1`
		args = append(args, academicYearID)
	}
	query += ` ORDER BY created_at DESC`
	var overrides []models.DeadlineOverride
	if err := r.db.SelectContext(ctx, &overrides, query, args...); err != nil {
		return nil, fmt.Errorf("list deadline overrides: %w", err)
	}
	return overrides, nil
}

// ExtendOverride pushes the expiry of an override by hours, counting from now when it already
// lapsed. sql.ErrNoRows is returned when no override exists.
func (r *DeadlineRepository) ExtendOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule, hours int, now time.Time) (*models.DeadlineOverride, error) {
	query := `
UPDATE deadline_overrides
SET expires_at = GREATEST(expires_at, $5) + make_interval(hours => $4), duration_hours = duration_hours + $4
WHERE department_id = $1 AND academic_year_id = $2 AND module = $3
RETURNING ` + deadlineOverrideColumns
	var override models.DeadlineOverride
	if err := r.db.GetContext(ctx, &override, query, departmentID, academicYearID, module, hours, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("extend deadline override: %w", err)
	}
	return &override, nil
}

// DeleteOverride removes an override. sql.ErrNoRows is returned when none existed.
func (r *DeadlineRepository) DeleteOverride(ctx context.Context, departmentID, academicYearID string, module models.DeadlineModule) error {
	const query = `DELETE FROM deadline_overrides WHERE department_id = $1 AND academic_year_id = $2 AND module = $3`
	res, err := r.db.ExecContext(ctx, query, departmentID, academicYearID, module)
	if err != nil {
		return fmt.Errorf("delete deadline override: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete deadline override: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
