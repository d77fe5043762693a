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

const yearRemarkColumns = `id, department_id, academic_year_id, kind, remarks, updated_by, created_at, updated_at`

// RemarkRepository stores head-of-department and principal remarks per academic year.
type RemarkRepository struct {
	db *sqlx.DB
}

// NewRemarkRepository constructs the repository.
func NewRemarkRepository(db *sqlx.DB) *RemarkRepository {
	return &RemarkRepository{db: db}
}

// Upsert saves the remark of its kind for the scope, replacing any earlier text.
func (r *RemarkRepository) Upsert(ctx context.Context, remark *models.YearRemark) error {
	if remark.ID == "" {
		remark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `
INSERT INTO year_remarks (id, department_id, academic_year_id, kind, remarks, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (department_id, academic_year_id, kind)
DO UPDATE SET remarks = EXCLUDED.remarks, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING ` + yearRemarkColumns
	if err := r.db.GetContext(ctx, remark, query, remark.ID, remark.DepartmentID, remark.AcademicYearID, remark.Kind,
		remark.Remarks, remark.UpdatedBy, now); err != nil {
		return fmt.Errorf("upsert year remark: %w", err)
	}
	return nil
}

// Find returns the remark of a kind. sql.ErrNoRows is returned unwrapped when absent.
func (r *RemarkRepository) Find(ctx context.Context, departmentID, academicYearID string, kind models.RemarkKind) (*models.YearRemark, error) {
	query := `SELECT ` + yearRemarkColumns + ` FROM year_remarks WHERE department_id = $1 AND academic_year_id = $2 AND kind = $3`
	var remark models.YearRemark
	if err := r.db.GetContext(ctx, &remark, query, departmentID, academicYearID, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find year remark: %w", err)
	}
	return &remark, nil
}
