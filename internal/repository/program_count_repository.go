package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

const programCountColumns = `id, department_id, academic_year_id, program_type, sub_program_type, activity_category,
budget_mode, count, total_budget, remarks, principal_remarks, updated_by, created_at, updated_at`

// ProgramCountRepository stores the budget proposal lines of each department and academic year.
type ProgramCountRepository struct {
	db *sqlx.DB
}

// NewProgramCountRepository constructs the repository.
func NewProgramCountRepository(db *sqlx.DB) *ProgramCountRepository {
	return &ProgramCountRepository{db: db}
}

func (r *ProgramCountRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert writes one proposal line keyed by (department, year, program type, sub type). Principal
// remarks of an existing line are kept.
func (r *ProgramCountRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, entry *models.ProgramCount) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `
INSERT INTO program_counts (id, department_id, academic_year_id, program_type, sub_program_type, activity_category,
	budget_mode, count, total_budget, remarks, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
ON CONFLICT (department_id, academic_year_id, program_type, sub_program_type)
DO UPDATE SET activity_category = EXCLUDED.activity_category, budget_mode = EXCLUDED.budget_mode,
	count = EXCLUDED.count, total_budget = EXCLUDED.total_budget, remarks = EXCLUDED.remarks,
	updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING ` + programCountColumns
	if err := sqlx.GetContext(ctx, r.exec(exec), entry, query, entry.ID, entry.DepartmentID, entry.AcademicYearID,
		entry.ProgramType, entry.SubProgramType, entry.ActivityCategory, entry.BudgetMode, entry.Count,
		entry.TotalBudget, entry.Remarks, entry.UpdatedBy, now); err != nil {
		return fmt.Errorf("upsert program count: %w", err)
	}
	return nil
}

// List returns proposal lines ordered by program type.
func (r *ProgramCountRepository) List(ctx context.Context, filter models.ProgramCountFilter) ([]models.ProgramCount, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)))
	}
	query := `SELECT ` + programCountColumns + ` FROM program_counts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY program_type, sub_program_type`
	var entries []models.ProgramCount
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list program counts: %w", err)
	}
	return entries, nil
}

// SetPrincipalRemarks stores the same principal remark on every line of the scope. sql.ErrNoRows
// is returned when the scope has no lines.
func (r *ProgramCountRepository) SetPrincipalRemarks(ctx context.Context, departmentID, academicYearID, remarks string, updatedBy *string) (int64, error) {
	const query = `
UPDATE program_counts SET principal_remarks = $3, updated_by = $4, updated_at = $5
WHERE department_id = $1 AND academic_year_id = $2`
	res, err := r.db.ExecContext(ctx, query, departmentID, academicYearID, remarks, updatedBy, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("set principal remarks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set principal remarks: %w", err)
	}
	if affected == 0 {
		return 0, sql.ErrNoRows
	}
	return affected, nil
}

// Summaries returns one proposal overview per department for an academic year, including
// departments that have not submitted anything.
func (r *ProgramCountRepository) Summaries(ctx context.Context, academicYearID string) ([]models.ProgramSubmissionSummary, error) {
	const query = `
SELECT d.id AS department_id, d.name AS department_name,
	COUNT(pc.id) AS entries,
	COALESCE(SUM(pc.total_budget), 0) AS grand_total_budget,
	COALESCE(ws.status, 'draft') AS workflow_status,
	ws.updated_at AS last_updated
FROM departments d
LEFT JOIN program_counts pc ON pc.department_id = d.id AND pc.academic_year_id = $1
LEFT JOIN workflow_statuses ws ON ws.department_id = d.id AND ws.academic_year_id = $1
GROUP BY d.id, d.name, ws.status, ws.updated_at
ORDER BY d.name`
	var summaries []models.ProgramSubmissionSummary
	if err := r.db.SelectContext(ctx, &summaries, query, academicYearID); err != nil {
		return nil, fmt.Errorf("summarise program counts: %w", err)
	}
	for i := range summaries {
		summaries[i].Submitted = summaries[i].Entries > 0
	}
	return summaries, nil
}
