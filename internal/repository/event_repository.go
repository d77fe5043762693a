package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

const eventColumns = `id, department_id, academic_year_id, title, description, event_date, budget_amount,
coordinator_name, coordinator_contact, status, created_by, created_at, updated_at`

// DepartmentYear identifies the scope a workflow status and its events belong to.
type DepartmentYear struct {
	DepartmentID   string `db:"department_id"`
	AcademicYearID string `db:"academic_year_id"`
}

// EventRepository persists departmental events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = models.EventStatusPlanned
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `
INSERT INTO events (id, department_id, academic_year_id, title, description, event_date, budget_amount,
	coordinator_name, coordinator_contact, status, created_by, created_at, updated_at)
VALUES (:id, :department_id, :academic_year_id, :title, :description, :event_date, :budget_amount,
	:coordinator_name, :coordinator_contact, :status, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// FindByID returns an event. sql.ErrNoRows is returned unwrapped when absent.
func (r *EventRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var event models.Event
	if err := sqlx.GetContext(ctx, r.exec(exec), &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &event, nil
}

// ListByDepartmentYear returns every event of a (department, academic year).
func (r *EventRepository) ListByDepartmentYear(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE department_id = $1 AND academic_year_id = $2 ORDER BY created_at ASC`
	var events []models.Event
	if err := sqlx.SelectContext(ctx, r.exec(exec), &events, query, departmentID, academicYearID); err != nil {
		return nil, fmt.Errorf("list events by department year: %w", err)
	}
	return events, nil
}

// MarkCompleted moves the given events to completed, skipping those already completed.
// It returns the ids that actually changed.
func (r *EventRepository) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, ids []string, at time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `UPDATE events SET status = 'completed', updated_at = $2 WHERE id = ANY($1) AND status <> 'completed' RETURNING id`
	var changed []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &changed, query, pq.Array(ids), at); err != nil {
		return nil, fmt.Errorf("mark events completed: %w", err)
	}
	return changed, nil
}

// RevertCompleted moves every completed event of the scope back to planned and returns their ids.
func (r *EventRepository) RevertCompleted(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, at time.Time) ([]string, error) {
	const query = `UPDATE events SET status = 'planned', updated_at = $3
WHERE department_id = $1 AND academic_year_id = $2 AND status = 'completed' RETURNING id`
	var reverted []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &reverted, query, departmentID, academicYearID, at); err != nil {
		return nil, fmt.Errorf("revert completed events: %w", err)
	}
	return reverted, nil
}

// UpdateStatus overwrites the status of a single event.
func (r *EventRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EventStatus, at time.Time) error {
	const query = `UPDATE events SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns events matching filter along with the total count.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	baseQuery := `FROM events WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY event_date ASC NULLS LAST, created_at ASC LIMIT %d OFFSET %d", eventColumns, baseQuery, pageSize, offset)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// ListDepartmentYears returns every (department, academic year) that has at least one event.
func (r *EventRepository) ListDepartmentYears(ctx context.Context) ([]DepartmentYear, error) {
	const query = `SELECT DISTINCT department_id, academic_year_id FROM events ORDER BY department_id, academic_year_id`
	var scopes []DepartmentYear
	if err := r.db.SelectContext(ctx, &scopes, query); err != nil {
		return nil, fmt.Errorf("list event scopes: %w", err)
	}
	return scopes, nil
}
