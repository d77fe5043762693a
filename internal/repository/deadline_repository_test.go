package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

var (
	moduleDeadlineColumnNames   = []string{"id", "academic_year_id", "module", "deadline", "updated_by", "updated_at"}
	deadlineOverrideColumnNames = []string{"id", "department_id", "academic_year_id", "module", "enabled", "reason", "duration_hours", "expires_at", "created_by", "created_at"}
)

func TestDeadlineRepositoryUpsertDeadline(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeadlineRepository(db)

	due := time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (academic_year_id, module)")).
		WithArgs(sqlmock.AnyArg(), "year-1", models.ModuleProgramEntry, due, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(moduleDeadlineColumnNames).AddRow("dl-1", "year-1", "program_entry", due, nil, time.Now()))

	deadline := &models.ModuleDeadline{AcademicYearID: "year-1", Module: models.ModuleProgramEntry, Deadline: due}
	require.NoError(t, repo.UpsertDeadline(context.Background(), deadline))
	assert.Equal(t, "dl-1", deadline.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadlineRepositoryFindDeadlineMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeadlineRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM module_deadlines WHERE academic_year_id = $1 AND module = $2")).
		WithArgs("year-1", models.ModuleEventPlanning).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindDeadline(context.Background(), "year-1", models.ModuleEventPlanning)
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestDeadlineRepositoryListOverridesByYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeadlineRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM deadline_overrides WHERE academic_year_id = $1 ORDER BY created_at DESC")).
		WithArgs("year-1").
		WillReturnRows(sqlmock.NewRows(deadlineOverrideColumnNames).
			AddRow("ov-1", "dept-2", "year-1", "program_entry", true, "late budget", 24, now.Add(time.Hour), "principal-1", now))

	overrides, err := repo.ListOverrides(context.Background(), "year-1")
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, models.ModuleProgramEntry, overrides[0].Module)
	assert.Equal(t, models.OverrideActive, overrides[0].StatusAt(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadlineRepositoryExtendOverride(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeadlineRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SET expires_at = GREATEST(expires_at, $5) + make_interval(hours => $4)")).
		WithArgs("dept-2", "year-1", models.ModuleProgramEntry, 12, now).
		WillReturnRows(sqlmock.NewRows(deadlineOverrideColumnNames).
			AddRow("ov-1", "dept-2", "year-1", "program_entry", true, "late budget", 36, now.Add(12*time.Hour), "principal-1", now))

	override, err := repo.ExtendOverride(context.Background(), "dept-2", "year-1", models.ModuleProgramEntry, 12, now)
	require.NoError(t, err)
	assert.Equal(t, 36, override.DurationHours)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE deadline_overrides")).WillReturnError(sql.ErrNoRows)
	_, err = repo.ExtendOverride(context.Background(), "dept-9", "year-1", models.ModuleProgramEntry, 12, now)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadlineRepositoryDeleteOverrideMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeadlineRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deadline_overrides")).
		WithArgs("dept-2", "year-1", models.ModuleDocumentUpload).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteOverride(context.Background(), "dept-2", "year-1", models.ModuleDocumentUpload)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
