package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

type stubDirectory struct {
	departments map[string]string
	years       map[string]string
}

func (d stubDirectory) FindDepartment(ctx context.Context, id string) (*models.Department, error) {
	name, ok := d.departments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.Department{ID: id, Name: name}, nil
}

func (d stubDirectory) FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	year, ok := d.years[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.AcademicYear{ID: id, Year: year, IsEnabled: true}, nil
}

func newTestDirectory() stubDirectory {
	return stubDirectory{
		departments: map[string]string{"dept-2": "Physics"},
		years:       map[string]string{"year-1": "2024-2025"},
	}
}

type eventFixture struct {
	world       *memWorld
	tx          *memTx
	notifier    *recordingNotifier
	invalidator *recordingInvalidator
}

func newEventFixtureWithGate(gate deadlineGate) (*EventService, *eventFixture, *auditRecorder) {
	world := newMemWorld()
	fx := &eventFixture{
		world:       world,
		tx:          &memTx{world: world},
		notifier:    &recordingNotifier{result: true},
		invalidator: &recordingInvalidator{},
	}
	audit := &auditRecorder{}
	evaluator := NewCompletionEvaluator(memEvents{world}, memDocs{world})
	reconciler := NewReconciler(memEvents{world}, memWorkflows{world}, evaluator, nil, zap.NewNop())
	svc := NewEventService(memEvents{world}, newTestDirectory(), evaluator, reconciler, fx.tx, gate,
		fx.notifier, fx.invalidator, audit, nil, zap.NewNop())
	return svc, fx, audit
}

func newEventFixture() (*EventService, *memWorld, *auditRecorder) {
	svc, fx, audit := newEventFixtureWithGate(nil)
	return svc, fx.world, audit
}

func TestEventServiceCreate(t *testing.T) {
	svc, world, audit := newEventFixture()

	event, err := svc.Create(context.Background(), dto.CreateEventRequest{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		Title:          "  Science Fair ",
		BudgetAmount:   1500,
	}, hodActor)
	require.NoError(t, err)
	assert.Equal(t, "Science Fair", event.Title)
	assert.Equal(t, models.EventStatusPlanned, event.Status)
	assert.Equal(t, "hod-1", event.CreatedBy)
	assert.Contains(t, world.events, event.ID)
	assert.Equal(t, []string{models.AuditActionEventCreate}, audit.actions())
}

func TestEventServiceCreateRejections(t *testing.T) {
	svc, _, _ := newEventFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateEventRequest{DepartmentID: "dept-2", AcademicYearID: "year-1"}, hodActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, dto.CreateEventRequest{DepartmentID: "dept-2", AcademicYearID: "year-1", Title: "Fair"}, otherHodActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(ctx, dto.CreateEventRequest{DepartmentID: "dept-2", AcademicYearID: "year-1", Title: "Fair"}, principalActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(ctx, dto.CreateEventRequest{DepartmentID: "dept-2", AcademicYearID: "year-7", Title: "Fair"}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEventServiceCreateReopensCompletedYear(t *testing.T) {
	svc, fx, _ := newEventFixtureWithGate(nil)
	fx.world.addEvent("E1", "dept-2", "year-1")
	fx.world.addDoc("E1-report", "E1", models.DocumentKindCompleteReport, models.DocumentStatusApproved)
	fx.world.addDoc("E1-supporting", "E1", models.DocumentKindSupportingDocuments, models.DocumentStatusApproved)
	fx.world.setWorkflow("dept-2", "year-1", models.WorkflowStateCompleted)
	e1 := fx.world.events["E1"]
	e1.Status = models.EventStatusCompleted
	fx.world.events["E1"] = e1

	event, err := svc.Create(context.Background(), dto.CreateEventRequest{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		Title:          "Alumni Talk",
	}, hodActor)
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStateEventsPlanned, fx.world.workflowStatus("dept-2", "year-1"))
	assert.Equal(t, models.EventStatusPlanned, fx.world.events["E1"].Status)
	assert.Equal(t, models.EventStatusPlanned, fx.world.events[event.ID].Status)
	assert.Equal(t, 1, fx.tx.commits)
	assert.Equal(t, []string{scopeKey("dept-2", "year-1")}, fx.invalidator.scopes)
	require.Equal(t, []models.NotificationType{models.NotificationWorkflowReverted}, fx.notifier.kinds())
	assert.Equal(t, string(models.WorkflowStateCompleted), fx.notifier.calls[0].nctx.PreviousStatus)
}

func TestEventServiceCreateLeavesOpenYearAlone(t *testing.T) {
	svc, fx, _ := newEventFixtureWithGate(nil)
	fx.world.addEvent("E1", "dept-2", "year-1")
	fx.world.setWorkflow("dept-2", "year-1", models.WorkflowStateApproved)

	_, err := svc.Create(context.Background(), dto.CreateEventRequest{DepartmentID: "dept-2", AcademicYearID: "year-1", Title: "Fair"}, hodActor)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateApproved, fx.world.workflowStatus("dept-2", "year-1"))
	assert.Empty(t, fx.notifier.calls)
	assert.Empty(t, fx.invalidator.scopes)
}

func TestEventServiceCreateBlockedAfterDeadline(t *testing.T) {
	gate := newDeadlineFixture()
	gate.store.deadlines[deadlineKey("year-1", models.ModuleEventPlanning)] = models.ModuleDeadline{
		AcademicYearID: "year-1",
		Module:         models.ModuleEventPlanning,
		Deadline:       gate.now.Add(-time.Hour),
	}
	svc, fx, _ := newEventFixtureWithGate(gate.svc)
	req := dto.CreateEventRequest{DepartmentID: "dept-2", AcademicYearID: "year-1", Title: "Late Fair"}

	_, err := svc.Create(context.Background(), req, hodActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrDeadlinePassed))
	assert.Empty(t, fx.world.events)
	assert.Zero(t, fx.tx.commits)

	_, err = svc.Create(context.Background(), req, adminActor)
	require.NoError(t, err)
	assert.Len(t, fx.world.events, 1)
}

func TestEventServiceUpdateStatus(t *testing.T) {
	svc, world, audit := newEventFixture()
	world.addEvent("E1", "dept-2", "year-1")
	ctx := context.Background()

	event, err := svc.UpdateStatus(ctx, "E1", dto.UpdateEventStatusRequest{Status: models.EventStatusOngoing}, hodActor)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusOngoing, event.Status)
	assert.Equal(t, models.EventStatusOngoing, world.events["E1"].Status)
	assert.Equal(t, []string{models.AuditActionEventStatus}, audit.actions())

	_, err = svc.UpdateStatus(ctx, "E1", dto.UpdateEventStatusRequest{Status: models.EventStatusOngoing}, hodActor)
	require.NoError(t, err)
	assert.Len(t, audit.logs, 1, "unchanged status is not audited")

	_, err = svc.UpdateStatus(ctx, "E1", dto.UpdateEventStatusRequest{Status: models.EventStatusCompleted}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	_, err = svc.UpdateStatus(ctx, "E1", dto.UpdateEventStatusRequest{Status: models.EventStatusCancelled}, otherHodActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.UpdateStatus(ctx, "missing", dto.UpdateEventStatusRequest{Status: models.EventStatusCancelled}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.UpdateStatus(ctx, "E1", dto.UpdateEventStatusRequest{Status: "postponed"}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	done := world.events["E1"]
	done.Status = models.EventStatusCompleted
	world.events["E1"] = done
	_, err = svc.UpdateStatus(ctx, "E1", dto.UpdateEventStatusRequest{Status: models.EventStatusCancelled}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
}

func TestEventServiceListAndCompletion(t *testing.T) {
	svc, world, _ := newEventFixture()
	world.addEvent("E1", "dept-2", "year-1")
	world.addEvent("E2", "dept-2", "year-1")
	world.addEvent("E3", "dept-3", "year-1")
	world.addDoc("D1", "E1", models.DocumentKindCompleteReport, models.DocumentStatusApproved)
	ctx := context.Background()

	events, page, err := svc.List(ctx, dto.EventListQuery{DepartmentID: "dept-2", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 2, page.TotalCount)

	_, _, err = svc.List(ctx, dto.EventListQuery{Status: "unknown"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	completion, err := svc.Completion(ctx, "E1")
	require.NoError(t, err)
	assert.False(t, completion.Complete)
	assert.Equal(t, []models.DocumentKind{models.DocumentKindSupportingDocuments}, completion.MissingKinds)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
