package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

func newReconcilerFixture() (*Reconciler, *memWorld) {
	world := newMemWorld()
	evaluator := NewCompletionEvaluator(memEvents{world}, memDocs{world})
	return NewReconciler(memEvents{world}, memWorkflows{world}, evaluator, NewMetricsService(), zap.NewNop()), world
}

func approveAll(world *memWorld, eventID string) {
	world.addDoc(eventID+"-report", eventID, models.DocumentKindCompleteReport, models.DocumentStatusApproved)
	world.addDoc(eventID+"-support", eventID, models.DocumentKindSupportingDocuments, models.DocumentStatusApproved)
}

func TestReconcileForwardCompletesYear(t *testing.T) {
	r, world := newReconcilerFixture()
	world.addEvent("E1", "dept-2", "year-1")
	world.addEvent("E2", "dept-2", "year-1")
	world.addEvent("E3", "dept-3", "year-1")
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateEventsPlanned)
	approveAll(world, "E1")
	approveAll(world, "E2")

	result, err := r.ReconcileForward(context.Background(), nil, "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2"}, result.PromotedEventIDs)
	assert.Equal(t, models.WorkflowStateEventsPlanned, result.PreviousStatus)
	assert.Equal(t, models.WorkflowStateCompleted, result.Status)
	assert.True(t, result.WorkflowChanged())
	assert.Equal(t, models.EventStatusCompleted, world.events["E1"].Status)
	assert.Equal(t, models.EventStatusCompleted, world.events["E2"].Status)
	assert.Equal(t, models.EventStatusPlanned, world.events["E3"].Status, "other departments are untouched")
	assert.Equal(t, models.WorkflowStateCompleted, world.workflowStatus("dept-2", "year-1"))
}

func TestReconcileForwardLeavesIncompleteYear(t *testing.T) {
	r, world := newReconcilerFixture()
	world.addEvent("E1", "dept-2", "year-1")
	world.addEvent("E2", "dept-2", "year-1")
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateApproved)
	approveAll(world, "E1")
	world.addDoc("E2-report", "E2", models.DocumentKindCompleteReport, models.DocumentStatusApproved)

	result, err := r.ReconcileForward(context.Background(), nil, "dept-2", "year-1")
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Equal(t, []string{"E2"}, result.IncompleteEventIDs)
	assert.Equal(t, models.EventStatusPlanned, world.events["E1"].Status, "no event is completed while the year is incomplete")
	assert.Equal(t, models.WorkflowStateApproved, world.workflowStatus("dept-2", "year-1"))
}

func TestReconcileForwardWithoutEvents(t *testing.T) {
	r, world := newReconcilerFixture()

	result, err := r.ReconcileForward(context.Background(), nil, "dept-2", "year-1")
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Equal(t, models.WorkflowStateDraft, world.workflowStatus("dept-2", "year-1"))
}

func TestReconcileForwardCountsCancelledEvents(t *testing.T) {
	r, world := newReconcilerFixture()
	world.addEvent("E1", "dept-2", "year-1")
	world.addEvent("E2", "dept-2", "year-1")
	cancelled := world.events["E2"]
	cancelled.Status = models.EventStatusCancelled
	world.events["E2"] = cancelled
	approveAll(world, "E1")

	result, err := r.ReconcileForward(context.Background(), nil, "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"E2"}, result.IncompleteEventIDs)
	assert.Equal(t, models.WorkflowStateDraft, world.workflowStatus("dept-2", "year-1"))
}

func TestReconcileForwardAlreadyCompleted(t *testing.T) {
	r, world := newReconcilerFixture()
	world.addEvent("E1", "dept-2", "year-1")
	approveAll(world, "E1")
	done := world.events["E1"]
	done.Status = models.EventStatusCompleted
	world.events["E1"] = done
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateCompleted)

	result, err := r.ReconcileForward(context.Background(), nil, "dept-2", "year-1")
	require.NoError(t, err)
	assert.False(t, result.Changed())
}

func TestReconcileForwardStoreFailure(t *testing.T) {
	r, world := newReconcilerFixture()
	world.addEvent("E1", "dept-2", "year-1")
	approveAll(world, "E1")
	world.failMarkCompleted = errors.New("deadlock detected")

	_, err := r.ReconcileForward(context.Background(), nil, "dept-2", "year-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestReconcileBackwardRevertsYear(t *testing.T) {
	r, world := newReconcilerFixture()
	for _, id := range []string{"E1", "E2"} {
		world.addEvent(id, "dept-2", "year-1")
		event := world.events[id]
		event.Status = models.EventStatusCompleted
		world.events[id] = event
	}
	world.addEvent("E3", "dept-2", "year-1")
	ongoing := world.events["E3"]
	ongoing.Status = models.EventStatusOngoing
	world.events["E3"] = ongoing
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateCompleted)

	result, err := r.ReconcileBackward(context.Background(), nil, "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2"}, result.RevertedEventIDs)
	assert.Equal(t, models.WorkflowStateEventsPlanned, result.Status)
	assert.Equal(t, models.EventStatusPlanned, world.events["E1"].Status)
	assert.Equal(t, models.EventStatusOngoing, world.events["E3"].Status)
	assert.Equal(t, models.WorkflowStateEventsPlanned, world.workflowStatus("dept-2", "year-1"))
}

func TestReconcileBackwardKeepsNonCompletedWorkflow(t *testing.T) {
	r, world := newReconcilerFixture()
	world.addEvent("E1", "dept-2", "year-1")
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateSubmitted)

	result, err := r.ReconcileBackward(context.Background(), nil, "dept-2", "year-1")
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Equal(t, models.WorkflowStateSubmitted, world.workflowStatus("dept-2", "year-1"))
}

func TestReconcileAnnouncer(t *testing.T) {
	notifier := &recordingNotifier{result: true}
	invalidator := &recordingInvalidator{}
	announcer := reconcileAnnouncer{notifier: notifier, workflows: invalidator, logger: zap.NewNop()}
	ctx := context.Background()

	announcer.announce(ctx, ReconcileResult{DepartmentID: "dept-2", AcademicYearID: "year-1", PreviousStatus: models.WorkflowStateDraft, Status: models.WorkflowStateDraft}, principalActor)
	assert.Empty(t, notifier.calls)
	assert.Empty(t, invalidator.scopes)

	announcer.announce(ctx, ReconcileResult{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		PreviousStatus: models.WorkflowStateEventsPlanned,
		Status:         models.WorkflowStateCompleted,
	}, principalActor)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, models.NotificationWorkflowCompleted, notifier.calls[0].kind)
	assert.Equal(t, "dept-2", notifier.calls[0].recipients.DepartmentID)
	assert.Equal(t, "principal-1", notifier.calls[0].nctx.ActorID)
	assert.Equal(t, []string{scopeKey("dept-2", "year-1")}, invalidator.scopes)

	announcer.announce(ctx, ReconcileResult{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		PreviousStatus: models.WorkflowStateCompleted,
		Status:         models.WorkflowStateEventsPlanned,
	}, nil)
	require.Len(t, notifier.calls, 2)
	assert.Equal(t, models.NotificationWorkflowReverted, notifier.calls[1].kind)
}
