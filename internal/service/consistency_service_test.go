package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

type consistencyFixture struct {
	svc         *ConsistencyService
	world       *memWorld
	tx          *memTx
	notifier    *recordingNotifier
	invalidator *recordingInvalidator
	audit       *auditRecorder
}

func newConsistencyFixture() *consistencyFixture {
	world := newMemWorld()
	fx := &consistencyFixture{
		world:       world,
		tx:          &memTx{world: world},
		notifier:    &recordingNotifier{result: true},
		invalidator: &recordingInvalidator{},
		audit:       &auditRecorder{},
	}
	evaluator := NewCompletionEvaluator(memEvents{world}, memDocs{world})
	metrics := NewMetricsService()
	reconciler := NewReconciler(memEvents{world}, memWorkflows{world}, evaluator, metrics, zap.NewNop())
	fx.svc = NewConsistencyService(memEvents{world}, memWorkflows{world}, evaluator, reconciler, fx.tx, fx.notifier, fx.invalidator, fx.audit, metrics, zap.NewNop())
	return fx
}

func (fx *consistencyFixture) markCompleted(ids ...string) {
	for _, id := range ids {
		event := fx.world.events[id]
		event.Status = models.EventStatusCompleted
		fx.world.events[id] = event
	}
}

// seedDrift builds three scopes: dept-2 claims completion without approvals, dept-3 is fully
// approved but never promoted and dept-4 is consistent.
func (fx *consistencyFixture) seedDrift() {
	fx.world.addEvent("E1", "dept-2", "year-1")
	fx.world.addEvent("E2", "dept-2", "year-1")
	fx.world.addDoc("E1-report", "E1", models.DocumentKindCompleteReport, models.DocumentStatusApproved)
	fx.markCompleted("E1", "E2")
	fx.world.setWorkflow("dept-2", "year-1", models.WorkflowStateCompleted)

	fx.world.addEvent("E3", "dept-3", "year-1")
	fx.world.addDoc("E3-report", "E3", models.DocumentKindCompleteReport, models.DocumentStatusApproved)
	fx.world.addDoc("E3-support", "E3", models.DocumentKindSupportingDocuments, models.DocumentStatusApproved)
	fx.world.setWorkflow("dept-3", "year-1", models.WorkflowStateEventsPlanned)

	fx.world.addEvent("E4", "dept-4", "year-1")
	fx.world.setWorkflow("dept-4", "year-1", models.WorkflowStateEventsPlanned)
}

func TestConsistencySweepDetectsWithoutRepair(t *testing.T) {
	fx := newConsistencyFixture()
	fx.seedDrift()

	report, err := fx.svc.Sweep(context.Background(), false, adminActor)
	require.NoError(t, err)
	assert.Equal(t, 3, report.ScopesChecked)
	require.Len(t, report.Findings, 2)

	invalid := report.Findings[0]
	assert.Equal(t, "dept-2", invalid.DepartmentID)
	assert.Equal(t, []string{"E1", "E2"}, invalid.InvalidCompletedEvents)
	assert.True(t, invalid.WorkflowInvalid)
	assert.False(t, invalid.Repaired)

	promotable := report.Findings[1]
	assert.Equal(t, "dept-3", promotable.DepartmentID)
	assert.True(t, promotable.Promotable)

	assert.Equal(t, models.WorkflowStateCompleted, fx.world.workflowStatus("dept-2", "year-1"))
	assert.Zero(t, fx.tx.commits)
	assert.Empty(t, fx.notifier.calls)
}

func TestConsistencySweepRepairs(t *testing.T) {
	fx := newConsistencyFixture()
	fx.seedDrift()

	report, err := fx.svc.Sweep(context.Background(), true, adminActor)
	require.NoError(t, err)
	require.Len(t, report.Findings, 2)
	for _, finding := range report.Findings {
		assert.True(t, finding.Repaired, finding.DepartmentID)
		assert.Empty(t, finding.Error)
	}

	assert.Equal(t, models.WorkflowStateEventsPlanned, fx.world.workflowStatus("dept-2", "year-1"))
	assert.Equal(t, models.EventStatusPlanned, fx.world.events["E1"].Status)
	assert.Equal(t, models.EventStatusPlanned, fx.world.events["E2"].Status)

	assert.Equal(t, models.WorkflowStateCompleted, fx.world.workflowStatus("dept-3", "year-1"))
	assert.Equal(t, models.EventStatusCompleted, fx.world.events["E3"].Status)

	assert.Equal(t, models.WorkflowStateEventsPlanned, fx.world.workflowStatus("dept-4", "year-1"))
	assert.Equal(t, 2, fx.tx.commits)
	assert.Equal(t, []string{models.AuditActionConsistencyFix, models.AuditActionConsistencyFix}, fx.audit.actions())
	assert.ElementsMatch(t, []models.NotificationType{models.NotificationWorkflowReverted, models.NotificationWorkflowCompleted}, fx.notifier.kinds())
	assert.ElementsMatch(t, []string{scopeKey("dept-2", "year-1"), scopeKey("dept-3", "year-1")}, fx.invalidator.scopes)

	again, err := fx.svc.Sweep(context.Background(), true, adminActor)
	require.NoError(t, err)
	assert.Empty(t, again.Findings)
}

func TestConsistencySweepSkipsScopeResolvedBeforeRepair(t *testing.T) {
	fx := newConsistencyFixture()
	fx.world.addEvent("E1", "dept-2", "year-1")
	fx.world.addEvent("E2", "dept-2", "year-1")
	fx.world.addDoc("E1-report", "E1", models.DocumentKindCompleteReport, models.DocumentStatusApproved)
	fx.markCompleted("E1", "E2")
	fx.world.setWorkflow("dept-2", "year-1", models.WorkflowStateCompleted)
	fx.tx.beforeTx = func() {
		fx.world.addDoc("E1-support", "E1", models.DocumentKindSupportingDocuments, models.DocumentStatusApproved)
		fx.world.addDoc("E2-report", "E2", models.DocumentKindCompleteReport, models.DocumentStatusApproved)
		fx.world.addDoc("E2-support", "E2", models.DocumentKindSupportingDocuments, models.DocumentStatusApproved)
	}

	report, err := fx.svc.Sweep(context.Background(), true, adminActor)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.True(t, report.Findings[0].WorkflowInvalid, "the unlocked inspection saw the drift")
	assert.False(t, report.Findings[0].Repaired)
	assert.Empty(t, report.Findings[0].Error)

	assert.Equal(t, models.WorkflowStateCompleted, fx.world.workflowStatus("dept-2", "year-1"))
	assert.Equal(t, models.EventStatusCompleted, fx.world.events["E1"].Status)
	assert.Equal(t, models.EventStatusCompleted, fx.world.events["E2"].Status)
	assert.Equal(t, 1, fx.tx.commits)
	assert.Empty(t, fx.audit.logs)
	assert.Empty(t, fx.notifier.calls)
	assert.Empty(t, fx.invalidator.scopes)
}

func TestConsistencySweepRecordsRepairFailure(t *testing.T) {
	fx := newConsistencyFixture()
	fx.seedDrift()
	fx.world.failRevert = assert.AnError

	report, err := fx.svc.Sweep(context.Background(), true, adminActor)
	require.NoError(t, err)
	require.Len(t, report.Findings, 2)
	assert.False(t, report.Findings[0].Repaired)
	assert.NotEmpty(t, report.Findings[0].Error)
	assert.True(t, report.Findings[1].Repaired)
	assert.Equal(t, models.WorkflowStateCompleted, fx.world.workflowStatus("dept-2", "year-1"))
	assert.Equal(t, 1, fx.tx.rollbacks)
}

func TestConsistencySweepHonoursCancellation(t *testing.T) {
	fx := newConsistencyFixture()
	fx.seedDrift()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.svc.Sweep(ctx, false, adminActor)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepReportTable(t *testing.T) {
	report := &SweepReport{
		ScopesChecked: 2,
		Findings: []ScopeFinding{{
			DepartmentID:           "dept-2",
			AcademicYearID:         "year-1",
			WorkflowStatus:         models.WorkflowStateCompleted,
			InvalidCompletedEvents: []string{"ev-1", "ev-2"},
			WorkflowInvalid:        true,
			Repaired:               true,
		}},
	}

	table := report.Table()
	require.Len(t, table.Rows, 1)
	assert.Len(t, table.Columns, 8)
	assert.Equal(t, []string{"dept-2", "year-1", "completed", "ev-1 ev-2", "true", "false", "true", ""}, table.Rows[0])
	assert.Contains(t, table.Title, "scopes=2")
}
