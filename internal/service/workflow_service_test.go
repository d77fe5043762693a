package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/dto"
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

type memCacheRepo struct {
	values   map[string][]byte
	deleted  []string
	patterns []string
	getErr   error
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{values: map[string][]byte{}}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

type countingWorkflows struct {
	memWorkflows
	getOrCreateCalls int
	afterRead        func()
}

func (c *countingWorkflows) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	c.getOrCreateCalls++
	ws, err := c.memWorkflows.GetOrCreate(ctx, exec, departmentID, academicYearID)
	if hook := c.afterRead; hook != nil {
		c.afterRead = nil
		hook()
	}
	return ws, err
}

func newWorkflowFixture(t *testing.T) (*WorkflowService, *memWorld, *countingWorkflows, *memCacheRepo, *recordingNotifier, *auditRecorder) {
	t.Helper()
	world := newMemWorld()
	repo := &countingWorkflows{memWorkflows: memWorkflows{world}}
	cacheRepo := newMemCacheRepo()
	cache := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	notifier := &recordingNotifier{result: true}
	audit := &auditRecorder{}
	svc := NewWorkflowService(repo, cache, time.Minute, notifier, audit, nil, zap.NewNop())
	return svc, world, repo, cacheRepo, notifier, audit
}

func TestWorkflowGetCreatesDraftLazily(t *testing.T) {
	svc, world, repo, _, _, _ := newWorkflowFixture(t)

	ws, err := svc.Get(context.Background(), "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateDraft, ws.Status)
	assert.Equal(t, models.WorkflowStateDraft, world.workflowStatus("dept-2", "year-1"))
	assert.Equal(t, 1, repo.getOrCreateCalls)

	again, err := svc.Get(context.Background(), "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, again.ID)
	assert.Equal(t, 1, repo.getOrCreateCalls, "second read is served from cache")
}

func TestWorkflowGetDoesNotCacheRowInvalidatedMidRead(t *testing.T) {
	svc, world, repo, cacheRepo, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateCompleted)
	repo.afterRead = func() {
		world.setWorkflow("dept-2", "year-1", models.WorkflowStateEventsPlanned)
		svc.InvalidateStatus(ctx, "dept-2", "year-1")
	}

	stale, err := svc.Get(ctx, "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateCompleted, stale.Status)
	assert.NotContains(t, cacheRepo.values, WorkflowStatusCacheKey("dept-2", "year-1"))

	fresh, err := svc.Get(ctx, "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateEventsPlanned, fresh.Status)
	assert.Equal(t, 2, repo.getOrCreateCalls)

	_, err = svc.Get(ctx, "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.getOrCreateCalls, "reads after the invalidation are cached again")
}

func TestWorkflowGetFallsBackWhenCacheFails(t *testing.T) {
	svc, world, repo, cacheRepo, _, _ := newWorkflowFixture(t)
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateSubmitted)
	cacheRepo.getErr = errors.New("redis down")

	ws, err := svc.Get(context.Background(), "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateSubmitted, ws.Status)
	assert.Equal(t, 1, repo.getOrCreateCalls)
}

func TestWorkflowGetRequiresScope(t *testing.T) {
	svc, _, _, _, _, _ := newWorkflowFixture(t)
	_, err := svc.Get(context.Background(), "", "year-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestWorkflowSetOverwritesUnconditionally(t *testing.T) {
	svc, world, _, cacheRepo, notifier, audit := newWorkflowFixture(t)
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateCompleted)
	_, err := svc.Get(context.Background(), "dept-2", "year-1")
	require.NoError(t, err)

	ws, err := svc.Set(context.Background(), dto.SetWorkflowStatusRequest{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		Status:         models.WorkflowStateDraft,
	}, principalActor)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateDraft, ws.Status)
	require.NotNil(t, ws.UpdatedBy)
	assert.Equal(t, "principal-1", *ws.UpdatedBy)
	assert.Contains(t, cacheRepo.deleted, WorkflowStatusCacheKey("dept-2", "year-1"))

	require.Len(t, notifier.calls, 1)
	call := notifier.calls[0]
	assert.Equal(t, models.NotificationWorkflowStatusChanged, call.kind)
	assert.Equal(t, "completed", call.nctx.PreviousStatus)
	assert.Equal(t, "draft", call.nctx.NewStatus)
	assert.Equal(t, []string{models.AuditActionWorkflowSet}, audit.actions())

	fresh, err := svc.Get(context.Background(), "dept-2", "year-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateDraft, fresh.Status)
}

func TestWorkflowSetCreatesMissingRow(t *testing.T) {
	svc, world, _, _, notifier, _ := newWorkflowFixture(t)

	ws, err := svc.Set(context.Background(), dto.SetWorkflowStatusRequest{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		Status:         models.WorkflowStateSubmitted,
	}, hodActor)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateSubmitted, ws.Status)
	assert.Equal(t, models.WorkflowStateSubmitted, world.workflowStatus("dept-2", "year-1"))
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "", notifier.calls[0].nctx.PreviousStatus)
}

func TestWorkflowSetSameStatusSkipsNotification(t *testing.T) {
	svc, world, _, _, notifier, _ := newWorkflowFixture(t)
	world.setWorkflow("dept-2", "year-1", models.WorkflowStateApproved)

	_, err := svc.Set(context.Background(), dto.SetWorkflowStatusRequest{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		Status:         models.WorkflowStateApproved,
	}, adminActor)
	require.NoError(t, err)
	assert.Empty(t, notifier.calls)
}

func TestWorkflowSetNotificationFailureIsSwallowed(t *testing.T) {
	svc, world, _, _, notifier, _ := newWorkflowFixture(t)
	notifier.result = false

	ws, err := svc.Set(context.Background(), dto.SetWorkflowStatusRequest{
		DepartmentID:   "dept-2",
		AcademicYearID: "year-1",
		Status:         models.WorkflowStateEventsPlanned,
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStateEventsPlanned, ws.Status)
	assert.Equal(t, models.WorkflowStateEventsPlanned, world.workflowStatus("dept-2", "year-1"))
}

func TestWorkflowSetValidation(t *testing.T) {
	svc, _, _, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, dto.SetWorkflowStatusRequest{DepartmentID: "dept-2", AcademicYearID: "year-1", Status: "archived"}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Set(ctx, dto.SetWorkflowStatusRequest{AcademicYearID: "year-1", Status: models.WorkflowStateDraft}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Set(ctx, dto.SetWorkflowStatusRequest{DepartmentID: "dept-2", AcademicYearID: "year-1", Status: models.WorkflowStateDraft}, otherHodActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
