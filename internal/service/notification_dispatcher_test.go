package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/jobs"
	"github.com/noah-isme/academic-approval-api/pkg/mailer"
)

type stubQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestNotificationDispatcherEnqueues(t *testing.T) {
	queue := &stubQueue{}
	d := NewNotificationDispatcher(queue, true, NewMetricsService(), zap.NewNop())

	ok := d.Notify(context.Background(), models.NotificationDocumentApproved,
		models.NotificationRecipients{UserIDs: []string{"hod-1"}},
		models.NotificationContext{DocumentID: "D1"})
	require.True(t, ok)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, NotificationJobType, queue.jobs[0].Type)
	payload, isJob := queue.jobs[0].Payload.(NotificationJob)
	require.True(t, isJob)
	assert.Equal(t, models.NotificationDocumentApproved, payload.Kind)
	assert.Equal(t, "D1", payload.Context.DocumentID)
}

func TestNotificationDispatcherNeverFails(t *testing.T) {
	recipients := models.NotificationRecipients{Roles: []models.UserRole{models.RolePrincipal}}
	ctx := context.Background()

	full := NewNotificationDispatcher(&stubQueue{err: jobs.ErrQueueFull}, true, NewMetricsService(), zap.NewNop())
	assert.False(t, full.Notify(ctx, models.NotificationDocumentUploaded, recipients, models.NotificationContext{}))

	disabled := NewNotificationDispatcher(&stubQueue{}, false, nil, nil)
	assert.False(t, disabled.Notify(ctx, models.NotificationDocumentUploaded, recipients, models.NotificationContext{}))

	queue := &stubQueue{}
	nobody := NewNotificationDispatcher(queue, true, nil, nil)
	assert.False(t, nobody.Notify(ctx, models.NotificationDocumentUploaded, models.NotificationRecipients{}, models.NotificationContext{}))
	assert.Empty(t, queue.jobs)

	var unset *NotificationDispatcher
	assert.False(t, unset.Notify(ctx, models.NotificationDocumentUploaded, recipients, models.NotificationContext{}))
}

type stubRecipients struct {
	byID   map[string]models.User
	byRole []models.User
	err    error
	roles  []models.UserRole
	dept   string
}

func (s *stubRecipients) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.User
	for _, id := range ids {
		if user, ok := s.byID[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *stubRecipients) ListByRoles(ctx context.Context, roles []models.UserRole, departmentID string) ([]models.User, error) {
	s.roles = roles
	s.dept = departmentID
	return s.byRole, s.err
}

type stubInbox struct {
	items []models.Notification
	err   error
}

func (s *stubInbox) CreateBatch(ctx context.Context, items []models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, items...)
	return nil
}

type stubMailer struct {
	configured bool
	sent       []mailer.Message
	err        error
}

func (s *stubMailer) IsConfigured() bool { return s.configured }

func (s *stubMailer) Send(msg mailer.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func notificationJob(kind models.NotificationType, recipients models.NotificationRecipients, nctx models.NotificationContext) jobs.Job {
	return jobs.Job{ID: "job-1", Type: NotificationJobType, Payload: NotificationJob{Kind: kind, Recipients: recipients, Context: nctx}}
}

func TestNotificationWorkerDeliversToInboxAndEmail(t *testing.T) {
	hod := models.User{ID: "hod-1", Email: "hod@example.edu", Role: models.RoleHOD}
	principal := models.User{ID: "principal-1", Email: "principal@example.edu", Role: models.RolePrincipal}
	users := &stubRecipients{
		byID:   map[string]models.User{"hod-1": hod},
		byRole: []models.User{hod, principal},
	}
	inbox := &stubInbox{}
	mail := &stubMailer{configured: true}
	w := NewNotificationWorker(users, inbox, mail, newTestDirectory(), "https://portal.example.edu/", NewMetricsService(), zap.NewNop())

	job := notificationJob(models.NotificationWorkflowCompleted, models.NotificationRecipients{
		UserIDs:      []string{"hod-1"},
		Roles:        []models.UserRole{models.RoleHOD, models.RolePrincipal},
		DepartmentID: "dept-2",
	}, models.NotificationContext{DepartmentID: "dept-2", AcademicYearID: "year-1"})

	require.NoError(t, w.Handle(context.Background(), job))
	require.Len(t, inbox.items, 2, "recipients are deduplicated")
	assert.Equal(t, "hod-1", inbox.items[0].UserID)
	assert.Equal(t, "principal-1", inbox.items[1].UserID)
	assert.Equal(t, "Academic year completed", inbox.items[0].Title)
	assert.Contains(t, inbox.items[0].Message, "Physics 2024-2025")
	assert.Equal(t, "dept-2", users.dept)

	require.Len(t, mail.sent, 2)
	assert.Equal(t, []string{"hod@example.edu"}, mail.sent[0].To)
	assert.Contains(t, mail.sent[0].Body, "https://portal.example.edu")
}

func TestNotificationWorkerFailureModes(t *testing.T) {
	hod := models.User{ID: "hod-1", Email: "hod@example.edu"}
	recipients := models.NotificationRecipients{UserIDs: []string{"hod-1"}}
	nctx := models.NotificationContext{DepartmentID: "dept-x", AcademicYearID: "year-x", DocumentKind: "complete_report", Reason: "blurry scan"}
	ctx := context.Background()

	t.Run("email failure is logged only", func(t *testing.T) {
		inbox := &stubInbox{}
		mail := &stubMailer{configured: true, err: errors.New("relay refused")}
		w := NewNotificationWorker(&stubRecipients{byID: map[string]models.User{"hod-1": hod}}, inbox, mail, nil, "", nil, nil)
		require.NoError(t, w.Handle(ctx, notificationJob(models.NotificationDocumentRejected, recipients, nctx)))
		require.Len(t, inbox.items, 1)
		assert.Equal(t, "Your complete report for dept-x year-x was rejected: blurry scan", inbox.items[0].Message)
	})

	t.Run("inbox failure is retried", func(t *testing.T) {
		inbox := &stubInbox{err: errors.New("connection reset")}
		w := NewNotificationWorker(&stubRecipients{byID: map[string]models.User{"hod-1": hod}}, inbox, nil, nil, "", nil, nil)
		err := w.Handle(ctx, notificationJob(models.NotificationDocumentRejected, recipients, nctx))
		assert.True(t, appErrors.Is(err, appErrors.ErrDispatchFailure))
	})

	t.Run("lookup failure is retried", func(t *testing.T) {
		w := NewNotificationWorker(&stubRecipients{err: errors.New("timeout")}, &stubInbox{}, nil, nil, "", nil, nil)
		assert.Error(t, w.Handle(ctx, notificationJob(models.NotificationDocumentRejected, recipients, nctx)))
	})

	t.Run("unknown payload is dropped", func(t *testing.T) {
		inbox := &stubInbox{}
		w := NewNotificationWorker(&stubRecipients{}, inbox, nil, nil, "", nil, nil)
		assert.NoError(t, w.Handle(ctx, jobs.Job{ID: "job-2", Type: NotificationJobType, Payload: "garbage"}))
		assert.Empty(t, inbox.items)
	})

	t.Run("unconfigured mailer is skipped", func(t *testing.T) {
		mail := &stubMailer{}
		w := NewNotificationWorker(&stubRecipients{byID: map[string]models.User{"hod-1": hod}}, &stubInbox{}, mail, nil, "", nil, nil)
		require.NoError(t, w.Handle(ctx, notificationJob(models.NotificationDocumentDeleted, recipients, nctx)))
		assert.Empty(t, mail.sent)
	})
}

func TestNotificationWorkerDeadLetterLogsAndCounts(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	metrics := NewMetricsService()
	w := NewNotificationWorker(&stubRecipients{}, &stubInbox{}, nil, nil, "", metrics, zap.New(core))

	job := notificationJob(models.NotificationWorkflowReverted, models.NotificationRecipients{UserIDs: []string{"hod-1"}},
		models.NotificationContext{DepartmentID: "dept-2", AcademicYearID: "year-1"})
	job.Attempt = 4
	w.DeadLetter(job, errors.New("inbox unavailable"))

	entries := logs.FilterMessage("notification dropped").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(models.NotificationWorkflowReverted), fields["type"])
	assert.Equal(t, "dept-2", fields["department_id"])
	assert.EqualValues(t, 4, fields["attempts"])
}
