package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/jobs"
	"github.com/noah-isme/academic-approval-api/pkg/mailer"
	"github.com/noah-isme/academic-approval-api/pkg/middleware/requestid"
)

// NotificationJobType is the job type used on the dispatch queue.
const NotificationJobType = "notification"

// NotificationJob is the payload carried through the dispatch queue.
type NotificationJob struct {
	Kind       models.NotificationType
	Recipients models.NotificationRecipients
	Context    models.NotificationContext
	RequestID  string
}

type notifier interface {
	Notify(ctx context.Context, kind models.NotificationType, recipients models.NotificationRecipients, nctx models.NotificationContext) bool
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// NotificationDispatcher hands notifications to the background queue. It never returns an error
// to the caller: failures are logged and reported through the boolean result.
type NotificationDispatcher struct {
	queue   jobEnqueuer
	enabled bool
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationDispatcher constructs the dispatcher.
func NewNotificationDispatcher(queue jobEnqueuer, enabled bool, metrics *MetricsService, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationDispatcher{queue: queue, enabled: enabled, metrics: metrics, logger: logger}
}

// Notify enqueues a notification and reports whether it was accepted.
func (d *NotificationDispatcher) Notify(ctx context.Context, kind models.NotificationType, recipients models.NotificationRecipients, nctx models.NotificationContext) bool {
	if d == nil || !d.enabled || d.queue == nil {
		return false
	}
	if recipients.Empty() {
		d.logger.Debug("notification skipped without recipients", zap.String("type", string(kind)))
		return false
	}
	reqID := requestid.FromContext(ctx)
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: NotificationJobType,
		Payload: NotificationJob{
			Kind:       kind,
			Recipients: recipients,
			Context:    nctx,
			RequestID:  reqID,
		},
	}
	if err := d.queue.Enqueue(job); err != nil {
		d.metrics.RecordDispatch(string(kind), false)
		d.logger.Warn("notification dispatch failed",
			zap.String("type", string(kind)),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return false
	}
	d.metrics.RecordDispatch(string(kind), true)
	return true
}

type recipientDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListByRoles(ctx context.Context, roles []models.UserRole, departmentID string) ([]models.User, error)
}

type inboxWriter interface {
	CreateBatch(ctx context.Context, items []models.Notification) error
}

type mailSender interface {
	IsConfigured() bool
	Send(msg mailer.Message) error
}

type scopeNameResolver interface {
	FindDepartment(ctx context.Context, id string) (*models.Department, error)
	FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error)
}

// NotificationWorker delivers queued notifications to the in-app inbox and by email.
type NotificationWorker struct {
	users     recipientDirectory
	inbox     inboxWriter
	mail      mailSender
	directory scopeNameResolver
	appURL    string
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationWorker constructs the worker. mail and directory are optional.
func NewNotificationWorker(users recipientDirectory, inbox inboxWriter, mail mailSender, directory scopeNameResolver, appURL string, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		users:     users,
		inbox:     inbox,
		mail:      mail,
		directory: directory,
		appURL:    strings.TrimRight(appURL, "/"),
		metrics:   metrics,
		logger:    logger,
	}
}

// Handle processes one queued notification. Inbox failures are returned so the queue retries;
// email failures are only logged because the inbox rows already exist.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(NotificationJob)
	if !ok {
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	users, err := w.resolve(ctx, payload.Recipients)
	if err != nil {
		return fmt.Errorf("resolve notification recipients: %w", err)
	}
	if len(users) == 0 {
		w.logger.Debug("notification has no active recipients", zap.String("type", string(payload.Kind)))
		return nil
	}

	title, message := w.compose(ctx, payload.Kind, payload.Context)
	items := make([]models.Notification, 0, len(users))
	for _, user := range users {
		items = append(items, models.Notification{
			UserID:  user.ID,
			Type:    payload.Kind,
			Title:   title,
			Message: message,
		})
	}
	if err := w.inbox.CreateBatch(ctx, items); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDispatchFailure.Code, appErrors.ErrDispatchFailure.Status, "store notifications")
	}

	if w.mail == nil || !w.mail.IsConfigured() {
		return nil
	}
	body := message
	if w.appURL != "" {
		body = message + "\n\n" + w.appURL
	}
	for _, user := range users {
		if user.Email == "" {
			continue
		}
		if err := w.mail.Send(mailer.Message{To: []string{user.Email}, Subject: title, Body: body}); err != nil {
			w.metrics.RecordDispatch(string(payload.Kind)+"_email", false)
			w.logger.Warn("notification email failed",
				zap.String("type", string(payload.Kind)),
				zap.String("user_id", user.ID),
				zap.String("request_id", payload.RequestID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// DeadLetter records a notification the queue gave up on. The originating operation already
// succeeded, so the loss is only logged and counted.
func (w *NotificationWorker) DeadLetter(job jobs.Job, err error) {
	kind := job.Type
	fields := []zap.Field{zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err)}
	if payload, ok := job.Payload.(NotificationJob); ok {
		kind = string(payload.Kind)
		fields = append(fields,
			zap.String("request_id", payload.RequestID),
			zap.String("department_id", payload.Context.DepartmentID),
			zap.String("academic_year_id", payload.Context.AcademicYearID),
		)
	}
	w.metrics.RecordDispatch(kind, false)
	w.logger.Error("notification dropped", append(fields, zap.String("type", kind))...)
}

func (w *NotificationWorker) resolve(ctx context.Context, recipients models.NotificationRecipients) ([]models.User, error) {
	seen := make(map[string]struct{})
	var out []models.User
	add := func(users []models.User) {
		for _, user := range users {
			if _, ok := seen[user.ID]; ok {
				continue
			}
			seen[user.ID] = struct{}{}
			out = append(out, user)
		}
	}
	if len(recipients.UserIDs) > 0 {
		users, err := w.users.FindByIDs(ctx, recipients.UserIDs)
		if err != nil {
			return nil, err
		}
		add(users)
	}
	if len(recipients.Roles) > 0 {
		users, err := w.users.ListByRoles(ctx, recipients.Roles, recipients.DepartmentID)
		if err != nil {
			return nil, err
		}
		add(users)
	}
	return out, nil
}

func (w *NotificationWorker) compose(ctx context.Context, kind models.NotificationType, nctx models.NotificationContext) (string, string) {
	scope := w.scopeName(ctx, nctx.DepartmentID, nctx.AcademicYearID)
	kindLabel := strings.ReplaceAll(nctx.DocumentKind, "_", " ")
	switch kind {
	case models.NotificationDocumentUploaded:
		return "Document uploaded", fmt.Sprintf("A new %s was uploaded for %s and awaits review.", kindLabel, scope)
	case models.NotificationDocumentApproved:
		return "Document approved", fmt.Sprintf("Your %s for %s was approved.", kindLabel, scope)
	case models.NotificationDocumentRejected:
		return "Document rejected", fmt.Sprintf("Your %s for %s was rejected: %s", kindLabel, scope, nctx.Reason)
	case models.NotificationDocumentDeleted:
		return "Document deleted", fmt.Sprintf("A %s for %s was deleted.", kindLabel, scope)
	case models.NotificationWorkflowCompleted:
		return "Academic year completed", fmt.Sprintf("Every event of %s has all required documents approved.", scope)
	case models.NotificationWorkflowReverted:
		return "Academic year reopened", fmt.Sprintf("%s moved from %s back to %s and needs re-verification.", scope, nctx.PreviousStatus, nctx.NewStatus)
	case models.NotificationBudgetSubmitted:
		return "Budget proposal submitted", fmt.Sprintf("The budget proposal of %s was submitted and awaits principal approval.", scope)
	case models.NotificationDeadlineOverride:
		return "Deadline reopened", fmt.Sprintf("%s of %s is open again, %s.", strings.ReplaceAll(nctx.Module, "_", " "), scope, nctx.Reason)
	case models.NotificationWorkflowStatusChanged:
		return "Workflow status changed", fmt.Sprintf("%s moved from %s to %s.", scope, nctx.PreviousStatus, nctx.NewStatus)
	default:
		return "Notification", fmt.Sprintf("Update for %s.", scope)
	}
}

// scopeName renders "<department> <year>", falling back to ids when lookups fail.
func (w *NotificationWorker) scopeName(ctx context.Context, departmentID, academicYearID string) string {
	department := departmentID
	year := academicYearID
	if w.directory != nil {
		if departmentID != "" {
			if dept, err := w.directory.FindDepartment(ctx, departmentID); err == nil && dept != nil {
				department = dept.Name
			}
		}
		if academicYearID != "" {
			if ay, err := w.directory.FindAcademicYear(ctx, academicYearID); err == nil && ay != nil {
				year = ay.Year
			}
		}
	}
	return strings.TrimSpace(department + " " + year)
}
