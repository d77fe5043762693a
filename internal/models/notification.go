package models

import "time"

// NotificationType enumerates the transitions that produce notifications.
type NotificationType string

const (
	NotificationDocumentUploaded      NotificationType = "document_uploaded"
	NotificationDocumentApproved      NotificationType = "document_approved"
	NotificationDocumentRejected      NotificationType = "document_rejected"
	NotificationDocumentDeleted       NotificationType = "document_deleted"
	NotificationWorkflowStatusChanged NotificationType = "workflow_status_changed"
	NotificationWorkflowCompleted     NotificationType = "workflow_completed"
	NotificationWorkflowReverted      NotificationType = "workflow_reverted"
	NotificationBudgetSubmitted       NotificationType = "budget_submitted"
	NotificationDeadlineOverride      NotificationType = "deadline_override"
)

// Notification is an in-app inbox entry.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationContext carries the values used to compose a notification.
type NotificationContext struct {
	DepartmentID   string `json:"department_id,omitempty"`
	AcademicYearID string `json:"academic_year_id,omitempty"`
	EventID        string `json:"event_id,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	DocumentKind   string `json:"document_kind,omitempty"`
	Module         string `json:"module,omitempty"`
	PreviousStatus string `json:"previous_status,omitempty"`
	NewStatus      string `json:"new_status,omitempty"`
	Reason         string `json:"reason,omitempty"`
	ActorID        string `json:"actor_id,omitempty"`
}

// NotificationRecipients selects who receives a notification. Users are matched by id, and by
// role when Roles is set. DepartmentID narrows the head-of-department role to one department.
type NotificationRecipients struct {
	UserIDs      []string   `json:"user_ids,omitempty"`
	Roles        []UserRole `json:"roles,omitempty"`
	DepartmentID string     `json:"department_id,omitempty"`
}

// Empty reports whether no recipient selector is set.
func (r NotificationRecipients) Empty() bool {
	return len(r.UserIDs) == 0 && len(r.Roles) == 0
}
