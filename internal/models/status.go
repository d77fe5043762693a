package models

// WorkflowState is the department-and-year level stage of the approval pipeline.
type WorkflowState string

const (
	WorkflowStateDraft         WorkflowState = "draft"
	WorkflowStateSubmitted     WorkflowState = "submitted"
	WorkflowStateApproved      WorkflowState = "approved"
	WorkflowStateEventsPlanned WorkflowState = "events_planned"
	WorkflowStateCompleted     WorkflowState = "completed"
)

// Valid reports whether s is one of the known workflow states.
func (s WorkflowState) Valid() bool {
	switch s {
	case WorkflowStateDraft, WorkflowStateSubmitted, WorkflowStateApproved, WorkflowStateEventsPlanned, WorkflowStateCompleted:
		return true
	}
	return false
}

// DocumentStatus captures the review state of a single document version.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
	DocumentStatusDeleted  DocumentStatus = "deleted"
)

// Valid reports whether s is one of the known document statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusApproved, DocumentStatusRejected, DocumentStatusDeleted:
		return true
	}
	return false
}

// EventStatus tracks an event's lifecycle.
type EventStatus string

const (
	EventStatusPlanned   EventStatus = "planned"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPlanned, EventStatusOngoing, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// DocumentKind classifies uploaded files attached to an event.
type DocumentKind string

const (
	DocumentKindCompleteReport      DocumentKind = "complete_report"
	DocumentKindSupportingDocuments DocumentKind = "supporting_documents"
	DocumentKindEventProposal       DocumentKind = "event_proposal"
	DocumentKindBudgetDocument      DocumentKind = "budget_document"
	DocumentKindReceipt             DocumentKind = "receipt"
	DocumentKindOther               DocumentKind = "other"
)

// RequiredDocumentKinds must each have an approved latest version before an event is complete.
var RequiredDocumentKinds = []DocumentKind{
	DocumentKindCompleteReport,
	DocumentKindSupportingDocuments,
}

// Valid reports whether k is one of the known document kinds.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentKindCompleteReport, DocumentKindSupportingDocuments, DocumentKindEventProposal,
		DocumentKindBudgetDocument, DocumentKindReceipt, DocumentKindOther:
		return true
	}
	return false
}

// Required reports whether k counts toward event completion.
func (k DocumentKind) Required() bool {
	for _, required := range RequiredDocumentKinds {
		if k == required {
			return true
		}
	}
	return false
}
