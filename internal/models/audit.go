package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionDocumentUpload  = "DOCUMENT_UPLOAD"
	AuditActionDocumentApprove = "DOCUMENT_APPROVE"
	AuditActionDocumentReject  = "DOCUMENT_REJECT"
	AuditActionDocumentDelete  = "DOCUMENT_DELETE"
	AuditActionWorkflowSet     = "WORKFLOW_STATUS_SET"
	AuditActionEventCreate     = "EVENT_CREATE"
	AuditActionEventStatus     = "EVENT_STATUS_UPDATE"
	AuditActionConsistencyFix  = "CONSISTENCY_REPAIR"
	AuditActionSweepRequest    = "CONSISTENCY_SWEEP"
	AuditActionDocumentRead    = "DOCUMENT_DOWNLOAD"
	AuditActionProgramSubmit   = "PROGRAM_COUNTS_SUBMIT"
	AuditActionProgramRemarks  = "PROGRAM_COUNTS_REMARKS"
	AuditActionDeadlineSet     = "MODULE_DEADLINE_SET"
	AuditActionOverrideGrant   = "DEADLINE_OVERRIDE_GRANT"
	AuditActionOverrideRevoke  = "DEADLINE_OVERRIDE_REVOKE"
	AuditActionRemarkSave      = "YEAR_REMARK_SAVE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
