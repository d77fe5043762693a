package service

import (
	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

// Action names a capability checked before an operation runs.
type Action string

const (
	ActionDocumentUpload    Action = "document.upload"
	ActionDocumentApprove   Action = "document.approve"
	ActionDocumentReject    Action = "document.reject"
	ActionDocumentDelete    Action = "document.delete"
	ActionDocumentRead      Action = "document.read"
	ActionWorkflowRead      Action = "workflow.read"
	ActionWorkflowSet       Action = "workflow.set"
	ActionEventCreate       Action = "event.create"
	ActionEventUpdateStatus Action = "event.update_status"
	ActionEventRead         Action = "event.read"
	ActionConsistencySweep  Action = "consistency.sweep"
	ActionProgramSubmit     Action = "program.submit"
	ActionProgramRead       Action = "program.read"
	ActionProgramRemark     Action = "program.remark"
	ActionDeadlineRead      Action = "deadline.read"
	ActionDeadlineManage    Action = "deadline.manage"
	ActionDeadlineOverride  Action = "deadline.override"
	ActionDeadlineBypass    Action = "deadline.bypass"
	ActionRemarkRead        Action = "remark.read"
	ActionRemarkHOD         Action = "remark.hod"
	ActionRemarkPrincipal   Action = "remark.principal"
)

var allRoles = []models.UserRole{
	models.RoleAdmin,
	models.RolePrincipal,
	models.RolePAPrincipal,
	models.RoleDeanIQAC,
	models.RoleHOD,
}

var reviewerRoles = []models.UserRole{
	models.RolePrincipal,
	models.RolePAPrincipal,
	models.RoleDeanIQAC,
	models.RoleAdmin,
}

var principalRoles = []models.UserRole{
	models.RolePrincipal,
	models.RolePAPrincipal,
	models.RoleAdmin,
}

var capabilities = map[Action][]models.UserRole{
	ActionDocumentUpload:    {models.RoleHOD, models.RoleAdmin},
	ActionDocumentApprove:   reviewerRoles,
	ActionDocumentReject:    reviewerRoles,
	ActionDocumentDelete:    {models.RoleHOD, models.RolePrincipal, models.RoleAdmin},
	ActionDocumentRead:      allRoles,
	ActionWorkflowRead:      allRoles,
	ActionWorkflowSet:       {models.RoleHOD, models.RolePrincipal, models.RolePAPrincipal, models.RoleDeanIQAC, models.RoleAdmin},
	ActionEventCreate:       {models.RoleHOD, models.RoleAdmin},
	ActionEventUpdateStatus: {models.RoleHOD, models.RoleAdmin},
	ActionEventRead:         allRoles,
	ActionConsistencySweep:  {models.RoleAdmin},
	ActionProgramSubmit:     {models.RoleHOD, models.RoleAdmin},
	ActionProgramRead:       allRoles,
	ActionProgramRemark:     principalRoles,
	ActionDeadlineRead:      allRoles,
	ActionDeadlineManage:    {models.RolePrincipal, models.RoleAdmin},
	ActionDeadlineOverride:  {models.RolePrincipal, models.RoleAdmin},
	ActionDeadlineBypass:    reviewerRoles,
	ActionRemarkRead:        allRoles,
	ActionRemarkHOD:         {models.RoleHOD, models.RoleAdmin},
	ActionRemarkPrincipal:   principalRoles,
}

// Can reports whether role holds the capability for action.
func Can(role models.UserRole, action Action) bool {
	for _, allowed := range capabilities[action] {
		if allowed == role {
			return true
		}
	}
	return false
}

// RolesFor lists the roles allowed to perform action.
func RolesFor(action Action) []models.UserRole {
	roles := capabilities[action]
	out := make([]models.UserRole, len(roles))
	copy(out, roles)
	return out
}

// Authorize checks the caller's role against the capability table.
func Authorize(actor *models.JWTClaims, action Action) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if !Can(actor.Role, action) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions for "+string(action))
	}
	return nil
}

// AuthorizeDepartment is Authorize plus the department restriction applied to heads of department
// on mutating actions.
func AuthorizeDepartment(actor *models.JWTClaims, action Action, departmentID string) error {
	if err := Authorize(actor, action); err != nil {
		return err
	}
	if actor.Role == models.RoleHOD && actor.DepartmentID != departmentID {
		return appErrors.Clone(appErrors.ErrForbidden, "department is outside the caller's scope")
	}
	return nil
}

func actorID(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}
