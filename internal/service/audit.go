package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditEntry struct {
	action     string
	resource   string
	resourceID string
	oldValues  interface{}
	newValues  interface{}
	userAgent  string
}

// emitAudit records an audit log entry. Failures are logged and dropped.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor *models.JWTClaims, entry auditEntry) {
	if audit == nil {
		return
	}
	var oldValues, newValues []byte
	if entry.oldValues != nil {
		oldValues, _ = json.Marshal(entry.oldValues)
	}
	if entry.newValues != nil {
		newValues, _ = json.Marshal(entry.newValues)
	}
	var resourceID *string
	if entry.resourceID != "" {
		id := entry.resourceID
		resourceID = &id
	}
	log := &models.AuditLog{
		UserID:     actorID(actor),
		Action:     entry.action,
		Resource:   entry.resource,
		ResourceID: resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  entry.userAgent,
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.action), zap.Error(err))
	}
}
