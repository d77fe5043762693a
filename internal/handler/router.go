package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-approval-api/internal/middleware"
	"github.com/noah-isme/academic-approval-api/internal/models"
	"github.com/noah-isme/academic-approval-api/internal/service"
)

// DownloadRoute is the public path, relative to the API prefix, that redeems signed download links.
const DownloadRoute = "/documents/download"

// Routes bundles the handlers mounted under the API prefix.
type Routes struct {
	Documents     *DocumentHandler
	Events        *EventHandler
	Workflow      *WorkflowHandler
	Notifications *NotificationHandler
	Consistency   *ConsistencyHandler
	Programs      *ProgramCountHandler
	Deadlines     *DeadlineHandler
	Remarks       *RemarkHandler
	Tokens        middleware.TokenValidator
	Audit         middleware.AuditWriter
}

// Register mounts every route on group. The signed download route stays outside JWT because the
// token in the query string authorizes it.
func (r Routes) Register(group *gin.RouterGroup) {
	group.GET(DownloadRoute, r.Documents.Download)

	secured := group.Group("")
	secured.Use(middleware.JWT(r.Tokens), middleware.WithResponseMeta())

	docs := secured.Group("/documents")
	docs.GET("", middleware.Authorize(service.ActionDocumentRead), r.Documents.List)
	docs.POST("", middleware.Authorize(service.ActionDocumentUpload), r.Documents.Upload)
	docs.GET("/:id", middleware.Authorize(service.ActionDocumentRead), r.Documents.Get)
	docs.DELETE("/:id", middleware.Authorize(service.ActionDocumentDelete), r.Documents.Delete)
	docs.POST("/:id/approve", middleware.Authorize(service.ActionDocumentApprove), r.Documents.Approve)
	docs.POST("/:id/reject", middleware.Authorize(service.ActionDocumentReject), r.Documents.Reject)
	docs.GET("/:id/download-url", middleware.Authorize(service.ActionDocumentRead),
		middleware.Audit(r.Audit, models.AuditActionDocumentRead, "document"), r.Documents.DownloadURL)

	events := secured.Group("/events")
	events.GET("", middleware.Authorize(service.ActionEventRead), r.Events.List)
	events.POST("", middleware.Authorize(service.ActionEventCreate), r.Events.Create)
	events.GET("/:id", middleware.Authorize(service.ActionEventRead), r.Events.Get)
	events.PATCH("/:id/status", middleware.Authorize(service.ActionEventUpdateStatus), r.Events.UpdateStatus)
	events.GET("/:id/completion", middleware.Authorize(service.ActionEventRead), r.Events.Completion)
	events.GET("/:id/documents/:kind/versions", middleware.Authorize(service.ActionDocumentRead), r.Documents.Versions)

	workflow := secured.Group("/workflow-status")
	workflow.GET("", middleware.Authorize(service.ActionWorkflowRead), r.Workflow.Get)
	workflow.PUT("", middleware.Authorize(service.ActionWorkflowSet), r.Workflow.Set)

	programs := secured.Group("/program-counts")
	programs.GET("", middleware.Authorize(service.ActionProgramRead), r.Programs.List)
	programs.POST("", middleware.Authorize(service.ActionProgramSubmit), r.Programs.Save)
	programs.POST("/remarks", middleware.Authorize(service.ActionProgramRemark), r.Programs.Remarks)
	programs.GET("/status-summary", middleware.Authorize(service.ActionProgramRead), r.Programs.Summary)

	deadlines := secured.Group("/module-deadlines")
	deadlines.GET("", middleware.Authorize(service.ActionDeadlineRead), r.Deadlines.ListDeadlines)
	deadlines.PUT("", middleware.Authorize(service.ActionDeadlineManage), r.Deadlines.SetDeadline)
	deadlines.GET("/:module", middleware.Authorize(service.ActionDeadlineRead), r.Deadlines.GetDeadline)

	overrides := secured.Group("/deadline-overrides")
	overrides.GET("", middleware.Authorize(service.ActionDeadlineRead), r.Deadlines.ListOverrides)
	overrides.POST("", middleware.Authorize(service.ActionDeadlineOverride), r.Deadlines.GrantOverride)
	overrides.POST("/extend", middleware.Authorize(service.ActionDeadlineOverride), r.Deadlines.ExtendOverride)
	overrides.DELETE("", middleware.Authorize(service.ActionDeadlineOverride), r.Deadlines.RevokeOverride)
	secured.GET("/deadline-status", middleware.Authorize(service.ActionDeadlineRead), r.Deadlines.Status)

	// The remark kind decides the capability, so writes are authorized by the service.
	remarks := secured.Group("/remarks")
	remarks.GET("/:kind", middleware.Authorize(service.ActionRemarkRead), r.Remarks.Get)
	remarks.PUT("/:kind", r.Remarks.Save)

	notifications := secured.Group("/notifications")
	notifications.GET("", r.Notifications.List)
	notifications.GET("/unread-count", r.Notifications.UnreadCount)
	notifications.POST("/read-all", r.Notifications.MarkAllRead)
	notifications.POST("/:id/read", r.Notifications.MarkRead)

	admin := secured.Group("/admin")
	admin.POST("/consistency/sweep", middleware.Authorize(service.ActionConsistencySweep),
		middleware.Audit(r.Audit, models.AuditActionSweepRequest, "consistency"), r.Consistency.Sweep)
}
