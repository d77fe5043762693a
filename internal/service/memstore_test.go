package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-approval-api/internal/models"
	"github.com/noah-isme/academic-approval-api/internal/repository"
	"github.com/noah-isme/academic-approval-api/pkg/storage"
)

// memWorld is an in-memory stand-in for the events, documents and workflow_statuses tables.
type memWorld struct {
	events    map[string]models.Event
	docs      map[string]models.Document
	workflows map[string]models.WorkflowStatus
	seq       int

	failMarkCompleted error
	failRevert        error
	failCreateDoc     error
}

func newMemWorld() *memWorld {
	return &memWorld{
		events:    map[string]models.Event{},
		docs:      map[string]models.Document{},
		workflows: map[string]models.WorkflowStatus{},
	}
}

func scopeKey(departmentID, academicYearID string) string {
	return departmentID + "|" + academicYearID
}

func (w *memWorld) nextID(prefix string) string {
	w.seq++
	return fmt.Sprintf("%s-%d", prefix, w.seq)
}

func (w *memWorld) snapshot() *memWorld {
	snap := newMemWorld()
	for k, v := range w.events {
		snap.events[k] = v
	}
	for k, v := range w.docs {
		snap.docs[k] = v
	}
	for k, v := range w.workflows {
		snap.workflows[k] = v
	}
	snap.seq = w.seq
	return snap
}

func (w *memWorld) restore(snap *memWorld) {
	w.events = snap.events
	w.docs = snap.docs
	w.workflows = snap.workflows
}

func (w *memWorld) addEvent(id, departmentID, academicYearID string) {
	w.events[id] = models.Event{
		ID:             id,
		DepartmentID:   departmentID,
		AcademicYearID: academicYearID,
		Title:          id,
		Status:         models.EventStatusPlanned,
		CreatedBy:      "hod-1",
	}
}

func (w *memWorld) addDoc(id, eventID string, kind models.DocumentKind, status models.DocumentStatus) {
	event := w.events[eventID]
	w.docs[id] = models.Document{
		ID:              id,
		EventID:         eventID,
		DepartmentID:    event.DepartmentID,
		AcademicYearID:  event.AcademicYearID,
		Kind:            kind,
		Title:           id,
		FilePath:        "blob/" + id,
		Status:          status,
		Version:         1,
		IsLatestVersion: true,
		UploadedBy:      "hod-1",
	}
}

func (w *memWorld) setWorkflow(departmentID, academicYearID string, status models.WorkflowState) {
	key := scopeKey(departmentID, academicYearID)
	ws, ok := w.workflows[key]
	if !ok {
		ws = models.WorkflowStatus{ID: w.nextID("ws"), DepartmentID: departmentID, AcademicYearID: academicYearID}
	}
	ws.Status = status
	w.workflows[key] = ws
}

func (w *memWorld) workflowStatus(departmentID, academicYearID string) models.WorkflowState {
	return w.workflows[scopeKey(departmentID, academicYearID)].Status
}

type memTx struct {
	world     *memWorld
	commits   int
	rollbacks int

	// beforeTx runs once before the next transaction starts, standing in for a concurrent writer.
	beforeTx func()
}

func (t *memTx) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	if hook := t.beforeTx; hook != nil {
		t.beforeTx = nil
		hook()
	}
	snap := t.world.snapshot()
	if err := fn(nil); err != nil {
		t.world.restore(snap)
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

type memEvents struct{ w *memWorld }

func (m memEvents) Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	if event.ID == "" {
		event.ID = m.w.nextID("event")
	}
	if event.Status == "" {
		event.Status = models.EventStatusPlanned
	}
	m.w.events[event.ID] = *event
	return nil
}

func (m memEvents) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	event, ok := m.w.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &event, nil
}

func (m memEvents) ListByDepartmentYear(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) ([]models.Event, error) {
	var out []models.Event
	for _, event := range m.w.events {
		if event.DepartmentID == departmentID && event.AcademicYearID == academicYearID {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memEvents) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, ids []string, at time.Time) ([]string, error) {
	if m.w.failMarkCompleted != nil {
		return nil, m.w.failMarkCompleted
	}
	var changed []string
	for _, id := range ids {
		event, ok := m.w.events[id]
		if !ok || event.Status == models.EventStatusCompleted {
			continue
		}
		event.Status = models.EventStatusCompleted
		event.UpdatedAt = at
		m.w.events[id] = event
		changed = append(changed, id)
	}
	return changed, nil
}

func (m memEvents) RevertCompleted(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, at time.Time) ([]string, error) {
	if m.w.failRevert != nil {
		return nil, m.w.failRevert
	}
	var reverted []string
	for id, event := range m.w.events {
		if event.DepartmentID != departmentID || event.AcademicYearID != academicYearID || event.Status != models.EventStatusCompleted {
			continue
		}
		event.Status = models.EventStatusPlanned
		event.UpdatedAt = at
		m.w.events[id] = event
		reverted = append(reverted, id)
	}
	sort.Strings(reverted)
	return reverted, nil
}

func (m memEvents) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EventStatus, at time.Time) error {
	event, ok := m.w.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	event.Status = status
	event.UpdatedAt = at
	m.w.events[id] = event
	return nil
}

func (m memEvents) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	var out []models.Event
	for _, event := range m.w.events {
		if filter.DepartmentID != "" && event.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.AcademicYearID != "" && event.AcademicYearID != filter.AcademicYearID {
			continue
		}
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m memEvents) ListDepartmentYears(ctx context.Context) ([]repository.DepartmentYear, error) {
	seen := map[string]repository.DepartmentYear{}
	for _, event := range m.w.events {
		seen[scopeKey(event.DepartmentID, event.AcademicYearID)] = repository.DepartmentYear{
			DepartmentID:   event.DepartmentID,
			AcademicYearID: event.AcademicYearID,
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]repository.DepartmentYear, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out, nil
}

type memDocs struct{ w *memWorld }

func (m memDocs) NextVersion(ctx context.Context, exec sqlx.ExtContext, eventID string, kind models.DocumentKind) (int, error) {
	max := 0
	for _, doc := range m.w.docs {
		if doc.EventID == eventID && doc.Kind == kind && doc.Version > max {
			max = doc.Version
		}
	}
	return max + 1, nil
}

func (m memDocs) LockLatest(ctx context.Context, exec sqlx.ExtContext, eventID string, kind models.DocumentKind) (*models.Document, error) {
	for _, doc := range m.w.docs {
		if doc.EventID == eventID && doc.Kind == kind && doc.IsLatestVersion {
			d := doc
			return &d, nil
		}
	}
	return nil, nil
}

func (m memDocs) Demote(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	doc := m.w.docs[id]
	doc.IsLatestVersion = false
	doc.UpdatedAt = at
	m.w.docs[id] = doc
	return nil
}

func (m memDocs) Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error {
	if m.w.failCreateDoc != nil {
		return m.w.failCreateDoc
	}
	if doc.ID == "" {
		doc.ID = m.w.nextID("doc")
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
	}
	m.w.docs[doc.ID] = *doc
	return nil
}

func (m memDocs) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	doc, ok := m.w.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m memDocs) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	return m.FindByID(ctx, exec, id)
}

func (m memDocs) UpdateReview(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error {
	if _, ok := m.w.docs[doc.ID]; !ok {
		return sql.ErrNoRows
	}
	m.w.docs[doc.ID] = *doc
	return nil
}

func (m memDocs) ListLatestByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range m.w.docs {
		if doc.EventID == eventID && doc.IsLatestVersion && doc.Status != models.DocumentStatusDeleted {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (m memDocs) ListVersions(ctx context.Context, eventID string, kind models.DocumentKind) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range m.w.docs {
		if doc.EventID == eventID && doc.Kind == kind {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m memDocs) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	var out []models.Document
	for _, doc := range m.w.docs {
		if filter.EventID != "" && doc.EventID != filter.EventID {
			continue
		}
		if filter.Status == "" && doc.Status == models.DocumentStatusDeleted {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.LatestOnly && !doc.IsLatestVersion {
			continue
		}
		out = append(out, doc)
	}
	return out, len(out), nil
}

type memWorkflows struct{ w *memWorld }

func (m memWorkflows) Find(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	ws, ok := m.w.workflows[scopeKey(departmentID, academicYearID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &ws, nil
}

func (m memWorkflows) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	if _, ok := m.w.workflows[scopeKey(departmentID, academicYearID)]; !ok {
		m.w.setWorkflow(departmentID, academicYearID, models.WorkflowStateDraft)
	}
	return m.Find(ctx, exec, departmentID, academicYearID)
}

func (m memWorkflows) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string) (*models.WorkflowStatus, error) {
	return m.GetOrCreate(ctx, exec, departmentID, academicYearID)
}

func (m memWorkflows) Upsert(ctx context.Context, exec sqlx.ExtContext, departmentID, academicYearID string, status models.WorkflowState, updatedBy *string) (*models.WorkflowStatus, error) {
	m.w.setWorkflow(departmentID, academicYearID, status)
	ws := m.w.workflows[scopeKey(departmentID, academicYearID)]
	ws.UpdatedBy = updatedBy
	m.w.workflows[scopeKey(departmentID, academicYearID)] = ws
	return &ws, nil
}

type memBlobs struct {
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (b *memBlobs) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	if b.putErr != nil {
		return 0, b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.objects[key] = data
	return int64(len(data)), nil
}

func (b *memBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.objects, key)
	return nil
}

type notifyCall struct {
	kind       models.NotificationType
	recipients models.NotificationRecipients
	nctx       models.NotificationContext
}

type recordingNotifier struct {
	calls  []notifyCall
	result bool
}

func (n *recordingNotifier) Notify(ctx context.Context, kind models.NotificationType, recipients models.NotificationRecipients, nctx models.NotificationContext) bool {
	n.calls = append(n.calls, notifyCall{kind: kind, recipients: recipients, nctx: nctx})
	return n.result
}

func (n *recordingNotifier) kinds() []models.NotificationType {
	out := make([]models.NotificationType, 0, len(n.calls))
	for _, call := range n.calls {
		out = append(out, call.kind)
	}
	return out
}

type recordingInvalidator struct {
	scopes []string
}

func (r *recordingInvalidator) InvalidateStatus(ctx context.Context, departmentID, academicYearID string) {
	r.scopes = append(r.scopes, scopeKey(departmentID, academicYearID))
}

type auditRecorder struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func (a *auditRecorder) actions() []string {
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}

var (
	hodActor       = &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, DepartmentID: "dept-2"}
	otherHodActor  = &models.JWTClaims{UserID: "hod-9", Role: models.RoleHOD, DepartmentID: "dept-9"}
	principalActor = &models.JWTClaims{UserID: "principal-1", Role: models.RolePrincipal}
	adminActor     = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
)
