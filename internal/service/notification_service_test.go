package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-approval-api/internal/models"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
)

type memInbox struct {
	items []models.Notification
}

func (m *memInbox) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, item := range m.items {
		if item.UserID != userID || (unreadOnly && item.Read) {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memInbox) MarkRead(ctx context.Context, id, userID string) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].Read = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memInbox) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var updated int64
	for i := range m.items {
		if m.items[i].UserID == userID && !m.items[i].Read {
			m.items[i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (m *memInbox) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, item := range m.items {
		if item.UserID == userID && !item.Read {
			count++
		}
	}
	return count, nil
}

func TestNotificationServiceInbox(t *testing.T) {
	inbox := &memInbox{items: []models.Notification{
		{ID: "n1", UserID: "hod-1", Type: models.NotificationDocumentApproved},
		{ID: "n2", UserID: "hod-1", Type: models.NotificationDocumentRejected},
		{ID: "n3", UserID: "principal-1", Type: models.NotificationDocumentUploaded},
	}}
	svc := NewNotificationService(inbox, nil)
	ctx := context.Background()

	items, err := svc.List(ctx, hodActor, true, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, svc.MarkRead(ctx, hodActor, "n1"))
	count, err := svc.UnreadCount(ctx, hodActor)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = svc.MarkRead(ctx, hodActor, "n3")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound), "another user's notification is not visible")

	updated, err := svc.MarkAllRead(ctx, hodActor)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	count, err = svc.UnreadCount(ctx, principalActor)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = svc.List(ctx, nil, false, 10)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
