package dto

// NotificationListQuery captures GET /notifications query parameters.
type NotificationListQuery struct {
	UnreadOnly bool `form:"unreadOnly"`
	Limit      int  `form:"limit"`
}

// UnreadCountResponse is returned by GET /notifications/unread-count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkAllReadResponse is returned by POST /notifications/read-all.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

