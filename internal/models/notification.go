package models

import "time"

type NotificationType string

const (
	NotificationMessage       NotificationType = "message"
	NotificationFriendRequest NotificationType = "friend_request"
	NotificationFriendAccept  NotificationType = "friend_accept"
	NotificationMention       NotificationType = "mention"
	NotificationSystem        NotificationType = "system"
	NotificationOther         NotificationType = "other"
)

// ParseNotificationType maps unknown wire values to NotificationOther.
func ParseNotificationType(s string) NotificationType {
	switch t := NotificationType(s); t {
	case NotificationMessage, NotificationFriendRequest, NotificationFriendAccept,
		NotificationMention, NotificationSystem:
		return t
	}
	return NotificationOther
}

type Notification struct {
	ID                    string           `json:"id"`
	Type                  NotificationType `json:"type"`
	Message               string           `json:"message"`
	FromUser              string           `json:"from_user,omitempty"`
	IsRead                bool             `json:"is_read"`
	CreatedAt             time.Time        `json:"created_at"`
	RelatedConversationID string           `json:"related_conversation,omitempty"`
	RelatedMessageID      string           `json:"related_message,omitempty"`
	Data                  map[string]any   `json:"data,omitempty"`
}
