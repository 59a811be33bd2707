package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID accepts both JSON strings and numbers; the backend uses integer ids for
// users and uuids for messages.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id *ID) String() string {
	if id == nil {
		return ""
	}
	return string(*id)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses the timestamp formats the backend emits: ISO 8601 with or
// without an offset, or unix seconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

type messageFrame struct {
	Type            Type    `json:"type"`
	MessageID       *ID     `json:"message_id"`
	Message         *string `json:"message"`
	SenderID        *ID     `json:"sender_id"`
	SenderName      string  `json:"sender_name,omitempty"`
	ConversationID  ID      `json:"conversation_id,omitempty"`
	Timestamp       *string `json:"timestamp"`
	Attachment      *string `json:"attachment"`
	ReplyTo         *ID     `json:"reply_to"`
	ParentMessageID *ID     `json:"parent_message_id,omitempty"`
	ClientID        string  `json:"client_id,omitempty"`
}

type typingFrame struct {
	Type     Type  `json:"type"`
	UserID   *ID   `json:"user_id"`
	IsTyping *bool `json:"is_typing"`
}

type readReceiptFrame struct {
	Type      Type `json:"type"`
	UserID    *ID  `json:"user_id"`
	MessageID *ID  `json:"message_id"`
}

type notificationFrame struct {
	Type             Type           `json:"type"`
	NotificationID   *ID            `json:"notification_id"`
	NotificationType *string        `json:"notification_type"`
	Message          string         `json:"message"`
	FromUser         ID             `json:"from_user"`
	Timestamp        *string        `json:"timestamp"`
	IsRead           bool           `json:"is_read,omitempty"`
	Data             map[string]any `json:"data"`
}

type presenceFrame struct {
	Type     Type    `json:"type"`
	UserID   *ID     `json:"user_id"`
	Online   *bool   `json:"online"`
	LastSeen *string `json:"last_seen"`
}

type onlineUsersFrame struct {
	Type  Type  `json:"type"`
	Users *[]ID `json:"users"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func idPtr(s string) *ID {
	if s == "" {
		return nil
	}
	id := ID(s)
	return &id
}
