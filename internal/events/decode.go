package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/models"
)

var (
	ErrUnknownType  = errors.New("unknown event type")
	ErrMissingField = errors.New("missing required field")
)

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// Decode parses one inbound frame. Every error it returns carries
// apperr.CodeMalformed.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, apperr.Malformed("invalid frame", err)
	}

	var (
		ev  Event
		err error
	)
	switch head.Type {
	case TypeMessage:
		ev, err = decodeMessage(data)
	case TypeTyping:
		ev, err = decodeTyping(data)
	case TypeReadReceipt:
		ev, err = decodeReadReceipt(data)
	case TypeNotification:
		ev, err = decodeNotification(data)
	case TypePresence:
		ev, err = decodePresence(data)
	case TypeOnlineUsers:
		ev, err = decodeOnlineUsers(data)
	case "":
		err = missing("type")
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	if err != nil {
		return nil, apperr.Malformed(fmt.Sprintf("decode %s frame", typeName(head.Type)), err)
	}
	return ev, nil
}

func typeName(t Type) string {
	if t == "" {
		return "untyped"
	}
	return string(t)
}

func decodeMessage(data []byte) (Event, error) {
	var f messageFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	switch {
	case f.MessageID == nil || *f.MessageID == "":
		return nil, missing("message_id")
	case f.SenderID == nil || *f.SenderID == "":
		return nil, missing("sender_id")
	case f.Timestamp == nil:
		return nil, missing("timestamp")
	case (f.Message == nil || *f.Message == "") && (f.Attachment == nil || *f.Attachment == ""):
		return nil, missing("message or attachment")
	}
	ts, err := ParseTime(*f.Timestamp)
	if err != nil {
		return nil, err
	}
	m := models.Message{
		ID:              string(*f.MessageID),
		TempID:          f.ClientID,
		ConversationID:  string(f.ConversationID),
		SenderID:        string(*f.SenderID),
		SenderName:      f.SenderName,
		Timestamp:       ts,
		ReplyToID:       f.ReplyTo.String(),
		ParentMessageID: f.ParentMessageID.String(),
		Status:          models.StatusSent,
	}
	if f.Message != nil {
		m.Content = *f.Message
	}
	if f.Attachment != nil {
		m.Attachment = *f.Attachment
	}
	return Message{Message: m}, nil
}

func decodeTyping(data []byte) (Event, error) {
	var f typingFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.UserID == nil || *f.UserID == "" {
		return nil, missing("user_id")
	}
	if f.IsTyping == nil {
		return nil, missing("is_typing")
	}
	return Typing{UserID: string(*f.UserID), IsTyping: *f.IsTyping}, nil
}

func decodeReadReceipt(data []byte) (Event, error) {
	var f readReceiptFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.UserID == nil || *f.UserID == "" {
		return nil, missing("user_id")
	}
	if f.MessageID == nil || *f.MessageID == "" {
		return nil, missing("message_id")
	}
	return ReadReceipt{UserID: string(*f.UserID), MessageID: string(*f.MessageID)}, nil
}

func decodeNotification(data []byte) (Event, error) {
	var f notificationFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	switch {
	case f.NotificationID == nil || *f.NotificationID == "":
		return nil, missing("notification_id")
	case f.NotificationType == nil:
		return nil, missing("notification_type")
	case f.Timestamp == nil:
		return nil, missing("timestamp")
	}
	ts, err := ParseTime(*f.Timestamp)
	if err != nil {
		return nil, err
	}
	n := models.Notification{
		ID:        string(*f.NotificationID),
		Type:      models.ParseNotificationType(*f.NotificationType),
		Message:   f.Message,
		FromUser:  string(f.FromUser),
		IsRead:    f.IsRead,
		CreatedAt: ts,
		Data:      f.Data,
	}
	n.RelatedConversationID = dataString(f.Data, "conversation_id")
	n.RelatedMessageID = dataString(f.Data, "message_id")
	return Notification{Notification: n}, nil
}

func dataString(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func decodePresence(data []byte) (Event, error) {
	var f presenceFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.UserID == nil || *f.UserID == "" {
		return nil, missing("user_id")
	}
	if f.Online == nil {
		return nil, missing("online")
	}
	p := models.Presence{UserID: string(*f.UserID), Online: *f.Online}
	if f.LastSeen != nil && *f.LastSeen != "" {
		ts, err := ParseTime(*f.LastSeen)
		if err != nil {
			return nil, err
		}
		p.LastSeen = ts
	}
	return Presence{Presence: p}, nil
}

func decodeOnlineUsers(data []byte) (Event, error) {
	var f onlineUsersFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Users == nil {
		return nil, missing("users")
	}
	ids := make([]string, 0, len(*f.Users))
	for _, id := range *f.Users {
		ids = append(ids, string(id))
	}
	return OnlineUsers{UserIDs: ids}, nil
}
