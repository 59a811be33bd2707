package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Vasu1712/chatsync/internal/apperr"
)

// GetOnlineUsers asks the user channel for an online_users snapshot. It only
// travels client to server.
type GetOnlineUsers struct{}

func (GetOnlineUsers) Type() Type { return TypeGetOnlineUsers }
func (GetOnlineUsers) event()     {}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

// Encode renders an event as the flat JSON frame the push channels carry.
func Encode(ev Event) ([]byte, error) {
	var frame any
	switch e := ev.(type) {
	case Message:
		frame = messageFrame{
			Type:            TypeMessage,
			MessageID:       idPtr(e.ID),
			Message:         strPtr(e.Content),
			SenderID:        idPtr(e.SenderID),
			SenderName:      e.SenderName,
			ConversationID:  ID(e.ConversationID),
			Timestamp:       formatTime(e.Timestamp),
			Attachment:      strPtr(e.Attachment),
			ReplyTo:         idPtr(e.ReplyToID),
			ParentMessageID: idPtr(e.ParentMessageID),
			ClientID:        e.TempID,
		}
	case Typing:
		isTyping := e.IsTyping
		frame = typingFrame{Type: TypeTyping, UserID: idPtr(e.UserID), IsTyping: &isTyping}
	case ReadReceipt:
		frame = readReceiptFrame{Type: TypeReadReceipt, UserID: idPtr(e.UserID), MessageID: idPtr(e.MessageID)}
	case Notification:
		kind := string(e.Notification.Type)
		frame = notificationFrame{
			Type:             TypeNotification,
			NotificationID:   idPtr(e.ID),
			NotificationType: &kind,
			Message:          e.Message,
			FromUser:         ID(e.FromUser),
			Timestamp:        formatTime(e.CreatedAt),
			IsRead:           e.IsRead,
			Data:             e.Data,
		}
	case Presence:
		online := e.Online
		frame = presenceFrame{Type: TypePresence, UserID: idPtr(e.UserID), Online: &online, LastSeen: formatTime(e.LastSeen)}
	case OnlineUsers:
		users := make([]ID, 0, len(e.UserIDs))
		for _, u := range e.UserIDs {
			users = append(users, ID(u))
		}
		frame = onlineUsersFrame{Type: TypeOnlineUsers, Users: &users}
	case GetOnlineUsers:
		frame = struct {
			Type Type `json:"type"`
		}{TypeGetOnlineUsers}
	default:
		return nil, apperr.InvalidArg(fmt.Sprintf("cannot encode event %T", ev))
	}
	return json.Marshal(frame)
}

// DecodeOutbound parses a frame sent by a client: typing, read_receipt or
// get_online_users. The relay uses it on its read pumps.
func DecodeOutbound(data []byte) (Event, error) {
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
	case TypeTyping:
		ev, err = decodeTyping(data)
	case TypeReadReceipt:
		ev, err = decodeReadReceipt(data)
	case TypeGetOnlineUsers:
		ev = GetOnlineUsers{}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	if err != nil {
		return nil, apperr.Malformed(fmt.Sprintf("decode outbound %s frame", typeName(head.Type)), err)
	}
	return ev, nil
}
